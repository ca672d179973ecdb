package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"freelance-market/internal/metrics"
	"freelance-market/internal/models"
	"freelance-market/internal/repository"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProposalService handles proposal submission and withdrawal
type ProposalService struct {
	repo          *repository.Repository
	ledger        *LedgerService
	notifications *NotificationService
	closer        *proposalCloser
}

func NewProposalService(
	repo *repository.Repository,
	ledger *LedgerService,
	notifications *NotificationService,
) *ProposalService {
	return &ProposalService{
		repo:          repo,
		ledger:        ledger,
		notifications: notifications,
		closer:        &proposalCloser{ledger: ledger},
	}
}

// Submit validates the request, then in one database transaction creates the proposal,
// debits the project's posting fee from the freelancer, bumps the project's proposal
// count and queues a notification for the client.
func (s *ProposalService) Submit(
	ctx context.Context,
	freelancerID uuid.UUID,
	req *models.SubmitProposalRequest,
) (*models.Proposal, error) {
	coverLetter := strings.TrimSpace(req.CoverLetter)
	if coverLetter == "" {
		return nil, invalid("cover_letter", "is required")
	}
	duration := strings.TrimSpace(req.EstimatedDuration)
	if duration == "" {
		return nil, invalid("estimated_duration", "is required")
	}
	if !req.ProposedBudget.IsPositive() {
		return nil, invalid("proposed_budget", "must be greater than zero")
	}
	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		return nil, invalid("project_id", "must be a valid UUID")
	}
	for i, m := range req.Milestones {
		if strings.TrimSpace(m.Title) == "" {
			return nil, invalid(fmt.Sprintf("milestones[%d].title", i), "is required")
		}
		if m.Amount.IsNegative() {
			return nil, invalid(fmt.Sprintf("milestones[%d].amount", i), "must not be negative")
		}
	}

	freelancer, err := s.repo.GetProfileByID(ctx, freelancerID)
	if err != nil {
		return nil, notFound(err, ErrProfileNotFound)
	}
	if freelancer.Role != models.RoleFreelancer {
		return nil, ErrForbidden
	}

	project, err := s.repo.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, notFound(err, ErrProjectNotFound)
	}
	if project.ClientID == freelancerID {
		return nil, ErrForbidden
	}
	if project.Status != models.ProjectStatusOpen {
		return nil, ErrProjectNotOpen
	}

	var rate *decimal.Decimal
	if project.BudgetType == models.BudgetTypeHourly && req.ProposedRate != nil {
		if !req.ProposedRate.IsPositive() {
			return nil, invalid("proposed_rate", "must be greater than zero")
		}
		rate = req.ProposedRate
	}

	proposal := &models.Proposal{
		ProjectID:         project.ID,
		FreelancerID:      freelancerID,
		CoverLetter:       coverLetter,
		ProposedBudget:    req.ProposedBudget,
		ProposedRate:      rate,
		EstimatedDuration: duration,
		WorkPlan:          strings.TrimSpace(req.WorkPlan),
		Milestones:        req.Milestones,
		WorkSamples: lo.Filter(lo.Map(req.WorkSamples, func(sample string, _ int) string {
			return strings.TrimSpace(sample)
		}), func(sample string, _ int) bool { return sample != "" }),
		Status:  models.ProposalStatusPending,
		FeePaid: project.PostingFee,
	}

	var fee *models.Transaction
	err = s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pending, err := s.repo.WithTx(tx).HasPendingProposal(ctx, project.ID, freelancerID)
		if err != nil {
			return fmt.Errorf("failed to check existing proposals: %w", err)
		}
		if pending {
			return ErrDuplicateProposal
		}

		if err := tx.Create(proposal).Error; err != nil {
			// a concurrent submit committed its pending proposal first
			if isUniqueViolation(err) {
				return ErrDuplicateProposal
			}
			return fmt.Errorf("failed to create proposal: %w", err)
		}

		if proposal.FeePaid > 0 {
			fee, err = s.ledger.Debit(ctx, tx, freelancerID, proposal.FeePaid,
				models.TransactionTypeProposalFee, LedgerRef{Type: "proposal", ID: proposal.ID})
			if err != nil {
				return err
			}
		}

		res := tx.Model(&models.Project{}).
			Where("id = ? AND status = ?", project.ID, models.ProjectStatusOpen).
			Updates(map[string]interface{}{
				"proposal_count": gorm.Expr("proposal_count + 1"),
				"updated_at":     time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update project: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrProjectNotOpen
		}

		return s.notifications.Enqueue(ctx, tx, models.EventProposalSubmitted, project.ClientID, proposal.ID,
			models.JSONB{
				"project_id":      project.ID.String(),
				"project_title":   project.Title,
				"proposal_id":     proposal.ID.String(),
				"freelancer_name": freelancer.DisplayName,
			})
	})
	if err != nil {
		return nil, err
	}

	observeLedger(fee)
	metrics.ProposalsSubmitted.Inc()
	return proposal, nil
}

// Withdraw lets the freelancer retract a pending proposal; the posting fee is refunded
func (s *ProposalService) Withdraw(
	ctx context.Context,
	freelancerID uuid.UUID,
	proposalID uuid.UUID,
) (*models.Proposal, error) {
	proposal, err := s.repo.GetProposalByID(ctx, proposalID)
	if err != nil {
		return nil, notFound(err, ErrProposalNotFound)
	}
	if proposal.FreelancerID != freelancerID {
		return nil, ErrForbidden
	}
	if proposal.Status.Terminal() {
		return nil, ErrProposalNotPending
	}

	project, err := s.repo.GetProjectByID(ctx, proposal.ProjectID)
	if err != nil {
		return nil, notFound(err, ErrProjectNotFound)
	}

	var refund *models.Transaction
	err = s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		refund, err = s.closer.close(ctx, tx, proposal, models.ProposalStatusWithdrawn)
		if err != nil {
			return err
		}
		return s.notifications.Enqueue(ctx, tx, models.EventProposalWithdrawn, project.ClientID, proposal.ID,
			models.JSONB{
				"project_id":    project.ID.String(),
				"project_title": project.Title,
				"proposal_id":   proposal.ID.String(),
			})
	})
	if err != nil {
		return nil, err
	}

	observeLedger(refund)
	return proposal, nil
}

// Get returns a proposal visible to viewer: its freelancer or the project's client
func (s *ProposalService) Get(ctx context.Context, viewerID, proposalID uuid.UUID) (*models.Proposal, error) {
	proposal, err := s.repo.GetProposalByID(ctx, proposalID)
	if err != nil {
		return nil, notFound(err, ErrProposalNotFound)
	}
	if proposal.FreelancerID == viewerID {
		return proposal, nil
	}

	project, err := s.repo.GetProjectByID(ctx, proposal.ProjectID)
	if err != nil {
		return nil, notFound(err, ErrProjectNotFound)
	}
	if project.ClientID != viewerID {
		return nil, ErrForbidden
	}
	return proposal, nil
}

// ListForProject returns every proposal to the project's client and only the viewer's
// own proposals to anyone else
func (s *ProposalService) ListForProject(
	ctx context.Context,
	viewerID uuid.UUID,
	projectID uuid.UUID,
) ([]*models.Proposal, error) {
	project, err := s.repo.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, notFound(err, ErrProjectNotFound)
	}

	proposals, err := s.repo.ListProposalsByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	if project.ClientID == viewerID {
		return proposals, nil
	}
	return lo.Filter(proposals, func(p *models.Proposal, _ int) bool {
		return p.FreelancerID == viewerID
	}), nil
}

// ListForFreelancer returns the freelancer's proposals newest first
func (s *ProposalService) ListForFreelancer(
	ctx context.Context,
	freelancerID uuid.UUID,
	limit int,
	offset int,
) ([]*models.Proposal, int64, error) {
	limit, offset = normalizePage(limit, offset)
	proposals, total, err := s.repo.ListProposalsByFreelancer(ctx, freelancerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list proposals: %w", err)
	}
	return proposals, total, nil
}

// proposalCloser moves a pending proposal to a terminal state and refunds its fee.
// Accept cascades, single rejections, withdrawals and project cancellation share it.
type proposalCloser struct {
	ledger *LedgerService
}

func (c *proposalCloser) close(
	ctx context.Context,
	tx *gorm.DB,
	proposal *models.Proposal,
	to models.ProposalStatus,
) (*models.Transaction, error) {
	now := time.Now()
	res := tx.WithContext(ctx).
		Model(&models.Proposal{}).
		Where("id = ? AND status = ?", proposal.ID, models.ProposalStatusPending).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update proposal %s: %w", proposal.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrProposalNotPending
	}
	proposal.Status = to
	proposal.UpdatedAt = now

	if proposal.FeePaid <= 0 {
		return nil, nil
	}
	refund, err := c.ledger.Credit(ctx, tx, proposal.FreelancerID, proposal.FeePaid,
		models.TransactionTypeProposalRefund, LedgerRef{Type: "proposal", ID: proposal.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to refund proposal %s: %w", proposal.ID, err)
	}
	return refund, nil
}

// closeIfPending is close for bulk paths. A proposal that left pending since it was
// loaded was already settled by its own transition and is skipped.
func (c *proposalCloser) closeIfPending(
	ctx context.Context,
	tx *gorm.DB,
	proposal *models.Proposal,
	to models.ProposalStatus,
) (*models.Transaction, bool, error) {
	refund, err := c.close(ctx, tx, proposal, to)
	if errors.Is(err, ErrProposalNotPending) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return refund, true, nil
}
