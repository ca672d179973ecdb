package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"freelance-market/internal/metrics"
	"freelance-market/internal/models"
	"freelance-market/internal/repository"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

const maxIdempotencyKeyLength = 128

// DecisionResult is the outcome of an accept or reject. Replayed is set when the result
// came from an earlier request with the same idempotency key.
type DecisionResult struct {
	DecisionID     uuid.UUID             `json:"decision_id"`
	IdempotencyKey string                `json:"idempotency_key"`
	ProposalID     uuid.UUID             `json:"proposal_id"`
	ProjectID      uuid.UUID             `json:"project_id"`
	Action         models.DecisionAction `json:"action"`
	Status         models.ProposalStatus `json:"status"`
	RejectedIDs    []uuid.UUID           `json:"rejected_ids"`
	RefundedTotal  int64                 `json:"refunded_total"`
	Replayed       bool                  `json:"replayed"`
}

// ProjectVerification lists broken proposal/refund invariants for one project
type ProjectVerification struct {
	ProjectID     uuid.UUID            `json:"project_id"`
	Status        models.ProjectStatus `json:"status"`
	ProposalCount int                  `json:"proposal_count"`
	AcceptedCount int                  `json:"accepted_count"`
	PendingCount  int                  `json:"pending_count"`
	Violations    []string             `json:"violations"`
	OK            bool                 `json:"ok"`
}

// DecisionService applies a client's accept/reject decision on a proposal
type DecisionService struct {
	repo          *repository.Repository
	ledger        *LedgerService
	notifications *NotificationService
	closer        *proposalCloser
}

func NewDecisionService(
	repo *repository.Repository,
	ledger *LedgerService,
	notifications *NotificationService,
) *DecisionService {
	return &DecisionService{
		repo:          repo,
		ledger:        ledger,
		notifications: notifications,
		closer:        &proposalCloser{ledger: ledger},
	}
}

// Accept accepts proposalID and, in the same database transaction, moves the project to
// in_progress and rejects and refunds every other pending proposal on it. Any failure
// rolls the whole decision back.
func (s *DecisionService) Accept(
	ctx context.Context,
	clientID uuid.UUID,
	proposalID uuid.UUID,
	idempotencyKey string,
) (*DecisionResult, error) {
	return s.decide(ctx, clientID, proposalID, idempotencyKey, models.DecisionAccept)
}

// Reject rejects one pending proposal and refunds its fee
func (s *DecisionService) Reject(
	ctx context.Context,
	clientID uuid.UUID,
	proposalID uuid.UUID,
	idempotencyKey string,
) (*DecisionResult, error) {
	return s.decide(ctx, clientID, proposalID, idempotencyKey, models.DecisionReject)
}

func (s *DecisionService) decide(
	ctx context.Context,
	clientID uuid.UUID,
	proposalID uuid.UUID,
	key string,
	action models.DecisionAction,
) (*DecisionResult, error) {
	if key == "" {
		key = uuid.NewString()
	}
	if len(key) > maxIdempotencyKeyLength {
		return nil, invalid("idempotency_key", "is too long")
	}

	if prior, err := s.replay(ctx, key, clientID, proposalID, action); prior != nil || err != nil {
		return prior, err
	}

	proposal, err := s.repo.GetProposalByID(ctx, proposalID)
	if err != nil {
		return nil, notFound(err, ErrProposalNotFound)
	}
	project, err := s.repo.GetProjectByID(ctx, proposal.ProjectID)
	if err != nil {
		return nil, notFound(err, ErrProjectNotFound)
	}
	if project.ClientID != clientID {
		return nil, ErrForbidden
	}
	if proposal.Status.Terminal() {
		return nil, ErrProposalNotPending
	}
	if action == models.DecisionAccept && project.Status != models.ProjectStatusOpen {
		return nil, ErrProjectNotOpen
	}

	result := &DecisionResult{
		IdempotencyKey: key,
		ProposalID:     proposal.ID,
		ProjectID:      project.ID,
		Action:         action,
		RejectedIDs:    []uuid.UUID{},
	}
	var entries []*models.Transaction

	err = s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		switch action {
		case models.DecisionAccept:
			entries, err = s.applyAccept(ctx, tx, project, proposal, result)
		default:
			entries, err = s.applyReject(ctx, tx, project, proposal, result)
		}
		if err != nil {
			return err
		}

		decision := &models.ProposalDecision{
			IdempotencyKey: key,
			ProposalID:     proposal.ID,
			ProjectID:      project.ID,
			ActorID:        clientID,
			Action:         action,
			RejectedIDs:    result.RejectedIDs,
			RefundedTotal:  result.RefundedTotal,
		}
		if err := tx.Create(decision).Error; err != nil {
			return fmt.Errorf("failed to record decision: %w", err)
		}
		result.DecisionID = decision.ID
		return nil
	})
	if err != nil {
		// A concurrent request with the same key may have committed first.
		prior, lookupErr := s.replay(ctx, key, clientID, proposalID, action)
		if prior != nil {
			return prior, nil
		}
		if errors.Is(lookupErr, ErrIdempotencyConflict) || errors.Is(lookupErr, ErrForbidden) {
			return nil, lookupErr
		}
		metrics.Decisions.WithLabelValues(string(action), "failed").Inc()
		log.Printf("[DecisionService] %s of proposal %s rolled back: %v", action, proposalID, err)
		return nil, err
	}

	observeLedger(entries...)
	metrics.Decisions.WithLabelValues(string(action), "applied").Inc()
	if action == models.DecisionAccept {
		metrics.CascadeSize.Observe(float64(len(result.RejectedIDs)))
	}
	return result, nil
}

func (s *DecisionService) applyAccept(
	ctx context.Context,
	tx *gorm.DB,
	project *models.Project,
	proposal *models.Proposal,
	result *DecisionResult,
) ([]*models.Transaction, error) {
	now := time.Now()
	res := tx.Model(&models.Proposal{}).
		Where("id = ? AND status = ?", proposal.ID, models.ProposalStatusPending).
		Updates(map[string]interface{}{
			"status":     models.ProposalStatusAccepted,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to accept proposal: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrProposalNotPending
	}

	res = tx.Model(&models.Project{}).
		Where("id = ? AND status = ?", project.ID, models.ProjectStatusOpen).
		Updates(map[string]interface{}{
			"status":                 models.ProjectStatusInProgress,
			"accepted_freelancer_id": proposal.FreelancerID,
			"accepted_proposal_id":   proposal.ID,
			"updated_at":             now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to start project: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrProjectNotOpen
	}

	siblings, err := s.repo.WithTx(tx).ListPendingSiblings(ctx, project.ID, proposal.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sibling proposals: %w", err)
	}

	var entries []*models.Transaction
	for _, sibling := range siblings {
		refund, closed, err := s.closer.closeIfPending(ctx, tx, sibling, models.ProposalStatusRejected)
		if err != nil {
			return nil, err
		}
		if !closed {
			continue
		}
		entries = append(entries, refund)
		result.RejectedIDs = append(result.RejectedIDs, sibling.ID)
		result.RefundedTotal += sibling.FeePaid

		err = s.notifications.Enqueue(ctx, tx, models.EventProposalRejected, sibling.FreelancerID, sibling.ID,
			models.JSONB{
				"project_id":    project.ID.String(),
				"project_title": project.Title,
				"proposal_id":   sibling.ID.String(),
				"refund":        sibling.FeePaid,
			})
		if err != nil {
			return nil, err
		}
	}

	err = s.notifications.Enqueue(ctx, tx, models.EventProposalAccepted, proposal.FreelancerID, proposal.ID,
		models.JSONB{
			"project_id":    project.ID.String(),
			"project_title": project.Title,
			"proposal_id":   proposal.ID.String(),
		})
	if err != nil {
		return nil, err
	}

	proposal.Status = models.ProposalStatusAccepted
	result.Status = models.ProposalStatusAccepted
	return entries, nil
}

func (s *DecisionService) applyReject(
	ctx context.Context,
	tx *gorm.DB,
	project *models.Project,
	proposal *models.Proposal,
	result *DecisionResult,
) ([]*models.Transaction, error) {
	refund, err := s.closer.close(ctx, tx, proposal, models.ProposalStatusRejected)
	if err != nil {
		return nil, err
	}
	result.RefundedTotal = proposal.FeePaid
	result.Status = models.ProposalStatusRejected

	err = s.notifications.Enqueue(ctx, tx, models.EventProposalRejected, proposal.FreelancerID, proposal.ID,
		models.JSONB{
			"project_id":    project.ID.String(),
			"project_title": project.Title,
			"proposal_id":   proposal.ID.String(),
			"refund":        proposal.FeePaid,
		})
	if err != nil {
		return nil, err
	}
	return []*models.Transaction{refund}, nil
}

// replay returns the stored result for key, nil when the key is unused, ErrForbidden
// when another client made the decision, or ErrIdempotencyConflict when the key
// belongs to a different request.
func (s *DecisionService) replay(
	ctx context.Context,
	key string,
	clientID uuid.UUID,
	proposalID uuid.UUID,
	action models.DecisionAction,
) (*DecisionResult, error) {
	decision, err := s.repo.GetDecisionByKey(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up decision: %w", err)
	}
	if decision.ActorID != clientID {
		return nil, ErrForbidden
	}
	if decision.ProposalID != proposalID || decision.Action != action {
		return nil, ErrIdempotencyConflict
	}

	status := models.ProposalStatusRejected
	if decision.Action == models.DecisionAccept {
		status = models.ProposalStatusAccepted
	}
	metrics.Decisions.WithLabelValues(string(action), "replayed").Inc()
	return &DecisionResult{
		DecisionID:     decision.ID,
		IdempotencyKey: decision.IdempotencyKey,
		ProposalID:     decision.ProposalID,
		ProjectID:      decision.ProjectID,
		Action:         decision.Action,
		Status:         status,
		RejectedIDs:    lo.Ternary(decision.RejectedIDs == nil, []uuid.UUID{}, decision.RejectedIDs),
		RefundedTotal:  decision.RefundedTotal,
		Replayed:       true,
	}, nil
}

// VerifyProject checks that at most one proposal is accepted, that an accepted project
// has no pending proposals left, and that every proposal's ledger entries match its
// state: the fee is kept while pending or accepted and refunded in full once closed.
func (s *DecisionService) VerifyProject(ctx context.Context, projectID uuid.UUID) (*ProjectVerification, error) {
	project, err := s.repo.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, notFound(err, ErrProjectNotFound)
	}
	proposals, err := s.repo.ListProposalsByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}

	accepted := lo.Filter(proposals, func(p *models.Proposal, _ int) bool {
		return p.Status == models.ProposalStatusAccepted
	})
	pending := lo.CountBy(proposals, func(p *models.Proposal) bool {
		return p.Status == models.ProposalStatusPending
	})

	report := &ProjectVerification{
		ProjectID:     project.ID,
		Status:        project.Status,
		ProposalCount: len(proposals),
		AcceptedCount: len(accepted),
		PendingCount:  pending,
		Violations:    []string{},
	}
	violate := func(format string, args ...interface{}) {
		report.Violations = append(report.Violations, fmt.Sprintf(format, args...))
	}

	if len(accepted) > 1 {
		violate("%d proposals are accepted", len(accepted))
	}
	if len(accepted) == 1 {
		winner := accepted[0]
		if project.AcceptedProposalID == nil || *project.AcceptedProposalID != winner.ID {
			violate("project does not point at accepted proposal %s", winner.ID)
		}
		if project.Status == models.ProjectStatusOpen {
			violate("project is still open with an accepted proposal")
		}
		if pending > 0 {
			violate("%d proposals still pending after acceptance", pending)
		}
	}
	if len(accepted) == 0 && project.AcceptedProposalID != nil {
		violate("project points at %s but no proposal is accepted", *project.AcceptedProposalID)
	}
	if project.Status == models.ProjectStatusCancelled && pending > 0 {
		violate("%d proposals still pending on a cancelled project", pending)
	}

	for _, p := range proposals {
		entries, err := s.repo.ListTransactionsByReference(ctx, p.FreelancerID, p.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load ledger entries: %w", err)
		}
		net := lo.SumBy(entries, func(t *models.Transaction) int64 { return t.Signed() })

		// pending and accepted proposals keep their fee, closed ones are refunded in full
		want := -p.FeePaid
		if p.Status == models.ProposalStatusRejected || p.Status == models.ProposalStatusWithdrawn {
			want = 0
		}
		if net != want {
			violate("proposal %s (%s) paid %d but its ledger entries net to %d", p.ID, p.Status, p.FeePaid, net)
		}
	}

	report.OK = len(report.Violations) == 0
	return report, nil
}
