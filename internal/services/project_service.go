package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"freelance-market/internal/models"
	"freelance-market/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProjectService handles the client side of a project's life
type ProjectService struct {
	repo          *repository.Repository
	notifications *NotificationService
	closer        *proposalCloser
}

func NewProjectService(
	repo *repository.Repository,
	ledger *LedgerService,
	notifications *NotificationService,
) *ProjectService {
	return &ProjectService{
		repo:          repo,
		notifications: notifications,
		closer:        &proposalCloser{ledger: ledger},
	}
}

// Create posts a new open project owned by clientID
func (s *ProjectService) Create(
	ctx context.Context,
	clientID uuid.UUID,
	req *models.CreateProjectRequest,
) (*models.Project, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, invalid("title", "is required")
	}
	if req.BudgetType != models.BudgetTypeFixed && req.BudgetType != models.BudgetTypeHourly {
		return nil, invalid("budget_type", "must be fixed or hourly")
	}
	if !req.Budget.IsPositive() {
		return nil, invalid("budget", "must be greater than zero")
	}
	if req.PostingFee < 0 {
		return nil, invalid("posting_fee", "must not be negative")
	}

	client, err := s.repo.GetProfileByID(ctx, clientID)
	if err != nil {
		return nil, notFound(err, ErrProfileNotFound)
	}
	if client.Role != models.RoleClient {
		return nil, ErrForbidden
	}

	project := &models.Project{
		ClientID:    clientID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		BudgetType:  req.BudgetType,
		Budget:      req.Budget,
		PostingFee:  req.PostingFee,
		Status:      models.ProjectStatusOpen,
	}
	if err := s.repo.DB().WithContext(ctx).Create(project).Error; err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return project, nil
}

// Get retrieves a project by ID
func (s *ProjectService) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	project, err := s.repo.GetProjectByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrProjectNotFound)
	}
	return project, nil
}

// List returns projects newest first, optionally filtered by status
func (s *ProjectService) List(
	ctx context.Context,
	status models.ProjectStatus,
	limit int,
	offset int,
) ([]*models.Project, int64, error) {
	limit, offset = normalizePage(limit, offset)
	projects, total, err := s.repo.ListProjects(ctx, status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, total, nil
}

// Complete marks an in-progress project as completed
func (s *ProjectService) Complete(ctx context.Context, clientID, projectID uuid.UUID) (*models.Project, error) {
	project, err := s.owned(ctx, clientID, projectID)
	if err != nil {
		return nil, err
	}

	res := s.repo.DB().WithContext(ctx).
		Model(&models.Project{}).
		Where("id = ? AND status = ?", project.ID, models.ProjectStatusInProgress).
		Updates(map[string]interface{}{
			"status":     models.ProjectStatusCompleted,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to complete project: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrProjectNotActive
	}
	return s.Get(ctx, projectID)
}

// Cancel closes an open project. Every pending proposal is rejected and refunded in
// the same database transaction.
func (s *ProjectService) Cancel(ctx context.Context, clientID, projectID uuid.UUID) (*models.Project, error) {
	project, err := s.owned(ctx, clientID, projectID)
	if err != nil {
		return nil, err
	}

	var refunds []*models.Transaction
	err = s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Project{}).
			Where("id = ? AND status = ?", project.ID, models.ProjectStatusOpen).
			Updates(map[string]interface{}{
				"status":     models.ProjectStatusCancelled,
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to cancel project: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrProjectNotOpen
		}

		pending, err := s.repo.WithTx(tx).ListPendingSiblings(ctx, project.ID, uuid.Nil)
		if err != nil {
			return fmt.Errorf("failed to load proposals: %w", err)
		}
		for _, p := range pending {
			refund, closed, err := s.closer.closeIfPending(ctx, tx, p, models.ProposalStatusRejected)
			if err != nil {
				return err
			}
			if !closed {
				continue
			}
			refunds = append(refunds, refund)

			err = s.notifications.Enqueue(ctx, tx, models.EventProjectCancelled, p.FreelancerID, p.ID,
				models.JSONB{
					"project_id":    project.ID.String(),
					"project_title": project.Title,
					"proposal_id":   p.ID.String(),
					"refund":        p.FeePaid,
				})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observeLedger(refunds...)
	return s.Get(ctx, projectID)
}

func (s *ProjectService) owned(ctx context.Context, clientID, projectID uuid.UUID) (*models.Project, error) {
	project, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.ClientID != clientID {
		return nil, ErrForbidden
	}
	return project, nil
}
