package repository

import (
	"context"
	"time"

	"freelance-market/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to an open transaction
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// DB exposes the underlying handle for callers that open their own transaction
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// GetProfileByID retrieves a profile by ID
func (r *Repository) GetProfileByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetProfileByPublicKey retrieves a profile by its login key
func (r *Repository) GetProfileByPublicKey(ctx context.Context, publicKey string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("public_key = ?", publicKey).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListProfileIDs returns every profile ID ordered by creation
func (r *Repository) ListProfileIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// GetProjectByID retrieves a project by ID
func (r *Repository) GetProjectByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// ListProjects returns projects newest first, optionally filtered by status
func (r *Repository) ListProjects(
	ctx context.Context,
	status models.ProjectStatus,
	limit int,
	offset int,
) ([]*models.Project, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Project{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var projects []*models.Project
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&projects).Error
	if err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

// GetProposalByID retrieves a proposal by ID
func (r *Repository) GetProposalByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	var proposal models.Proposal
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&proposal).Error; err != nil {
		return nil, err
	}
	return &proposal, nil
}

// ListProposalsByProject returns a project's proposals in submission order
func (r *Repository) ListProposalsByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Proposal, error) {
	var proposals []*models.Proposal
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC, id ASC").
		Find(&proposals).Error
	return proposals, err
}

// ListPendingSiblings returns pending proposals on a project other than exceptID, in
// deterministic cascade order
func (r *Repository) ListPendingSiblings(
	ctx context.Context,
	projectID uuid.UUID,
	exceptID uuid.UUID,
) ([]*models.Proposal, error) {
	var proposals []*models.Proposal
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND id <> ? AND status = ?", projectID, exceptID, models.ProposalStatusPending).
		Order("created_at ASC, id ASC").
		Find(&proposals).Error
	return proposals, err
}

// ListProposalsByFreelancer returns a freelancer's proposals newest first
func (r *Repository) ListProposalsByFreelancer(
	ctx context.Context,
	freelancerID uuid.UUID,
	limit int,
	offset int,
) ([]*models.Proposal, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Proposal{}).Where("freelancer_id = ?", freelancerID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var proposals []*models.Proposal
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&proposals).Error
	if err != nil {
		return nil, 0, err
	}
	return proposals, total, nil
}

// HasPendingProposal reports whether the freelancer already has a pending bid on the project
func (r *Repository) HasPendingProposal(ctx context.Context, projectID, freelancerID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Proposal{}).
		Where("project_id = ? AND freelancer_id = ? AND status = ?",
			projectID, freelancerID, models.ProposalStatusPending).
		Count(&count).Error
	return count > 0, err
}

// ListTransactions returns a user's ledger entries newest first
func (r *Repository) ListTransactions(
	ctx context.Context,
	userID uuid.UUID,
	limit int,
	offset int,
) ([]*models.Transaction, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Transaction{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txs []*models.Transaction
	err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&txs).Error
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

// SumSignedTransactions returns sum(in) - sum(out) and the entry count for a user
func (r *Repository) SumSignedTransactions(ctx context.Context, userID uuid.UUID) (int64, int64, error) {
	var row struct {
		Total int64
		Count int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("COALESCE(SUM(CASE WHEN direction = ? THEN amount ELSE -amount END), 0) AS total, COUNT(*) AS count",
			models.DirectionIn).
		Where("user_id = ?", userID).
		Scan(&row).Error
	return row.Total, row.Count, err
}

// ListTransactionsByReference returns a user's entries against one reference, oldest first
func (r *Repository) ListTransactionsByReference(
	ctx context.Context,
	userID uuid.UUID,
	referenceID uuid.UUID,
) ([]*models.Transaction, error) {
	var txs []*models.Transaction
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND reference_id = ?", userID, referenceID).
		Order("created_at ASC, id ASC").
		Find(&txs).Error
	return txs, err
}

// GetDecisionByKey retrieves a recorded decision by idempotency key
func (r *Repository) GetDecisionByKey(ctx context.Context, key string) (*models.ProposalDecision, error) {
	var decision models.ProposalDecision
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&decision).Error; err != nil {
		return nil, err
	}
	return &decision, nil
}

// EnqueueOutboxEvent inserts an event; an existing row with the same dedupe key wins.
// Returns true when a new row was written.
func (r *Repository) EnqueueOutboxEvent(ctx context.Context, event *models.OutboxEvent) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dedupe_key"}},
			DoNothing: true,
		}).
		Create(event)
	return res.RowsAffected > 0, res.Error
}

// LeaseOutboxEvents claims up to limit due events for owner until now+ttl. Events whose
// previous lease expired are reclaimed.
func (r *Repository) LeaseOutboxEvents(
	ctx context.Context,
	owner string,
	now time.Time,
	ttl time.Duration,
	limit int,
) ([]*models.OutboxEvent, error) {
	now = now.UTC()
	due := r.db.WithContext(ctx).
		Where("(status = ? AND next_attempt_at <= ?) OR (status = ? AND lease_expires_at <= ?)",
			models.OutboxStatusPending, now, models.OutboxStatusLeased, now)

	var candidates []uuid.UUID
	err := due.Model(&models.OutboxEvent{}).
		Order("next_attempt_at ASC, id ASC").
		Limit(limit).
		Pluck("id", &candidates).Error
	if err != nil {
		return nil, err
	}

	expires := now.Add(ttl)
	leased := make([]uuid.UUID, 0, len(candidates))
	for _, id := range candidates {
		res := r.db.WithContext(ctx).
			Model(&models.OutboxEvent{}).
			Where("id = ?", id).
			Where("(status = ? AND next_attempt_at <= ?) OR (status = ? AND lease_expires_at <= ?)",
				models.OutboxStatusPending, now, models.OutboxStatusLeased, now).
			Updates(map[string]interface{}{
				"status":           models.OutboxStatusLeased,
				"lease_owner":      owner,
				"lease_expires_at": expires,
				"updated_at":       now,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			leased = append(leased, id)
		}
	}

	if len(leased) == 0 {
		return nil, nil
	}

	var events []*models.OutboxEvent
	err = r.db.WithContext(ctx).
		Where("id IN ? AND lease_owner = ?", leased, owner).
		Order("next_attempt_at ASC, id ASC").
		Find(&events).Error
	return events, err
}

// MarkOutboxDelivered completes an event held by owner
func (r *Repository) MarkOutboxDelivered(ctx context.Context, id uuid.UUID, owner string, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.OutboxEvent{}).
		Where("id = ? AND lease_owner = ?", id, owner).
		Updates(map[string]interface{}{
			"status":           models.OutboxStatusDelivered,
			"attempt_count":    gorm.Expr("attempt_count + 1"),
			"delivered_at":     now.UTC(),
			"lease_owner":      nil,
			"lease_expires_at": nil,
			"last_error":       nil,
			"updated_at":       now.UTC(),
		}).Error
}

// MarkOutboxRetry releases an event back to pending with a new due time
func (r *Repository) MarkOutboxRetry(
	ctx context.Context,
	id uuid.UUID,
	owner string,
	nextAttemptAt time.Time,
	lastError string,
) error {
	return r.db.WithContext(ctx).
		Model(&models.OutboxEvent{}).
		Where("id = ? AND lease_owner = ?", id, owner).
		Updates(map[string]interface{}{
			"status":           models.OutboxStatusPending,
			"attempt_count":    gorm.Expr("attempt_count + 1"),
			"next_attempt_at":  nextAttemptAt.UTC(),
			"lease_owner":      nil,
			"lease_expires_at": nil,
			"last_error":       lastError,
			"updated_at":       time.Now().UTC(),
		}).Error
}

// MarkOutboxDead parks an event that will not be retried
func (r *Repository) MarkOutboxDead(ctx context.Context, id uuid.UUID, owner string, lastError string) error {
	return r.db.WithContext(ctx).
		Model(&models.OutboxEvent{}).
		Where("id = ? AND lease_owner = ?", id, owner).
		Updates(map[string]interface{}{
			"status":           models.OutboxStatusDead,
			"attempt_count":    gorm.Expr("attempt_count + 1"),
			"lease_owner":      nil,
			"lease_expires_at": nil,
			"last_error":       lastError,
			"updated_at":       time.Now().UTC(),
		}).Error
}

// CountOutboxByStatus returns the number of events per status
func (r *Repository) CountOutboxByStatus(ctx context.Context) (map[models.OutboxStatus]int64, error) {
	var rows []struct {
		Status models.OutboxStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.OutboxEvent{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.OutboxStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// CreateNotification stores a notification once per source event
func (r *Repository) CreateNotification(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_event_id"}},
			DoNothing: true,
		}).
		Create(n).Error
}

// ListNotifications returns a recipient's notifications newest first
func (r *Repository) ListNotifications(
	ctx context.Context,
	recipientID uuid.UUID,
	unreadOnly bool,
	limit int,
	offset int,
) ([]*models.Notification, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Notification{}).Where("recipient_id = ?", recipientID)
	if unreadOnly {
		query = query.Where("read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []*models.Notification
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&notifications).Error
	if err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

// MarkNotificationRead flags one of the recipient's notifications as read.
// Returns the number of rows changed.
func (r *Repository) MarkNotificationRead(ctx context.Context, id, recipientID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("read", true)
	return res.RowsAffected, res.Error
}

// ListCatalogs returns active catalog items newest first
func (r *Repository) ListCatalogs(ctx context.Context, limit, offset int) ([]*models.Catalog, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Catalog{}).Where("status = ?", models.CatalogStatusActive)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var catalogs []*models.Catalog
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&catalogs).Error
	if err != nil {
		return nil, 0, err
	}
	return catalogs, total, nil
}

// GetCatalogByID retrieves a catalog item by ID
func (r *Repository) GetCatalogByID(ctx context.Context, id uuid.UUID) (*models.Catalog, error) {
	var catalog models.Catalog
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&catalog).Error; err != nil {
		return nil, err
	}
	return &catalog, nil
}

// ListOrdersByBuyer returns orders placed by a buyer newest first
func (r *Repository) ListOrdersByBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]*models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{}).Where("buyer_id = ?", buyerID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []*models.Order
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// GetLoginChallenge finds an issued challenge by nonce and key
func (r *Repository) GetLoginChallenge(ctx context.Context, nonce, publicKey string) (*models.LoginChallenge, error) {
	var challenge models.LoginChallenge
	err := r.db.WithContext(ctx).
		Where("nonce = ? AND public_key = ?", nonce, publicKey).
		First(&challenge).Error
	if err != nil {
		return nil, err
	}
	return &challenge, nil
}

// ConsumeLoginChallenge marks a challenge used if it is unused and unexpired. Returns
// false when another login got there first or the challenge expired.
func (r *Repository) ConsumeLoginChallenge(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	now = now.UTC()
	res := r.db.WithContext(ctx).
		Model(&models.LoginChallenge{}).
		Where("id = ? AND used_at IS NULL AND expires_at > ?", id, now).
		Update("used_at", now)
	return res.RowsAffected == 1, res.Error
}

// DeleteExpiredLoginChallenges removes challenges that can no longer be used
func (r *Repository) DeleteExpiredLoginChallenges(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at <= ? OR used_at IS NOT NULL", now.UTC()).
		Delete(&models.LoginChallenge{})
	return res.RowsAffected, res.Error
}
