package services

import (
	"context"
	"fmt"
	"time"

	"freelance-market/internal/models"
	"freelance-market/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationService writes outbox events alongside state changes and serves the
// delivered notifications back to their recipients.
type NotificationService struct {
	repo *repository.Repository
}

func NewNotificationService(repo *repository.Repository) *NotificationService {
	return &NotificationService{repo: repo}
}

// DedupeKey identifies one logical notification
func DedupeKey(eventType string, referenceID, recipientID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s", eventType, referenceID, recipientID)
}

// Enqueue writes an outbox event inside tx. Enqueueing the same event twice is a no-op.
func (s *NotificationService) Enqueue(
	ctx context.Context,
	tx *gorm.DB,
	eventType string,
	recipientID uuid.UUID,
	referenceID uuid.UUID,
	payload models.JSONB,
) error {
	if payload == nil {
		payload = models.JSONB{}
	}
	payload["reference_id"] = referenceID.String()

	event := &models.OutboxEvent{
		EventType:   eventType,
		RecipientID: recipientID,
		Payload:     payload,
		DedupeKey:   DedupeKey(eventType, referenceID, recipientID),
	}
	if _, err := s.repo.WithTx(tx).EnqueueOutboxEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to enqueue %s event: %w", eventType, err)
	}
	return nil
}

// List returns the recipient's notifications newest first
func (s *NotificationService) List(
	ctx context.Context,
	recipientID uuid.UUID,
	unreadOnly bool,
	limit int,
	offset int,
) ([]*models.Notification, int64, error) {
	limit, offset = normalizePage(limit, offset)
	notifications, total, err := s.repo.ListNotifications(ctx, recipientID, unreadOnly, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, total, nil
}

// MarkRead flags a notification as read
func (s *NotificationService) MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) error {
	rows, err := s.repo.MarkNotificationRead(ctx, notificationID, recipientID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if rows == 0 {
		return ErrNotificationMissing
	}
	return nil
}

// Store persists a rendered notification for an outbox event
func (s *NotificationService) Store(ctx context.Context, n *models.Notification) error {
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	return nil
}

// LeaseDue claims due outbox events for owner
func (s *NotificationService) LeaseDue(
	ctx context.Context,
	owner string,
	ttl time.Duration,
	limit int,
) ([]*models.OutboxEvent, error) {
	events, err := s.repo.LeaseOutboxEvents(ctx, owner, time.Now(), ttl, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to lease outbox events: %w", err)
	}
	return events, nil
}

func (s *NotificationService) MarkDelivered(ctx context.Context, event *models.OutboxEvent, owner string) error {
	return s.repo.MarkOutboxDelivered(ctx, event.ID, owner, time.Now())
}

func (s *NotificationService) MarkRetry(
	ctx context.Context,
	event *models.OutboxEvent,
	owner string,
	next time.Time,
	cause error,
) error {
	return s.repo.MarkOutboxRetry(ctx, event.ID, owner, next, errorText(cause))
}

func (s *NotificationService) MarkDead(ctx context.Context, event *models.OutboxEvent, owner string, cause error) error {
	return s.repo.MarkOutboxDead(ctx, event.ID, owner, errorText(cause))
}

// OutboxStats counts outbox events per status
func (s *NotificationService) OutboxStats(ctx context.Context) (map[models.OutboxStatus]int64, error) {
	return s.repo.CountOutboxByStatus(ctx)
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > 1000 {
		msg = msg[:1000]
	}
	return msg
}
