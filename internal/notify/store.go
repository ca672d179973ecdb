package notify

import (
	"context"

	"freelance-market/internal/models"
)

// NotificationStore persists rendered notifications
type NotificationStore interface {
	Store(ctx context.Context, n *models.Notification) error
}

// StoreNotifier writes an in-app notification row. The row is keyed by the source
// event, so redelivery does not create a second one.
type StoreNotifier struct {
	store NotificationStore
}

func NewStoreNotifier(store NotificationStore) *StoreNotifier {
	return &StoreNotifier{store: store}
}

func (s *StoreNotifier) Notify(ctx context.Context, event *models.OutboxEvent) error {
	msg, err := Render(event)
	if err != nil {
		return err
	}
	return s.store.Store(ctx, &models.Notification{
		RecipientID:   msg.RecipientID,
		Kind:          msg.Kind,
		Title:         msg.Title,
		Body:          msg.Body,
		ReferenceID:   msg.ReferenceID,
		SourceEventID: event.ID,
	})
}
