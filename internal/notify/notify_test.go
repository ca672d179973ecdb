package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"freelance-market/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEvent(eventType string, payload models.JSONB) *models.OutboxEvent {
	return &models.OutboxEvent{
		ID:          uuid.New(),
		EventType:   eventType,
		RecipientID: uuid.New(),
		Payload:     payload,
		CreatedAt:   time.Now(),
	}
}

func TestRender(t *testing.T) {
	ref := uuid.New()
	tests := []struct {
		name      string
		eventType string
		payload   models.JSONB
		title     string
		body      string
	}{
		{
			name:      "rejected with refund",
			eventType: models.EventProposalRejected,
			payload:   models.JSONB{"project_title": "Landing page", "refund": float64(5)},
			title:     "Proposal not selected",
			body:      `Your proposal for "Landing page" was not selected. 5 credits were refunded.`,
		},
		{
			name:      "rejected without fee",
			eventType: models.EventProposalRejected,
			payload:   models.JSONB{"project_title": "Landing page", "refund": float64(0)},
			title:     "Proposal not selected",
			body:      `Your proposal for "Landing page" was not selected.`,
		},
		{
			name:      "submitted falls back to generic name",
			eventType: models.EventProposalSubmitted,
			payload:   models.JSONB{"project_title": "ETL"},
			title:     "New proposal",
			body:      `A freelancer submitted a proposal for "ETL".`,
		},
		{
			name:      "order placed",
			eventType: models.EventOrderPlaced,
			payload:   models.JSONB{"catalog_title": "Logo", "buyer_name": "Bold_Fox_0001"},
			title:     "New order",
			body:      `Bold_Fox_0001 ordered "Logo".`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.payload["reference_id"] = ref.String()
			msg, err := Render(newEvent(tt.eventType, tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.title, msg.Title)
			assert.Equal(t, tt.body, msg.Body)
			require.NotNil(t, msg.ReferenceID)
			assert.Equal(t, ref, *msg.ReferenceID)
		})
	}
}

func TestRenderUnknownTypeIsPermanent(t *testing.T) {
	_, err := Render(newEvent("mystery", nil))
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
}

type stubNotifier struct {
	err   error
	calls int
}

func (s *stubNotifier) Notify(ctx context.Context, event *models.OutboxEvent) error {
	s.calls++
	return s.err
}

func TestMultiNotifier(t *testing.T) {
	event := newEvent(models.EventProposalAccepted, models.JSONB{})
	transient := errors.New("broker down")

	ok := &stubNotifier{}
	failing := &stubNotifier{err: transient}
	err := MultiNotifier{ok, failing}.Notify(context.Background(), event)
	require.ErrorIs(t, err, transient)
	assert.False(t, IsPermanent(err))
	assert.Equal(t, 1, ok.calls)

	err = MultiNotifier{&stubNotifier{err: Permanent(errors.New("a"))}, &stubNotifier{err: Permanent(errors.New("b"))}}.
		Notify(context.Background(), event)
	assert.True(t, IsPermanent(err))

	assert.NoError(t, MultiNotifier{ok}.Notify(context.Background(), event))
}

func TestMultiNotifierMixedFailureIsRetryable(t *testing.T) {
	event := newEvent(models.EventProposalAccepted, models.JSONB{})
	render := errors.New("render failed")
	transient := errors.New("broker down")

	err := MultiNotifier{
		&stubNotifier{err: Permanent(render)},
		&stubNotifier{err: transient},
	}.Notify(context.Background(), event)

	require.Error(t, err)
	assert.False(t, IsPermanent(err))
	assert.ErrorIs(t, err, render)
	assert.ErrorIs(t, err, transient)
}

type recordingPublisher struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (p *recordingPublisher) Publish(subject string, data []byte) error {
	if p.err != nil {
		return p.err
	}
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func TestNATSNotifierPublishesPerRecipient(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewNATSNotifier(pub, "market.notifications")
	event := newEvent(models.EventProposalAccepted, models.JSONB{"project_title": "ETL"})

	require.NoError(t, n.Notify(context.Background(), event))
	require.Len(t, pub.subjects, 1)
	assert.Equal(t, "market.notifications."+event.RecipientID.String(), pub.subjects[0])

	var msg Message
	require.NoError(t, json.Unmarshal(pub.payloads[0], &msg))
	assert.Equal(t, event.ID, msg.EventID)
	assert.Equal(t, "Proposal accepted", msg.Title)

	pub.err = errors.New("no responders")
	err := n.Notify(context.Background(), event)
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
}

type memoryStore struct {
	rows map[uuid.UUID]*models.Notification
}

func (m *memoryStore) Store(ctx context.Context, n *models.Notification) error {
	if _, ok := m.rows[n.SourceEventID]; !ok {
		m.rows[n.SourceEventID] = n
	}
	return nil
}

func TestStoreNotifierKeysBySourceEvent(t *testing.T) {
	store := &memoryStore{rows: map[uuid.UUID]*models.Notification{}}
	n := NewStoreNotifier(store)
	event := newEvent(models.EventProjectCancelled, models.JSONB{"project_title": "ETL", "refund": float64(2)})

	require.NoError(t, n.Notify(context.Background(), event))
	require.NoError(t, n.Notify(context.Background(), event))

	require.Len(t, store.rows, 1)
	stored := store.rows[event.ID]
	assert.Equal(t, event.RecipientID, stored.RecipientID)
	assert.Equal(t, models.EventProjectCancelled, stored.Kind)
	assert.Contains(t, stored.Body, "2 credits were refunded")
}
