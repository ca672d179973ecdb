package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"freelance-market/internal/models"

	"github.com/google/uuid"
)

// Notifier delivers one outbox event. Implementations must tolerate redelivery of the
// same event.
type Notifier interface {
	Notify(ctx context.Context, event *models.OutboxEvent) error
}

// permanentError marks a failure that retrying cannot fix
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the dispatcher dead-letters the event instead of retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Message is the rendered, recipient-facing form of an outbox event
type Message struct {
	EventID     uuid.UUID  `json:"event_id"`
	RecipientID uuid.UUID  `json:"recipient_id"`
	Kind        string     `json:"kind"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	ReferenceID *uuid.UUID `json:"reference_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Render turns an event into a message. Unknown event types are permanent failures.
func Render(event *models.OutboxEvent) (*Message, error) {
	p := event.Payload
	var title, body string

	switch event.EventType {
	case models.EventProposalSubmitted:
		title = "New proposal"
		body = fmt.Sprintf("%s submitted a proposal for %q.", orDefault(p.String("freelancer_name"), "A freelancer"), p.String("project_title"))
	case models.EventProposalAccepted:
		title = "Proposal accepted"
		body = fmt.Sprintf("Your proposal for %q was accepted.", p.String("project_title"))
	case models.EventProposalRejected:
		title = "Proposal not selected"
		body = fmt.Sprintf("Your proposal for %q was not selected.%s", p.String("project_title"), refundNote(p))
	case models.EventProposalWithdrawn:
		title = "Proposal withdrawn"
		body = fmt.Sprintf("A freelancer withdrew their proposal for %q.", p.String("project_title"))
	case models.EventProjectCancelled:
		title = "Project cancelled"
		body = fmt.Sprintf("%q was cancelled by the client.%s", p.String("project_title"), refundNote(p))
	case models.EventOrderPlaced:
		title = "New order"
		body = fmt.Sprintf("%s ordered %q.", orDefault(p.String("buyer_name"), "A buyer"), p.String("catalog_title"))
	default:
		return nil, Permanent(fmt.Errorf("unknown event type %q", event.EventType))
	}

	msg := &Message{
		EventID:     event.ID,
		RecipientID: event.RecipientID,
		Kind:        event.EventType,
		Title:       title,
		Body:        body,
		CreatedAt:   event.CreatedAt,
	}
	if ref, err := uuid.Parse(p.String("reference_id")); err == nil {
		msg.ReferenceID = &ref
	}
	return msg, nil
}

func refundNote(p models.JSONB) string {
	refund := p.String("refund")
	if refund == "" || refund == "0" {
		return ""
	}
	return fmt.Sprintf(" %s credits were refunded.", refund)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// MultiNotifier delivers to every notifier and fails if any of them fails. The failure
// is permanent only when every failure is.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, event *models.OutboxEvent) error {
	var errs []error
	allPermanent := true
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
			allPermanent = allPermanent && IsPermanent(err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	if allPermanent {
		return Permanent(errors.Join(errs...))
	}
	// A retry is still useful, so the permanent markers must not survive the join.
	for i, err := range errs {
		var p *permanentError
		if errors.As(err, &p) {
			errs[i] = p.err
		}
	}
	return errors.Join(errs...)
}
