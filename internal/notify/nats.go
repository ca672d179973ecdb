package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"freelance-market/internal/models"

	"github.com/nats-io/nats.go"
)

// Publisher is the subset of *nats.Conn used for delivery
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes rendered messages on <prefix>.<recipientID>
type NATSNotifier struct {
	pub    Publisher
	prefix string
}

func NewNATSNotifier(pub Publisher, prefix string) *NATSNotifier {
	return &NATSNotifier{pub: pub, prefix: prefix}
}

// Connect dials NATS with reconnect settings suited to a long-running publisher
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("freelance-market"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return conn, nil
}

// Subject returns the subject a recipient's messages are published on
func (n *NATSNotifier) Subject(event *models.OutboxEvent) string {
	return fmt.Sprintf("%s.%s", n.prefix, event.RecipientID)
}

func (n *NATSNotifier) Notify(ctx context.Context, event *models.OutboxEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := Render(event)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return Permanent(fmt.Errorf("marshal message: %w", err))
	}
	if err := n.pub.Publish(n.Subject(event), data); err != nil {
		return fmt.Errorf("publish %s: %w", event.EventType, err)
	}
	return nil
}
