package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusLeased    OutboxStatus = "leased"
	OutboxStatusDelivered OutboxStatus = "delivered"
	OutboxStatusDead      OutboxStatus = "dead"
)

// Outbox event types
const (
	EventProposalSubmitted = "proposal_submitted"
	EventProposalAccepted  = "proposal_accepted"
	EventProposalRejected  = "proposal_rejected"
	EventProposalWithdrawn = "proposal_withdrawn"
	EventProjectCancelled  = "project_cancelled"
	EventOrderPlaced       = "order_placed"
)

// OutboxEvent is a pending notification written in the same database transaction as
// the state change that caused it. DedupeKey makes enqueueing idempotent.
type OutboxEvent struct {
	ID             uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	EventType      string       `gorm:"size:50;not null;index" json:"event_type"`
	RecipientID    uuid.UUID    `gorm:"type:uuid;not null;index" json:"recipient_id"`
	Payload        JSONB        `gorm:"type:text" json:"payload"`
	DedupeKey      string       `gorm:"uniqueIndex;size:255;not null" json:"dedupe_key"`
	Status         OutboxStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	AttemptCount   int          `gorm:"not null;default:0" json:"attempt_count"`
	NextAttemptAt  time.Time    `gorm:"not null;index" json:"next_attempt_at"`
	LeaseOwner     *string      `gorm:"size:100" json:"lease_owner,omitempty"`
	LeaseExpiresAt *time.Time   `json:"lease_expires_at,omitempty"`
	LastError      *string      `gorm:"type:text" json:"last_error,omitempty"`
	DeliveredAt    *time.Time   `json:"delivered_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// TableName specifies the table name for OutboxEvent model
func (OutboxEvent) TableName() string {
	return "outbox_events"
}

func (e *OutboxEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.NextAttemptAt.IsZero() {
		e.NextAttemptAt = time.Now().UTC()
	}
	if e.Status == "" {
		e.Status = OutboxStatusPending
	}
	return nil
}
