package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DecisionAction string

const (
	DecisionAccept DecisionAction = "accept"
	DecisionReject DecisionAction = "reject"
)

// ProposalDecision records one applied accept/reject. IdempotencyKey is unique, so a
// retried request finds the earlier outcome instead of applying the cascade twice.
type ProposalDecision struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	IdempotencyKey string         `gorm:"uniqueIndex;size:128;not null" json:"idempotency_key"`
	ProposalID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"proposal_id"`
	ProjectID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"project_id"`
	ActorID        uuid.UUID      `gorm:"type:uuid;not null" json:"actor_id"`
	Action         DecisionAction `gorm:"size:20;not null" json:"action"`
	RejectedIDs    []uuid.UUID    `gorm:"type:text;serializer:json" json:"rejected_ids"`
	RefundedTotal  int64          `gorm:"not null;default:0" json:"refunded_total"`
	CreatedAt      time.Time      `json:"created_at"`
}

// TableName specifies the table name for ProposalDecision model
func (ProposalDecision) TableName() string {
	return "proposal_decisions"
}

func (d *ProposalDecision) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
