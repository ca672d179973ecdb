package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProposalStatus string

const (
	ProposalStatusPending   ProposalStatus = "pending"
	ProposalStatusAccepted  ProposalStatus = "accepted"
	ProposalStatusRejected  ProposalStatus = "rejected"
	ProposalStatusWithdrawn ProposalStatus = "withdrawn"
)

// Terminal reports whether no further transition is allowed
func (s ProposalStatus) Terminal() bool {
	return s == ProposalStatusAccepted || s == ProposalStatusRejected || s == ProposalStatusWithdrawn
}

// Milestone is one deliverable of a proposal's work plan
type Milestone struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	DueInDays   int             `json:"due_in_days,omitempty"`
}

// Proposal is a freelancer's bid on a project. FeePaid is the posting fee debited at
// submission and is the exact amount refunded if the proposal is not accepted.
type Proposal struct {
	ID                uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID         uuid.UUID        `gorm:"type:uuid;not null;index" json:"project_id"`
	FreelancerID      uuid.UUID        `gorm:"type:uuid;not null;index" json:"freelancer_id"`
	CoverLetter       string           `gorm:"type:text;not null" json:"cover_letter"`
	ProposedBudget    decimal.Decimal  `gorm:"type:decimal(18,2);not null" json:"proposed_budget"`
	ProposedRate      *decimal.Decimal `gorm:"type:decimal(18,2)" json:"proposed_rate"`
	EstimatedDuration string           `gorm:"size:100;not null" json:"estimated_duration"`
	WorkPlan          string           `gorm:"type:text" json:"work_plan"`
	Milestones        []Milestone      `gorm:"type:text;serializer:json" json:"milestones"`
	WorkSamples       []string         `gorm:"type:text;serializer:json" json:"work_samples"`
	Status            ProposalStatus   `gorm:"size:20;not null;default:pending;index" json:"status"`
	FeePaid           int64            `gorm:"not null;default:0" json:"fee_paid"`
	CreatedAt         time.Time        `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// TableName specifies the table name for Proposal model
func (Proposal) TableName() string {
	return "proposals"
}

func (p *Proposal) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
