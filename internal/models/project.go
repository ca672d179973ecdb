package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProjectStatus string

const (
	ProjectStatusOpen       ProjectStatus = "open"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusCancelled  ProjectStatus = "cancelled"
)

type BudgetType string

const (
	BudgetTypeFixed  BudgetType = "fixed"
	BudgetTypeHourly BudgetType = "hourly"
)

// Project is a job posted by a client. PostingFee is the credit cost of one proposal.
type Project struct {
	ID                   uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID             uuid.UUID       `gorm:"type:uuid;not null;index" json:"client_id"`
	Title                string          `gorm:"size:200;not null" json:"title"`
	Description          string          `gorm:"type:text" json:"description"`
	BudgetType           BudgetType      `gorm:"size:20;not null" json:"budget_type"`
	Budget               decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"budget"`
	PostingFee           int64           `gorm:"not null;default:0" json:"posting_fee"`
	Status               ProjectStatus   `gorm:"size:20;not null;default:open;index" json:"status"`
	AcceptedFreelancerID *uuid.UUID      `gorm:"type:uuid" json:"accepted_freelancer_id,omitempty"`
	AcceptedProposalID   *uuid.UUID      `gorm:"type:uuid" json:"accepted_proposal_id,omitempty"`
	ProposalCount        int             `gorm:"not null;default:0" json:"proposal_count"`
	CreatedAt            time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// TableName specifies the table name for Project model
func (Project) TableName() string {
	return "projects"
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
