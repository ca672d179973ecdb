package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransactionType string

const (
	TransactionTypeProposalFee       TransactionType = "proposal_fee"
	TransactionTypeProposalRefund    TransactionType = "proposal_refund"
	TransactionTypeOrderPlacementFee TransactionType = "order_placement_fee"
)

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Transaction is an append-only ledger entry. It is written in the same database
// transaction as the balance change it records.
type Transaction struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	Type            TransactionType `gorm:"size:50;not null;index" json:"type"`
	Direction       Direction       `gorm:"size:10;not null" json:"direction"`
	Amount          int64           `gorm:"not null" json:"amount"`
	PreviousBalance int64           `gorm:"not null" json:"previous_balance"`
	NewBalance      int64           `gorm:"not null" json:"new_balance"`
	ReferenceType   string          `gorm:"size:50" json:"reference_type,omitempty"`
	ReferenceID     *uuid.UUID      `gorm:"type:uuid;index" json:"reference_id,omitempty"`
	CreatedAt       time.Time       `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for Transaction model
func (Transaction) TableName() string {
	return "transactions"
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Signed returns the amount with the sign of its direction
func (t Transaction) Signed() int64 {
	if t.Direction == DirectionOut {
		return -t.Amount
	}
	return t.Amount
}
