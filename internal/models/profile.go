package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleClient     Role = "client"
	RoleFreelancer Role = "freelancer"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleClient || r == RoleFreelancer
}

// Profile is a marketplace account and carries the denormalized credit balance.
// Credit is only ever changed through the ledger, which bumps Version on every write.
type Profile struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PublicKey     string    `gorm:"uniqueIndex;size:64;not null" json:"public_key"`
	DisplayName   string    `gorm:"size:100;not null" json:"display_name"`
	Role          Role      `gorm:"size:20;not null;index" json:"role"`
	Credit        int64     `gorm:"not null;default:0;check:profiles_credit_non_negative,credit >= 0" json:"credit"`
	InitialCredit int64     `gorm:"not null;default:0" json:"initial_credit"`
	Version       int64     `gorm:"not null;default:0" json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName specifies the table name for Profile model
func (Profile) TableName() string {
	return "profiles"
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
