package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LoginChallenge is a single-use nonce a key holder signs to log in. It is consumed by
// the first successful login and expires after ExpiresAt.
type LoginChallenge struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	PublicKey string     `gorm:"size:64;not null;index" json:"public_key"`
	Nonce     string     `gorm:"uniqueIndex;size:64;not null" json:"nonce"`
	ExpiresAt time.Time  `gorm:"not null;index" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// TableName specifies the table name for LoginChallenge model
func (LoginChallenge) TableName() string {
	return "login_challenges"
}

func (c *LoginChallenge) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
