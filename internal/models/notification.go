package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification is a delivered message shown to a profile. SourceEventID is unique so a
// redelivered outbox event never produces a second notification.
type Notification struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RecipientID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"recipient_id"`
	Kind          string     `gorm:"size:50;not null" json:"kind"`
	Title         string     `gorm:"size:200;not null" json:"title"`
	Body          string     `gorm:"type:text" json:"body"`
	ReferenceID   *uuid.UUID `gorm:"type:uuid" json:"reference_id,omitempty"`
	Read          bool       `gorm:"not null;default:false" json:"read"`
	SourceEventID uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null" json:"source_event_id"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for Notification model
func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
