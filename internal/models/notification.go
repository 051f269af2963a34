package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification is an in-app message for a user, created on claim status changes.
type Notification struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;index" json:"user_id"`
	Title     string     `gorm:"size:200;not null" json:"title"`
	Message   string     `gorm:"type:text;not null" json:"message"`
	ClaimID   *uuid.UUID `gorm:"type:uuid" json:"claim_id,omitempty"`
	Read      bool       `gorm:"not null;default:false;index" json:"read"`
	CreatedAt time.Time  `json:"created_at"`
}
