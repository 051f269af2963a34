package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DigitizationResult is the stored output of OCR extraction over a document image.
type DigitizationResult struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uint           `gorm:"not null;index" json:"user_id"`
	FileName       string         `gorm:"size:255" json:"file_name"`
	ImageURL       string         `gorm:"type:text;not null" json:"image_url"`
	RawText        string         `gorm:"type:text" json:"raw_text"`
	StructuredData map[string]any `gorm:"serializer:json;type:jsonb" json:"structured_data"`
	Confidence     float64        `json:"confidence"`
	Provider       string         `gorm:"size:20" json:"provider"`
	ClaimID        *uuid.UUID     `gorm:"type:uuid;index" json:"claim_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// BeforeCreate assigns a UUID when the caller did not.
func (d *DigitizationResult) BeforeCreate(_ *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
