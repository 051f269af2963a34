package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClaimStatus is the review state of a claim.
type ClaimStatus string

const (
	ClaimStatusPending     ClaimStatus = "pending"
	ClaimStatusUnderReview ClaimStatus = "under_review"
	ClaimStatusApproved    ClaimStatus = "approved"
	ClaimStatusRejected    ClaimStatus = "rejected"
)

// ClaimStatuses lists every status in lifecycle order.
var ClaimStatuses = []ClaimStatus{
	ClaimStatusPending,
	ClaimStatusUnderReview,
	ClaimStatusApproved,
	ClaimStatusRejected,
}

// Valid reports whether s is a known status.
func (s ClaimStatus) Valid() bool {
	for _, known := range ClaimStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ClaimType is the category of a Forest Rights Act claim.
type ClaimType string

const (
	ClaimTypeIndividual ClaimType = "individual"
	ClaimTypeCommunity  ClaimType = "community"
)

// Valid reports whether t is a known claim type.
func (t ClaimType) Valid() bool {
	return t == ClaimTypeIndividual || t == ClaimTypeCommunity
}

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Document is a file attached to a claim. Path is the object key inside the
// claim-documents bucket.
type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Size       int64     `json:"size"`
	URL        string    `json:"url"`
	Path       string    `json:"path"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Claim is a citizen's Forest Rights Act land-rights application.
type Claim struct {
	ID                   uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID               uint         `gorm:"not null;index" json:"user_id"`
	ClaimType            ClaimType    `gorm:"type:varchar(20);not null" json:"claim_type"`
	Village              string       `gorm:"size:200;not null" json:"village"`
	District             string       `gorm:"size:200;not null;index" json:"district"`
	State                string       `gorm:"size:200;not null;index" json:"state"`
	LandArea             *float64     `json:"land_area,omitempty"`
	Description          string       `gorm:"column:claim_description;type:text" json:"claim_description"`
	Coordinates          *Coordinates `gorm:"serializer:json;type:jsonb" json:"coordinates,omitempty"`
	Documents            []Document   `gorm:"serializer:json;type:jsonb" json:"documents"`
	Status               ClaimStatus  `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	SubmittedAt          time.Time    `gorm:"not null;index" json:"submitted_at"`
	ReviewedAt           *time.Time   `json:"reviewed_at,omitempty"`
	ReviewedBy           *uint        `json:"reviewed_by,omitempty"`
	Remarks              *string      `gorm:"type:text" json:"remarks,omitempty"`
	DigitizationResultID *uuid.UUID   `gorm:"type:uuid" json:"digitization_result_id,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
	Applicant            *Profile     `gorm:"foreignKey:UserID;references:UserID" json:"applicant,omitempty"`
}

// BeforeCreate assigns a UUID when the caller did not.
func (c *Claim) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
