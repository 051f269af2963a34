package models

import "time"

// Audit action types recorded in admin_actions.
const (
	ActionCreateOfficial = "create_official"
	ActionChangeRole     = "change_role"
)

// AdminAction is an audit-log row written for administrative operations.
type AdminAction struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	AdminUserID  uint           `gorm:"not null;index" json:"admin_user_id"`
	ActionType   string         `gorm:"size:50;not null;index" json:"action_type"`
	TargetUserID *uint          `json:"target_user_id,omitempty"`
	Details      map[string]any `gorm:"serializer:json;type:jsonb" json:"details,omitempty"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
	Admin        *Profile       `gorm:"foreignKey:AdminUserID;references:UserID" json:"admin,omitempty"`
}
