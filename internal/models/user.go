package models

import "time"

// User is the authentication identity. Profile data lives in Profile.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Email        string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password     string     `gorm:"not null" json:"-"`
	LastSignInAt *time.Time `json:"last_sign_in_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Profile      *Profile   `gorm:"foreignKey:UserID" json:"profile,omitempty"`
}

// Profile holds the public account details and role of a user.
type Profile struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Email     string    `gorm:"size:255;not null;index" json:"email"`
	FullName  string    `gorm:"size:100;not null" json:"full_name"`
	Phone     *string   `gorm:"size:20" json:"phone,omitempty"`
	Address   *string   `gorm:"type:text" json:"address,omitempty"`
	Role      Role      `gorm:"type:varchar(20);not null;default:'citizen';index" json:"role"`
	AvatarURL *string   `gorm:"type:text" json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
