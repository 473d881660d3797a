package models

import (
	"time"

	"gorm.io/gorm"
)

// ExternalIdentity links a user to an account at an external identity provider.
type ExternalIdentity struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;index" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"-"`
	Provider  string    `gorm:"size:64;not null;uniqueIndex:idx_external_identity_subject" json:"provider"`
	Subject   string    `gorm:"size:255;not null;uniqueIndex:idx_external_identity_subject" json:"subject"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *ExternalIdentity) BeforeCreate(tx *gorm.DB) error {
	assignID(&e.ID)
	return nil
}
