package models

import (
	"time"

	"gorm.io/gorm"
)

// ActionTokenPurpose scopes a single-use token to one account action.
type ActionTokenPurpose string

const (
	PurposeVerifyEmail   ActionTokenPurpose = "verify_email"
	PurposeResetPassword ActionTokenPurpose = "reset_password"
)

// ActionToken stores the hash of an emailed single-use token.
type ActionToken struct {
	ID         string             `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string             `gorm:"type:uuid;not null;index:idx_action_token_owner" json:"user_id"`
	User       *User              `gorm:"foreignKey:UserID" json:"-"`
	Purpose    ActionTokenPurpose `gorm:"size:32;not null;index:idx_action_token_owner" json:"purpose"`
	TokenHash  string             `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt  time.Time          `gorm:"index" json:"expires_at"`
	ConsumedAt *time.Time         `json:"consumed_at"`
	CreatedAt  time.Time          `json:"created_at"`
}

func (t *ActionToken) BeforeCreate(tx *gorm.DB) error {
	assignID(&t.ID)
	return nil
}

// Usable reports whether the token can still be consumed at now.
func (t *ActionToken) Usable(now time.Time) bool {
	return t != nil && t.ConsumedAt == nil && now.Before(t.ExpiresAt)
}
