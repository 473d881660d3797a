package models

import (
	"time"

	"gorm.io/gorm"
)

// User is an account holder. Users are never deleted.
type User struct {
	ID              string     `gorm:"primaryKey;type:uuid" json:"id"`
	Name            string     `gorm:"not null" json:"name"`
	Email           string     `gorm:"uniqueIndex;not null" json:"email"`
	Password        string     `gorm:"not null" json:"-"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`

	Identities []ExternalIdentity `gorm:"foreignKey:UserID" json:"-"`
	Sessions   []Session          `gorm:"foreignKey:UserID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	assignID(&u.ID)
	return nil
}

// IsVerified reports whether the email address has been confirmed.
func (u *User) IsVerified() bool {
	return u != nil && u.EmailVerifiedAt != nil
}
