package models

import (
	"time"
)

// RateCounter is a fixed-window request counter shared by every server instance.
type RateCounter struct {
	Key       string    `gorm:"primaryKey;column:counter_key;size:256"`
	Count     int64     `gorm:"not null;default:0"`
	WindowEnd time.Time `gorm:"index;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
