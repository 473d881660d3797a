package cache

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/authcore/internal/models"
)

// Counter increments keyed fixed-window counters.
type Counter interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// DatabaseCounter implements Counter on the primary SQL database so limits hold across
// server instances.
type DatabaseCounter struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDatabaseCounter constructs a database-backed Counter.
func NewDatabaseCounter(db *gorm.DB) *DatabaseCounter {
	if db == nil {
		return nil
	}
	return &DatabaseCounter{db: db, now: time.Now}
}

// IncrementWithTTL atomically increments the counter for key and returns the new count
// with the time left in the current window. An elapsed window starts over at one.
func (s *DatabaseCounter) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if s == nil {
		return 0, 0, errors.New("cache: database counter not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if window <= 0 {
		window = time.Minute
	}

	now := s.now()
	var entry models.RateCounter

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Acquire row-level lock
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&entry, "counter_key = ?", key).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			entry = models.RateCounter{Key: key, Count: 1, WindowEnd: now.Add(window)}
			return tx.Create(&entry).Error
		}
		if err != nil {
			return err
		}

		if !now.Before(entry.WindowEnd) {
			entry.Count = 1
			entry.WindowEnd = now.Add(window)
		} else {
			entry.Count++
		}
		return tx.Save(&entry).Error
	})
	if err != nil {
		return 0, 0, err
	}

	return entry.Count, entry.WindowEnd.Sub(now), nil
}

// DeleteExpired removes counters whose window closed before the given time.
func (s *DatabaseCounter) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	if s == nil {
		return 0, errors.New("cache: database counter not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	result := s.db.WithContext(ctx).Where("window_end < ?", before).Delete(&models.RateCounter{})
	return result.RowsAffected, result.Error
}
