package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/authcore/internal/models"
)

// SessionRepository implements auth.SessionStore.
type SessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	return translate("create session", conn(ctx, r.db).Create(session).Error)
}

func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	if err := conn(ctx, r.db).Where("id = ?", id).Take(&session).Error; err != nil {
		return nil, translate("find session", err)
	}
	return &session, nil
}

func (r *SessionRepository) Rotate(ctx context.Context, id, currentHash, nextHash string, expiresAt, usedAt time.Time) (bool, error) {
	query := conn(ctx, r.db).Model(&models.Session{}).Where("id = ? AND revoked_at IS NULL", id)
	if currentHash != "" {
		query = query.Where("refresh_token_hash = ?", currentHash)
	}

	result := query.Updates(map[string]any{
		"refresh_token_hash": nextHash,
		"expires_at":         expiresAt,
		"last_used_at":       usedAt,
	})
	if result.Error != nil {
		return false, translate("rotate session", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *SessionRepository) Revoke(ctx context.Context, id string, at time.Time) (bool, error) {
	result := conn(ctx, r.db).Model(&models.Session{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", at)
	if result.Error != nil {
		return false, translate("revoke session", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	result := conn(ctx, r.db).Model(&models.Session{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", at)
	if result.Error != nil {
		return 0, translate("revoke user sessions", result.Error)
	}
	return result.RowsAffected, nil
}

// DeleteExpired removes sessions that expired, or were revoked, before the cutoff.
func (r *SessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := conn(ctx, r.db).
		Where("expires_at < ?", before).
		Or("revoked_at IS NOT NULL AND revoked_at < ?", before).
		Delete(&models.Session{})
	if result.Error != nil {
		return 0, translate("delete expired sessions", result.Error)
	}
	return result.RowsAffected, nil
}

// CountActive returns the number of unrevoked, unexpired sessions.
func (r *SessionRepository) CountActive(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.Session{}).
		Where("revoked_at IS NULL AND expires_at > ?", now).
		Count(&count).Error
	if err != nil {
		return 0, translate("count active sessions", err)
	}
	return count, nil
}
