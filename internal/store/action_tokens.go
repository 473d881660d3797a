package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/authcore/internal/models"
)

// ActionTokenRepository implements auth.ActionTokenStore.
type ActionTokenRepository struct {
	db *gorm.DB
}

// NewActionTokenRepository constructs an ActionTokenRepository.
func NewActionTokenRepository(db *gorm.DB) *ActionTokenRepository {
	return &ActionTokenRepository{db: db}
}

func (r *ActionTokenRepository) Create(ctx context.Context, token *models.ActionToken) error {
	return translate("create action token", conn(ctx, r.db).Create(token).Error)
}

// FindByHash returns the token regardless of its consumed or expired state.
func (r *ActionTokenRepository) FindByHash(ctx context.Context, hash string, purpose models.ActionTokenPurpose) (*models.ActionToken, error) {
	var token models.ActionToken
	err := conn(ctx, r.db).
		Where("token_hash = ? AND purpose = ?", hash, purpose).
		Take(&token).Error
	if err != nil {
		return nil, translate("find action token", err)
	}
	return &token, nil
}

// MarkConsumed is the compare-and-set used for single-use semantics: only the caller whose
// update flips consumed_at from NULL observes true.
func (r *ActionTokenRepository) MarkConsumed(ctx context.Context, id string, at time.Time) (bool, error) {
	result := conn(ctx, r.db).Model(&models.ActionToken{}).
		Where("id = ? AND consumed_at IS NULL", id).
		Update("consumed_at", at)
	if result.Error != nil {
		return false, translate("consume action token", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *ActionTokenRepository) DeleteUnconsumed(ctx context.Context, userID string, purpose models.ActionTokenPurpose) error {
	err := conn(ctx, r.db).
		Where("user_id = ? AND purpose = ? AND consumed_at IS NULL", userID, purpose).
		Delete(&models.ActionToken{}).Error
	return translate("delete unconsumed action tokens", err)
}

func (r *ActionTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := conn(ctx, r.db).Where("expires_at < ?", before).Delete(&models.ActionToken{})
	if result.Error != nil {
		return 0, translate("delete expired action tokens", result.Error)
	}
	return result.RowsAffected, nil
}
