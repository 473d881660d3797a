package store

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/authcore/internal/models"
)

// UserRepository implements auth.CredentialStore.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// NormalizeEmail lower-cases and trims an address the way it is stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := conn(ctx, r.db).Where("email = ?", NormalizeEmail(email)).Take(&user).Error; err != nil {
		return nil, translate("find user by email", err)
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := conn(ctx, r.db).Where("id = ?", id).Take(&user).Error; err != nil {
		return nil, translate("find user", err)
	}
	return &user, nil
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := conn(ctx, r.db).Model(&models.User{}).Where("email = ?", NormalizeEmail(email)).Count(&count).Error; err != nil {
		return false, translate("count users", err)
	}
	return count > 0, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	user.Email = NormalizeEmail(user.Email)
	return translate("create user", conn(ctx, r.db).Create(user).Error)
}

// Update persists the mutable profile columns. Verification state is only changed by MarkVerified.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.Email = NormalizeEmail(user.Email)
	result := conn(ctx, r.db).Model(user).Select("name", "email", "password", "updated_at").Updates(user)
	if result.Error != nil {
		return translate("update user", result.Error)
	}
	if result.RowsAffected == 0 {
		return translate("update user", gorm.ErrRecordNotFound)
	}
	return nil
}

// MarkVerified stamps email_verified_at once; later calls leave the original timestamp.
func (r *UserRepository) MarkVerified(ctx context.Context, userID string, at time.Time) error {
	err := conn(ctx, r.db).Model(&models.User{}).
		Where("id = ? AND email_verified_at IS NULL", userID).
		Updates(map[string]any{
			"email_verified_at": at,
			"updated_at":        at,
		}).Error
	return translate("mark user verified", err)
}

func (r *UserRepository) FindByExternalIdentity(ctx context.Context, provider, subject string) (*models.User, error) {
	var identity models.ExternalIdentity
	err := conn(ctx, r.db).
		Preload("User").
		Where("provider = ? AND subject = ?", strings.ToLower(strings.TrimSpace(provider)), subject).
		Take(&identity).Error
	if err != nil {
		return nil, translate("find external identity", err)
	}
	if identity.User == nil {
		return nil, translate("find external identity", gorm.ErrRecordNotFound)
	}
	return identity.User, nil
}

func (r *UserRepository) LinkExternalIdentity(ctx context.Context, identity *models.ExternalIdentity) error {
	identity.Provider = strings.ToLower(strings.TrimSpace(identity.Provider))
	identity.Email = NormalizeEmail(identity.Email)
	return translate("link external identity", conn(ctx, r.db).Create(identity).Error)
}
