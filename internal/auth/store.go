package auth

import (
	"context"
	"time"

	"github.com/charlesng35/authcore/internal/models"
)

// Transactor runs fn inside a store transaction carried by the context passed to fn.
// Store calls made with that context join the transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	// AfterCommit runs fn once the transaction in ctx commits, or right away when
	// ctx carries none.
	AfterCommit(ctx context.Context, fn func())
}

// CredentialStore persists users and their external identities.
// Lookups return ErrNotFound when nothing matches and writes return ErrConflict on
// uniqueness violations.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	MarkVerified(ctx context.Context, userID string, at time.Time) error
	FindByExternalIdentity(ctx context.Context, provider, subject string) (*models.User, error)
	LinkExternalIdentity(ctx context.Context, identity *models.ExternalIdentity) error
}

// ActionTokenStore persists hashed single-use tokens.
type ActionTokenStore interface {
	Create(ctx context.Context, token *models.ActionToken) error
	FindByHash(ctx context.Context, hash string, purpose models.ActionTokenPurpose) (*models.ActionToken, error)
	// MarkConsumed sets consumed_at only when it is still NULL and reports whether this call won.
	MarkConsumed(ctx context.Context, id string, at time.Time) (bool, error)
	DeleteUnconsumed(ctx context.Context, userID string, purpose models.ActionTokenPurpose) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// SessionStore persists refresh token families.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, id string) (*models.Session, error)
	// Rotate swaps the refresh token hash of an unrevoked session. When currentHash is
	// empty the stored hash is not compared. It reports whether a row was updated.
	Rotate(ctx context.Context, id, currentHash, nextHash string, expiresAt, usedAt time.Time) (bool, error)
	Revoke(ctx context.Context, id string, at time.Time) (bool, error)
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
