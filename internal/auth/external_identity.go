package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charlesng35/authcore/internal/models"
	"github.com/charlesng35/authcore/pkg/crypto"
)

const defaultExternalName = "User"

// ExternalIdentityInput is the identity asserted by an OAuth or OpenID Connect provider.
type ExternalIdentityInput struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// LoginWithExternalIdentity finds or creates the account behind a provider identity and
// opens a session for it. Identities are matched by provider subject first, then by a
// provider-verified email, and otherwise a new account with an unusable password is
// created. A verified provider email also verifies the account.
func (s *Service) LoginWithExternalIdentity(ctx context.Context, in ExternalIdentityInput, meta ClientMeta) (LoginResult, error) {
	in.Provider = strings.ToLower(strings.TrimSpace(in.Provider))
	in.Subject = strings.TrimSpace(in.Subject)
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)

	if in.Provider == "" || in.Subject == "" {
		return LoginResult{}, ErrUnauthorized
	}

	user, err := s.FindOrCreateByExternalIdentity(ctx, in)
	if err != nil {
		s.observe("external", err)
		s.audit(ctx, AuditEvent{Action: ActionExternalLogin, Result: AuditResultFailure, Email: in.Email, Metadata: map[string]any{"provider": in.Provider}})
		return LoginResult{}, err
	}

	if s.cfg.RequireVerifiedEmail && !user.IsVerified() {
		s.observe("external", ErrEmailNotVerified)
		s.audit(ctx, AuditEvent{Action: ActionExternalLogin, Result: AuditResultDenied, UserID: user.ID, Email: user.Email, Metadata: map[string]any{"provider": in.Provider}})
		return LoginResult{}, ErrEmailNotVerified
	}

	pair, err := s.tokens.IssueAccessPair(ctx, user.ID, meta)
	if err != nil {
		s.observe("external", err)
		return LoginResult{}, fmt.Errorf("auth service: issue tokens: %w", err)
	}

	s.observe("external", nil)
	s.audit(ctx, AuditEvent{
		Action:   ActionExternalLogin,
		Result:   AuditResultSuccess,
		UserID:   user.ID,
		Email:    user.Email,
		Metadata: map[string]any{"provider": in.Provider, "session_id": pair.SessionID},
	})
	return LoginResult{User: NewPublicUser(user), Tokens: pair}, nil
}

// FindOrCreateByExternalIdentity resolves the local account for a provider identity.
func (s *Service) FindOrCreateByExternalIdentity(ctx context.Context, in ExternalIdentityInput) (*models.User, error) {
	user, err := s.users.FindByExternalIdentity(ctx, in.Provider, in.Subject)
	switch {
	case err == nil:
		return s.markProviderVerified(ctx, user, in)
	case !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("auth service: find external identity: %w", err)
	}

	if in.Email == "" {
		return nil, ErrUnauthorized
	}

	secret, err := crypto.GenerateToken(32)
	if err != nil {
		return nil, fmt.Errorf("auth service: generate password: %w", err)
	}
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, fmt.Errorf("auth service: hash password: %w", err)
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.users.FindByEmail(ctx, in.Email)
		switch {
		case err == nil:
			// Linking by email would hand the account to whoever controls the provider
			// identity, so the provider must vouch for the address.
			if !in.EmailVerified {
				return ErrUnauthorized
			}
			user = existing
		case errors.Is(err, ErrNotFound):
			user = &models.User{Name: externalName(in), Email: in.Email, Password: hash}
			if err := s.users.Create(ctx, user); err != nil {
				return err
			}
		default:
			return err
		}

		return s.users.LinkExternalIdentity(ctx, &models.ExternalIdentity{
			UserID:   user.ID,
			Provider: in.Provider,
			Subject:  in.Subject,
			Email:    in.Email,
		})
	})
	if errors.Is(err, ErrConflict) {
		// Another request linked the same identity first.
		user, err = s.users.FindByExternalIdentity(ctx, in.Provider, in.Subject)
		if err != nil {
			return nil, fmt.Errorf("auth service: find external identity: %w", err)
		}
		return s.markProviderVerified(ctx, user, in)
	}
	if errors.Is(err, ErrUnauthorized) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("auth service: link external identity: %w", err)
	}

	return s.markProviderVerified(ctx, user, in)
}

func (s *Service) markProviderVerified(ctx context.Context, user *models.User, in ExternalIdentityInput) (*models.User, error) {
	if !in.EmailVerified || user.IsVerified() || !strings.EqualFold(user.Email, in.Email) {
		return user, nil
	}
	now := s.now()
	if err := s.users.MarkVerified(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("auth service: mark verified: %w", err)
	}
	user.EmailVerifiedAt = &now
	return user, nil
}

func externalName(in ExternalIdentityInput) string {
	if in.Name != "" {
		return in.Name
	}
	if local, _, ok := strings.Cut(in.Email, "@"); ok && local != "" {
		return local
	}
	return defaultExternalName
}
