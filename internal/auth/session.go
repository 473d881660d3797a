package auth

import (
	"context"
	"errors"
	"fmt"
)

// LoginInput holds credentials for Login.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies credentials and opens a session. Unknown emails and wrong passwords
// both yield ErrUnauthorized after a full hash verification. The verification gate is
// checked before any token is issued.
func (s *Service) Login(ctx context.Context, in LoginInput, meta ClientMeta) (LoginResult, error) {
	email := normalizeEmail(in.Email)

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return LoginResult{}, fmt.Errorf("auth service: find user: %w", err)
	}

	if user == nil {
		s.hasher.Verify(in.Password, s.dummyHash)
		s.observe("login", ErrUnauthorized)
		s.audit(ctx, AuditEvent{Action: ActionLogin, Result: AuditResultFailure, Email: email})
		return LoginResult{}, ErrUnauthorized
	}

	if in.Password == "" || !s.hasher.Verify(in.Password, user.Password) {
		s.observe("login", ErrUnauthorized)
		s.audit(ctx, AuditEvent{Action: ActionLogin, Result: AuditResultFailure, UserID: user.ID, Email: email})
		return LoginResult{}, ErrUnauthorized
	}

	if s.cfg.RequireVerifiedEmail && !user.IsVerified() {
		s.observe("login", ErrEmailNotVerified)
		s.audit(ctx, AuditEvent{
			Action:   ActionLogin,
			Result:   AuditResultDenied,
			UserID:   user.ID,
			Email:    email,
			Metadata: map[string]any{"reason": "email_not_verified"},
		})
		return LoginResult{}, ErrEmailNotVerified
	}

	pair, err := s.tokens.IssueAccessPair(ctx, user.ID, meta)
	if err != nil {
		s.observe("login", err)
		return LoginResult{}, fmt.Errorf("auth service: issue tokens: %w", err)
	}

	s.observe("login", nil)
	s.audit(ctx, AuditEvent{
		Action:   ActionLogin,
		Result:   AuditResultSuccess,
		UserID:   user.ID,
		Email:    email,
		Metadata: map[string]any{"session_id": pair.SessionID},
	})

	return LoginResult{User: NewPublicUser(user), Tokens: pair}, nil
}

// Logout revokes the session behind an access or refresh token. Without
// CheckRevocation, access tokens of the revoked session stay usable until they expire.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Verify(token, "")
	if err != nil {
		return ErrUnauthorized
	}

	if err := s.tokens.Revoke(ctx, token); err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return ErrUnauthorized
		}
		return fmt.Errorf("auth service: revoke session: %w", err)
	}

	s.audit(ctx, AuditEvent{
		Action:   ActionLogout,
		Result:   AuditResultSuccess,
		UserID:   claims.UserID,
		Metadata: map[string]any{"session_id": claims.SessionID},
	})
	return nil
}

// Refresh exchanges a refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	pair, userID, err := s.tokens.Rotate(ctx, refreshToken)
	if err != nil {
		s.observe("refresh", err)
		if errors.Is(err, ErrInvalidToken) {
			s.audit(ctx, AuditEvent{Action: ActionRefresh, Result: AuditResultFailure})
			return TokenPair{}, ErrUnauthorized
		}
		return TokenPair{}, fmt.Errorf("auth service: rotate session: %w", err)
	}

	s.observe("refresh", nil)
	s.audit(ctx, AuditEvent{
		Action:   ActionRefresh,
		Result:   AuditResultSuccess,
		UserID:   userID,
		Metadata: map[string]any{"session_id": pair.SessionID},
	})
	return pair, nil
}
