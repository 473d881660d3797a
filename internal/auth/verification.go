package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/charlesng35/authcore/internal/models"
)

// VerifyEmail confirms the address of userID with a token from the verification link.
// The link must carry a token issued to that user. An already verified account succeeds
// without side effects even after its consumed token has been purged.
func (s *Service) VerifyEmail(ctx context.Context, userID, token string) error {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		s.audit(ctx, AuditEvent{Action: ActionVerifyEmail, Result: AuditResultFailure, Metadata: map[string]any{"reason": "unknown_user"}})
		return ErrInvalidLink
	}
	if err != nil {
		return fmt.Errorf("auth service: find user: %w", err)
	}
	if user.IsVerified() {
		return nil
	}

	matched, err := s.tokens.MatchActionToken(ctx, user.ID, token, models.PurposeVerifyEmail)
	if err != nil {
		return fmt.Errorf("auth service: match verification token: %w", err)
	}
	if !matched {
		s.audit(ctx, AuditEvent{Action: ActionVerifyEmail, Result: AuditResultFailure, UserID: user.ID, Email: user.Email})
		return ErrInvalidLink
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.tokens.ConsumeActionToken(ctx, token, models.PurposeVerifyEmail); err != nil {
			return err
		}
		return s.users.MarkVerified(ctx, user.ID, s.now())
	})
	if errors.Is(err, ErrInvalidOrExpiredToken) {
		// A concurrent request may have verified the account with this same link.
		if current, findErr := s.users.FindByID(ctx, user.ID); findErr == nil && current.IsVerified() {
			return nil
		}
		s.audit(ctx, AuditEvent{Action: ActionVerifyEmail, Result: AuditResultFailure, UserID: user.ID, Email: user.Email})
		return ErrInvalidOrExpiredToken
	}
	if err != nil {
		return fmt.Errorf("auth service: verify email: %w", err)
	}

	s.audit(ctx, AuditEvent{Action: ActionVerifyEmail, Result: AuditResultSuccess, UserID: user.ID, Email: user.Email})
	return nil
}

// ResendVerification issues a fresh verification token for a pending account and
// queues the email. Earlier verification links stop working.
func (s *Service) ResendVerification(ctx context.Context, userID string) error {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return ErrUnauthorized
	}
	if err != nil {
		return fmt.Errorf("auth service: find user: %w", err)
	}

	if user.IsVerified() {
		return nil
	}

	token, err := s.tokens.IssueActionToken(ctx, user.ID, models.PurposeVerifyEmail, s.cfg.VerifyTokenTTL)
	if err != nil {
		return fmt.Errorf("auth service: issue verification token: %w", err)
	}

	s.notify(ctx, user, NotificationVerifyEmail, token, s.cfg.VerifyTokenTTL)
	s.audit(ctx, AuditEvent{Action: ActionResendVerify, Result: AuditResultSuccess, UserID: user.ID, Email: user.Email})
	return nil
}
