package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/charlesng35/authcore/internal/models"
	"github.com/charlesng35/authcore/pkg/crypto"
)

// ForgotPasswordInput holds the address a reset link is requested for.
type ForgotPasswordInput struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

// ResetPasswordInput holds the fields accepted by ResetPassword.
type ResetPasswordInput struct {
	Token                string `json:"token" validate:"required"`
	Email                string `json:"email" validate:"required,email,max=255"`
	Password             string `json:"password" validate:"required"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// ForgotPassword queues a reset link when the address belongs to an account. The
// outcome is the same whether or not the account exists; store failures are logged.
func (s *Service) ForgotPassword(ctx context.Context, in ForgotPasswordInput) error {
	in.Email = normalizeEmail(in.Email)
	if verr := validate(in); verr.HasErrors() {
		return verr
	}

	user, err := s.users.FindByEmail(ctx, in.Email)
	if errors.Is(err, ErrNotFound) {
		s.audit(ctx, AuditEvent{Action: ActionForgotPass, Result: AuditResultFailure, Email: in.Email, Metadata: map[string]any{"reason": "unknown_email"}})
		return nil
	}
	if err != nil {
		s.log.Error("forgot password lookup failed", zap.Error(err))
		return nil
	}

	token, err := s.tokens.IssueActionToken(ctx, user.ID, models.PurposeResetPassword, s.cfg.ResetTokenTTL)
	if err != nil {
		s.log.Error("issue reset token failed", zap.String("user_id", user.ID), zap.Error(err))
		return nil
	}

	s.notify(ctx, user, NotificationResetPassword, token, s.cfg.ResetTokenTTL)
	s.audit(ctx, AuditEvent{Action: ActionForgotPass, Result: AuditResultSuccess, UserID: user.ID, Email: user.Email})
	return nil
}

// ResetPassword consumes a reset token, stores the new password and revokes every
// session of the account in one transaction.
func (s *Service) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	in.Email = normalizeEmail(in.Email)

	verr := validate(in)
	s.checkNewPassword(verr, in.Password, in.PasswordConfirmation)
	if verr.HasErrors() {
		s.observe("reset", verr)
		return verr
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return fmt.Errorf("auth service: hash password: %w", err)
	}

	var user *models.User
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		userID, err := s.tokens.ConsumeActionToken(ctx, in.Token, models.PurposeResetPassword)
		if err != nil {
			return err
		}

		user, err = s.users.FindByID(ctx, userID)
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		if err != nil {
			return err
		}
		if !crypto.EqualStrings(user.Email, in.Email) {
			return ErrInvalidOrExpiredToken
		}

		user.Password = hash
		if err := s.users.Update(ctx, user); err != nil {
			return err
		}

		_, err = s.tokens.RevokeUser(ctx, user.ID)
		return err
	})
	s.observe("reset", err)
	if errors.Is(err, ErrInvalidOrExpiredToken) {
		s.audit(ctx, AuditEvent{Action: ActionResetPassword, Result: AuditResultFailure, Email: in.Email})
		return ErrInvalidOrExpiredToken
	}
	if err != nil {
		return fmt.Errorf("auth service: reset password: %w", err)
	}

	s.audit(ctx, AuditEvent{Action: ActionResetPassword, Result: AuditResultSuccess, UserID: user.ID, Email: user.Email})
	return nil
}
