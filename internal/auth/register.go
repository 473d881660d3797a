package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charlesng35/authcore/internal/models"
)

const emailTakenMessage = "The email has already been taken."

// RegisterInput holds the fields accepted by Register.
type RegisterInput struct {
	Name                 string `json:"name" validate:"required,notblank,min=3,max=255"`
	Email                string `json:"email" validate:"required,email,max=255"`
	Password             string `json:"password" validate:"required"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// Register creates a pending account, issues its verification token and queues the
// verification email. Every violation is reported in one *ValidationError.
func (s *Service) Register(ctx context.Context, in RegisterInput) (PublicUser, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)

	verr := validate(in)
	s.checkNewPassword(verr, in.Password, in.PasswordConfirmation)

	if _, invalid := verr.Fields["email"]; !invalid {
		exists, err := s.users.ExistsByEmail(ctx, in.Email)
		if err != nil {
			return PublicUser{}, fmt.Errorf("auth service: check email: %w", err)
		}
		if exists {
			verr.Add("email", emailTakenMessage)
			verr.cause = ErrConflict
		}
	}

	if verr.HasErrors() {
		s.observe("register", verr)
		s.audit(ctx, AuditEvent{Action: ActionRegister, Result: AuditResultFailure, Email: in.Email})
		return PublicUser{}, verr
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return PublicUser{}, fmt.Errorf("auth service: hash password: %w", err)
	}

	user := &models.User{Name: in.Name, Email: in.Email, Password: hash}
	var token string

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, ErrConflict) {
				return conflictError("email", emailTakenMessage)
			}
			return err
		}

		var err error
		token, err = s.tokens.IssueActionToken(ctx, user.ID, models.PurposeVerifyEmail, s.cfg.VerifyTokenTTL)
		return err
	})
	if err != nil {
		s.observe("register", err)
		var conflict *ValidationError
		if errors.As(err, &conflict) {
			s.audit(ctx, AuditEvent{Action: ActionRegister, Result: AuditResultFailure, Email: in.Email})
			return PublicUser{}, conflict
		}
		return PublicUser{}, fmt.Errorf("auth service: create user: %w", err)
	}

	s.notify(ctx, user, NotificationVerifyEmail, token, s.cfg.VerifyTokenTTL)
	s.observe("register", nil)
	s.audit(ctx, AuditEvent{Action: ActionRegister, Result: AuditResultSuccess, UserID: user.ID, Email: user.Email})

	return NewPublicUser(user), nil
}
