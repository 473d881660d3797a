package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/authcore/internal/models"
	"github.com/charlesng35/authcore/pkg/logger"
	"github.com/charlesng35/authcore/pkg/metrics"
	"github.com/charlesng35/authcore/pkg/validator"
)

// Audit actions recorded by the Service.
const (
	ActionRegister      = "auth.register"
	ActionLogin         = "auth.login"
	ActionLogout        = "auth.logout"
	ActionRefresh       = "auth.refresh"
	ActionVerifyEmail   = "auth.email.verify"
	ActionResendVerify  = "auth.email.resend"
	ActionForgotPass    = "auth.password.forgot"
	ActionResetPassword = "auth.password.reset"
	ActionExternalLogin = "auth.external.login"
)

const dummyPassword = "authcore-timing-equaliser"

// Config holds the account rules enforced by the Service.
type Config struct {
	Policy PasswordPolicy
	// RequireVerifiedEmail blocks Login until the email address is confirmed.
	RequireVerifiedEmail bool
	// CheckRevocation makes Authenticate reject access tokens of revoked sessions.
	CheckRevocation bool
	VerifyTokenTTL  time.Duration
	ResetTokenTTL   time.Duration
	Clock           func() time.Time
	Logger          *zap.Logger
}

// Dependencies are the collaborators injected into the Service. Notifier and Auditor
// are optional.
type Dependencies struct {
	Users      CredentialStore
	Hasher     PasswordHasher
	Tokens     *TokenIssuer
	Transactor Transactor
	Notifier   Notifier
	Auditor    Auditor
}

// PublicUser is the user projection returned to callers. It never carries the hash.
type PublicUser struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
	CreatedAt       time.Time  `json:"created_at"`
}

// NewPublicUser projects a stored user.
func NewPublicUser(user *models.User) PublicUser {
	if user == nil {
		return PublicUser{}
	}
	return PublicUser{
		ID:              user.ID,
		Name:            user.Name,
		Email:           user.Email,
		EmailVerifiedAt: user.EmailVerifiedAt,
		CreatedAt:       user.CreatedAt,
	}
}

// Principal is the identity behind a valid access token.
type Principal struct {
	UserID    string
	SessionID string
	ExpiresAt time.Time
}

// LoginResult is returned by Login and LoginWithExternalIdentity.
type LoginResult struct {
	User   PublicUser
	Tokens TokenPair
}

// Service owns the account state machine: registration, login, session refresh and
// logout, email verification and password reset.
type Service struct {
	users     CredentialStore
	hasher    PasswordHasher
	tokens    *TokenIssuer
	tx        Transactor
	notifier  Notifier
	auditor   Auditor
	cfg       Config
	now       func() time.Time
	log       *zap.Logger
	dummyHash string
}

// NewService validates the dependencies and returns a ready Service.
func NewService(deps Dependencies, cfg Config) (*Service, error) {
	if deps.Users == nil {
		return nil, errors.New("auth service: credential store is required")
	}
	if deps.Hasher == nil {
		return nil, errors.New("auth service: password hasher is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("auth service: token issuer is required")
	}
	if deps.Transactor == nil {
		return nil, errors.New("auth service: transactor is required")
	}

	notifier := deps.Notifier
	if notifier == nil {
		notifier = noopNotifier{}
	}
	auditor := deps.Auditor
	if auditor == nil {
		auditor = noopAuditor{}
	}

	if limiter, ok := deps.Hasher.(interface{ MaxPasswordBytes() int }); ok {
		if limit := limiter.MaxPasswordBytes(); limit > 0 && (cfg.Policy.MaxBytes == 0 || cfg.Policy.MaxBytes > limit) {
			cfg.Policy.MaxBytes = limit
		}
	}

	if cfg.VerifyTokenTTL <= 0 {
		cfg.VerifyTokenTTL = DefaultActionTokenTTL
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = DefaultActionTokenTTL
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	log := cfg.Logger
	if log == nil {
		log = logger.WithModule("auth")
	}

	dummyHash, err := deps.Hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("auth service: prepare dummy hash: %w", err)
	}

	return &Service{
		users:     deps.Users,
		hasher:    deps.Hasher,
		tokens:    deps.Tokens,
		tx:        deps.Transactor,
		notifier:  notifier,
		auditor:   auditor,
		cfg:       cfg,
		now:       clock,
		log:       log,
		dummyHash: dummyHash,
	}, nil
}

// Authenticate resolves an access token into a Principal.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	claims, err := s.tokens.Verify(accessToken, TokenTypeAccess)
	if err != nil {
		return nil, ErrUnauthorized
	}

	if s.cfg.CheckRevocation {
		active, err := s.tokens.SessionActive(ctx, claims.SessionID)
		if err != nil {
			return nil, fmt.Errorf("auth service: check session: %w", err)
		}
		if !active {
			return nil, ErrUnauthorized
		}
	}

	principal := &Principal{
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
	}
	if claims.ExpiresAt != nil {
		principal.ExpiresAt = claims.ExpiresAt.Time
	}
	return principal, nil
}

// CurrentUser returns the public projection of an authenticated user.
func (s *Service) CurrentUser(ctx context.Context, userID string) (PublicUser, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return PublicUser{}, ErrUnauthorized
	}
	if err != nil {
		return PublicUser{}, fmt.Errorf("auth service: load user: %w", err)
	}
	return NewPublicUser(user), nil
}

// validate runs the struct rules of input and returns every violation.
func validate(input any) *ValidationError {
	verr := NewValidationError()
	if err := validator.ValidateStruct(input); err != nil {
		var failures validator.ValidationErrors
		if errors.As(err, &failures) {
			verr.Merge(failures.Fields())
		} else {
			verr.Add("input", err.Error())
		}
	}
	return verr
}

// checkNewPassword applies the password policy and the optional confirmation match.
func (s *Service) checkNewPassword(verr *ValidationError, password, confirmation string) {
	if password == "" {
		return
	}
	for _, violation := range s.cfg.Policy.Check(password) {
		verr.Add("password", violation)
	}
	if confirmation != "" && confirmation != password {
		verr.Add("password", "The password field confirmation does not match.")
	}
}

func (s *Service) notify(ctx context.Context, user *models.User, kind NotificationKind, token string, ttl time.Duration) {
	recipient := Recipient{UserID: user.ID, Email: user.Email, Name: user.Name}
	payload := NotificationPayload{Token: token, ExpiresAt: s.now().Add(ttl)}
	if err := s.notifier.Send(ctx, recipient, kind, payload); err != nil {
		s.log.Warn("notification not queued",
			zap.String("kind", string(kind)),
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}
}

func (s *Service) audit(ctx context.Context, event AuditEvent) {
	s.auditor.Record(ctx, event)
}

func (s *Service) observe(operation string, err error) {
	result := AuditResultSuccess
	if err != nil {
		result = AuditResultFailure
	}
	metrics.AuthAttempts.WithLabelValues(operation, result).Inc()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
