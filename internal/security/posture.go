package security

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charlesng35/authcore/internal/app"
	iauth "github.com/charlesng35/authcore/internal/auth"
)

// CheckStatus captures the outcome of a posture check.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

const (
	minSecretBytes         = 32
	recommendedSecretBytes = 48
	maxRecommendedAccess   = time.Hour
	maxRecommendedRefresh  = 30 * 24 * time.Hour
	minBcryptCost          = 10
	minArgon2MemoryKiB     = 19 * 1024
)

// Check contains the result of a single posture verification.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
	Details     any         `json:"details,omitempty"`
}

// Result aggregates all checks with a simple status summary.
type Result struct {
	CheckedAt time.Time      `json:"checked_at"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// Failed reports whether any check failed.
func (r Result) Failed() bool {
	return r.Summary[string(StatusFail)] > 0
}

// PostureChecker evaluates the security relevant parts of the runtime configuration.
type PostureChecker struct {
	cfg *app.Config
	now func() time.Time
}

// NewPostureChecker constructs the checker. A nil config degrades every check to a warning.
func NewPostureChecker(cfg *app.Config) *PostureChecker {
	return &PostureChecker{cfg: cfg, now: time.Now}
}

// WithClock overrides the clock used in results (primarily for testing).
func (p *PostureChecker) WithClock(clock func() time.Time) {
	if clock != nil {
		p.now = clock
	}
}

// Run executes all checks and returns their outcome.
func (p *PostureChecker) Run() Result {
	checks := []Check{
		p.checkJWTSecret(),
		p.checkTokenLifetimes(),
		p.checkPasswordHashing(),
		p.checkEmailDelivery(),
		p.checkOAuthCookies(),
	}

	summary := map[string]int{
		string(StatusPass): 0,
		string(StatusWarn): 0,
		string(StatusFail): 0,
	}
	for _, check := range checks {
		summary[string(check.Status)]++
	}

	return Result{
		CheckedAt: p.now().UTC(),
		Checks:    checks,
		Summary:   summary,
	}
}

func notLoaded(id string) Check {
	return Check{
		ID:          id,
		Status:      StatusWarn,
		Message:     "Configuration not loaded; unable to evaluate.",
		Remediation: "Load configuration before running the posture check.",
	}
}

func (p *PostureChecker) checkJWTSecret() Check {
	const id = "jwt_secret_strength"
	if p.cfg == nil {
		return notLoaded(id)
	}

	length := len(strings.TrimSpace(p.cfg.Auth.JWT.Secret))

	switch {
	case length == 0:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     "Missing JWT signing secret.",
			Remediation: "Provide a cryptographically secure signing secret (>= 32 bytes).",
		}
	case length < minSecretBytes:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     fmt.Sprintf("JWT signing secret is too short (%d bytes).", length),
			Remediation: "Use a randomly generated secret of at least 32 bytes.",
			Details:     map[string]any{"length": length},
		}
	case length < recommendedSecretBytes:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("JWT signing secret is %d bytes. Consider increasing to 48+ bytes.", length),
			Remediation: "Increase the length of AUTHCORE_AUTH_JWT_SECRET to at least 48 bytes.",
			Details:     map[string]any{"length": length},
		}
	default:
		return Check{
			ID:      id,
			Status:  StatusPass,
			Message: fmt.Sprintf("JWT signing secret length is %d bytes.", length),
			Details: map[string]any{"length": length},
		}
	}
}

func (p *PostureChecker) checkTokenLifetimes() Check {
	const id = "token_lifetimes"
	if p.cfg == nil {
		return notLoaded(id)
	}

	access := p.cfg.Auth.JWT.TTL
	if access <= 0 {
		access = iauth.DefaultAccessTokenTTL
	}
	refresh := p.cfg.Auth.Session.RefreshTTL
	if refresh <= 0 {
		refresh = iauth.DefaultRefreshTokenTTL
	}
	details := map[string]any{"access_ttl": access.String(), "refresh_ttl": refresh.String()}

	switch {
	case access > maxRecommendedAccess:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Access token TTL (%s) exceeds recommended maximum (%s).", access, maxRecommendedAccess),
			Remediation: "Keep access tokens short lived and rely on refresh rotation.",
			Details:     details,
		}
	case refresh > maxRecommendedRefresh:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Refresh token TTL (%s) exceeds recommended maximum (%s).", refresh, maxRecommendedRefresh),
			Remediation: "Reduce refresh token TTL to 30 days or lower to limit credential exposure.",
			Details:     details,
		}
	case !p.cfg.Auth.Session.InvalidateRotated:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Rotated refresh tokens stay valid; token reuse will not be detected.",
			Remediation: "Set auth.session.invalidate_rotated to true.",
			Details:     details,
		}
	}

	return Check{
		ID:      id,
		Status:  StatusPass,
		Message: fmt.Sprintf("Access tokens live %s and refresh tokens %s.", access, refresh),
		Details: details,
	}
}

func (p *PostureChecker) checkPasswordHashing() Check {
	const id = "password_hashing"
	if p.cfg == nil {
		return notLoaded(id)
	}

	settings := p.cfg.Auth.Password
	algorithm := strings.ToLower(strings.TrimSpace(settings.Algorithm))
	if algorithm == "" {
		algorithm = iauth.AlgorithmArgon2id
	}

	switch algorithm {
	case iauth.AlgorithmBcrypt:
		if settings.BcryptCost > 0 && settings.BcryptCost < minBcryptCost {
			return Check{
				ID:          id,
				Status:      StatusWarn,
				Message:     fmt.Sprintf("bcrypt cost %d is below %d.", settings.BcryptCost, minBcryptCost),
				Remediation: "Raise auth.password.bcrypt_cost to at least 10.",
				Details:     map[string]any{"algorithm": algorithm, "cost": settings.BcryptCost},
			}
		}
	case iauth.AlgorithmArgon2id:
		if settings.Argon2.Memory > 0 && settings.Argon2.Memory < minArgon2MemoryKiB {
			return Check{
				ID:          id,
				Status:      StatusWarn,
				Message:     fmt.Sprintf("Argon2id memory cost %d KiB is below %d KiB.", settings.Argon2.Memory, minArgon2MemoryKiB),
				Remediation: "Raise auth.password.argon2.memory to at least 19456.",
				Details:     map[string]any{"algorithm": algorithm, "memory": settings.Argon2.Memory},
			}
		}
	default:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     fmt.Sprintf("Unsupported password hashing algorithm %q.", settings.Algorithm),
			Remediation: "Use argon2id or bcrypt.",
		}
	}

	return Check{
		ID:      id,
		Status:  StatusPass,
		Message: fmt.Sprintf("Passwords are hashed with %s.", algorithm),
		Details: map[string]any{"algorithm": algorithm},
	}
}

func (p *PostureChecker) checkEmailDelivery() Check {
	const id = "email_delivery"
	if p.cfg == nil {
		return notLoaded(id)
	}

	if p.cfg.Email.SMTP.Enabled {
		return Check{
			ID:      id,
			Status:  StatusPass,
			Message: "SMTP delivery enabled.",
			Details: map[string]any{"host": p.cfg.Email.SMTP.Host},
		}
	}

	if p.cfg.Auth.RequireVerifiedEmail {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "SMTP is disabled while verified email is required; new accounts cannot sign in.",
			Remediation: "Enable email.smtp or disable auth.require_verified_email.",
		}
	}

	return Check{
		ID:          id,
		Status:      StatusWarn,
		Message:     "SMTP is disabled; password reset links will not be delivered.",
		Remediation: "Enable email.smtp to deliver account emails.",
	}
}

func (p *PostureChecker) checkOAuthCookies() Check {
	const id = "oauth_cookie_security"
	if p.cfg == nil {
		return notLoaded(id)
	}

	if !p.cfg.OAuth.Google.Enabled {
		return Check{ID: id, Status: StatusPass, Message: "No OAuth provider enabled."}
	}

	redirect, err := url.Parse(p.cfg.OAuth.Google.RedirectURL)
	if err == nil && redirect.Scheme == "https" && !p.cfg.OAuth.CookieSecure {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "OAuth state cookies are sent without the Secure attribute over HTTPS.",
			Remediation: "Set oauth.cookie_secure to true.",
		}
	}

	return Check{ID: id, Status: StatusPass, Message: "OAuth state cookies configured."}
}
