package app

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// EnvPrefix prefixes every environment override, e.g. AUTHCORE_AUTH_JWT_SECRET.
const EnvPrefix = "AUTHCORE"

// Config represents the runtime configuration for the authcore service.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Email         EmailConfig         `mapstructure:"email"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	OAuth         OAuthConfig         `mapstructure:"oauth"`
	Monitoring    MonitoringConfig    `mapstructure:"monitoring"`
	Maintenance   MaintenanceConfig   `mapstructure:"maintenance"`
}

// AppConfig carries product level settings used in outbound links and mail.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	FrontendURL string `mapstructure:"frontend_url"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port      int             `mapstructure:"port"`
	LogLevel  string          `mapstructure:"log_level"`
	LogFormat string          `mapstructure:"log_format"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig bounds credential endpoints per client address. Zero requests disables it.
// Store selects process-local ("memory") or shared ("database") counters.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
	Store    string        `mapstructure:"store"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// AuthConfig captures all authentication-related settings.
type AuthConfig struct {
	JWT                  JWTSettings      `mapstructure:"jwt"`
	Session              SessionSettings  `mapstructure:"session"`
	Password             PasswordSettings `mapstructure:"password"`
	Tokens               TokenSettings    `mapstructure:"tokens"`
	RequireVerifiedEmail bool             `mapstructure:"require_verified_email"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret          string        `mapstructure:"secret"`
	Issuer          string        `mapstructure:"issuer"`
	TTL             time.Duration `mapstructure:"access_token_ttl"`
	CheckRevocation bool          `mapstructure:"check_revocation"`
}

// SessionSettings configures refresh tokens and session lifetimes.
type SessionSettings struct {
	RefreshTTL        time.Duration `mapstructure:"refresh_token_ttl"`
	InvalidateRotated bool          `mapstructure:"invalidate_rotated"`
}

// PasswordSettings selects the hashing algorithm and complexity rules.
type PasswordSettings struct {
	Algorithm  string         `mapstructure:"algorithm"`
	BcryptCost int            `mapstructure:"bcrypt_cost"`
	Argon2     Argon2Settings `mapstructure:"argon2"`
	Policy     PolicySettings `mapstructure:"policy"`
}

// Argon2Settings are the Argon2id cost parameters. Memory is in KiB.
type Argon2Settings struct {
	Time      uint32 `mapstructure:"time"`
	Memory    uint32 `mapstructure:"memory"`
	Threads   uint8  `mapstructure:"threads"`
	KeyLength uint32 `mapstructure:"key_length"`
}

// PolicySettings mirrors auth.PasswordPolicy.
type PolicySettings struct {
	MinLength        int  `mapstructure:"min_length"`
	RequireMixedCase bool `mapstructure:"require_mixed_case"`
	RequireNumbers   bool `mapstructure:"require_numbers"`
	RequireSymbols   bool `mapstructure:"require_symbols"`
}

// TokenSettings sets the lifetime of emailed single-use tokens.
type TokenSettings struct {
	VerifyTTL time.Duration `mapstructure:"verify_ttl"`
	ResetTTL  time.Duration `mapstructure:"reset_ttl"`
}

// EmailConfig captures outbound email settings.
type EmailConfig struct {
	SMTP SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig defines SMTP dialer settings for sending email.
type SMTPConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// NotificationsConfig sizes the mail dispatcher.
type NotificationsConfig struct {
	Workers     int           `mapstructure:"workers"`
	QueueSize   int           `mapstructure:"queue_size"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

// OAuthConfig configures external identity providers.
type OAuthConfig struct {
	Google       OAuthProviderConfig `mapstructure:"google"`
	CookieSecure bool                `mapstructure:"cookie_secure"`
	StateTTL     time.Duration       `mapstructure:"state_ttl"`
}

// OAuthProviderConfig holds the client registration of one provider.
type OAuthProviderConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Issuer       string   `mapstructure:"issuer"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	Scopes       []string `mapstructure:"scopes"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// MaintenanceConfig schedules background cleanup.
type MaintenanceConfig struct {
	CleanupSchedule    string `mapstructure:"cleanup_schedule"`
	AuditRetentionDays int    `mapstructure:"audit_retention_days"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	var err error

	switch strings.ToLower(strings.TrimSpace(c.Database.Driver)) {
	case "", "sqlite", "postgres", "postgresql", "mysql":
	default:
		err = multierr.Append(err, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}

	if strings.TrimSpace(c.Auth.JWT.Secret) == "" {
		err = multierr.Append(err, errors.New("auth.jwt.secret must be configured"))
	}

	switch strings.ToLower(strings.TrimSpace(c.Server.RateLimit.Store)) {
	case "", "memory", "database":
	default:
		err = multierr.Append(err, fmt.Errorf("server.rate_limit.store %q is not supported", c.Server.RateLimit.Store))
	}

	switch strings.ToLower(strings.TrimSpace(c.Auth.Password.Algorithm)) {
	case "", "argon2id", "bcrypt":
	default:
		err = multierr.Append(err, fmt.Errorf("auth.password.algorithm %q is not supported", c.Auth.Password.Algorithm))
	}

	if frontend, parseErr := url.Parse(strings.TrimSpace(c.App.FrontendURL)); parseErr != nil || frontend.Scheme == "" || frontend.Host == "" {
		err = multierr.Append(err, fmt.Errorf("app.frontend_url %q must be an absolute URL", c.App.FrontendURL))
	}

	if c.OAuth.Google.Enabled {
		if strings.TrimSpace(c.OAuth.Google.ClientID) == "" || strings.TrimSpace(c.OAuth.Google.ClientSecret) == "" {
			err = multierr.Append(err, errors.New("oauth.google client_id and client_secret are required when enabled"))
		}
		if strings.TrimSpace(c.OAuth.Google.RedirectURL) == "" {
			err = multierr.Append(err, errors.New("oauth.google.redirect_url is required when enabled"))
		}
	}

	if c.Email.SMTP.Enabled && strings.TrimSpace(c.Email.SMTP.Host) == "" {
		err = multierr.Append(err, errors.New("email.smtp.host is required when smtp is enabled"))
	}

	return err
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "authcore")
	v.SetDefault("app.frontend_url", "http://localhost:5173")

	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.rate_limit.requests", 10)
	v.SetDefault("server.rate_limit.window", "1m")
	v.SetDefault("server.rate_limit.store", "memory")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/authcore.sqlite")
	v.SetDefault("database.dsn", "")
	for _, driver := range []string{"postgres", "mysql"} {
		v.SetDefault("database."+driver+".host", "localhost")
		v.SetDefault("database."+driver+".database", "authcore")
		v.SetDefault("database."+driver+".username", "")
		v.SetDefault("database."+driver+".password", "")
	}
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.mysql.port", 3306)

	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.issuer", "authcore")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")
	v.SetDefault("auth.jwt.check_revocation", false)
	v.SetDefault("auth.session.refresh_token_ttl", "720h") // 30 days
	v.SetDefault("auth.session.invalidate_rotated", true)
	v.SetDefault("auth.password.algorithm", "argon2id")
	v.SetDefault("auth.password.bcrypt_cost", 12)
	v.SetDefault("auth.password.argon2.time", 2)
	v.SetDefault("auth.password.argon2.memory", 64*1024)
	v.SetDefault("auth.password.argon2.threads", 4)
	v.SetDefault("auth.password.argon2.key_length", 32)
	v.SetDefault("auth.password.policy.min_length", 8)
	v.SetDefault("auth.password.policy.require_mixed_case", true)
	v.SetDefault("auth.password.policy.require_numbers", true)
	v.SetDefault("auth.password.policy.require_symbols", true)
	v.SetDefault("auth.tokens.verify_ttl", "60m")
	v.SetDefault("auth.tokens.reset_ttl", "60m")
	v.SetDefault("auth.require_verified_email", true)

	v.SetDefault("email.smtp.enabled", false)
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.username", "")
	v.SetDefault("email.smtp.password", "")
	v.SetDefault("email.smtp.from", "")
	v.SetDefault("email.smtp.use_tls", true)
	v.SetDefault("email.smtp.timeout", "10s")

	v.SetDefault("notifications.workers", 2)
	v.SetDefault("notifications.queue_size", 100)
	v.SetDefault("notifications.max_attempts", 3)
	v.SetDefault("notifications.backoff", "500ms")

	v.SetDefault("oauth.google.enabled", false)
	v.SetDefault("oauth.google.issuer", "https://accounts.google.com")
	v.SetDefault("oauth.google.client_id", "")
	v.SetDefault("oauth.google.client_secret", "")
	v.SetDefault("oauth.google.redirect_url", "")
	v.SetDefault("oauth.google.scopes", []string{"openid", "profile", "email"})
	v.SetDefault("oauth.cookie_secure", false)
	v.SetDefault("oauth.state_ttl", "10m")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)

	v.SetDefault("maintenance.cleanup_schedule", "@every 1h")
	v.SetDefault("maintenance.audit_retention_days", 90)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
