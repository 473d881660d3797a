package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/authcore/internal/api"
	"github.com/charlesng35/authcore/internal/app"
	iauth "github.com/charlesng35/authcore/internal/auth"
	sharedtestutil "github.com/charlesng35/authcore/internal/database/testutil"
	"github.com/charlesng35/authcore/internal/monitoring"
	"github.com/charlesng35/authcore/internal/oauth"
	"github.com/charlesng35/authcore/internal/services"
	"github.com/charlesng35/authcore/internal/store"
	"github.com/charlesng35/authcore/pkg/crypto"
)

// FrontendURL is the frontend base used by the test configuration.
const FrontendURL = "http://frontend.test"

// Clock is a mutable time source shared by every service of an Env.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Notification is one captured notifier call.
type Notification struct {
	Recipient iauth.Recipient
	Kind      iauth.NotificationKind
	Payload   iauth.NotificationPayload
}

// Outbox captures notifications instead of mailing them.
type Outbox struct {
	mu   sync.Mutex
	sent []Notification
}

func (o *Outbox) Send(_ context.Context, recipient iauth.Recipient, kind iauth.NotificationKind, payload iauth.NotificationPayload) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, Notification{Recipient: recipient, Kind: kind, Payload: payload})
	return nil
}

// Count returns the number of notifications of kind sent to email.
func (o *Outbox) Count(email string, kind iauth.NotificationKind) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	count := 0
	for _, n := range o.sent {
		if n.Recipient.Email == email && n.Kind == kind {
			count++
		}
	}
	return count
}

// LastToken returns the most recent token of kind sent to email.
func (o *Outbox) LastToken(t *testing.T, email string, kind iauth.NotificationKind) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.sent) - 1; i >= 0; i-- {
		if o.sent[i].Recipient.Email == email && o.sent[i].Kind == kind {
			return o.sent[i].Payload.Token
		}
	}
	t.Fatalf("no %s notification sent to %s", kind, email)
	return ""
}

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
	Config *app.Config
	Auth   *iauth.Service
	Audit  *services.AuditService
	Clock  *Clock
	Outbox *Outbox
}

// Option customises the Env before the router is built.
type Option func(*envOptions)

type envOptions struct {
	configure []func(*app.Config)
	providers []oauth.Provider
}

// WithConfig adjusts the configuration used to build the Env.
func WithConfig(fn func(*app.Config)) Option {
	return func(o *envOptions) { o.configure = append(o.configure, fn) }
}

// WithOAuthProvider mounts provider under /oauth/{name}.
func WithOAuthProvider(provider oauth.Provider) Option {
	return func(o *envOptions) { o.providers = append(o.providers, provider) }
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...Option) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	var options envOptions
	for _, opt := range opts {
		opt(&options)
	}

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())
	clock := &Clock{now: time.Now().UTC().Truncate(time.Second)}

	cfg := &app.Config{
		App: app.AppConfig{Name: "authcore", FrontendURL: FrontendURL},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "test-suite-super-secret-key-32-bytes!!",
				Issuer: "test-suite",
				TTL:    15 * time.Minute,
			},
			Session: app.SessionSettings{
				RefreshTTL:        24 * time.Hour,
				InvalidateRotated: true,
			},
			Password: app.PasswordSettings{
				Algorithm: iauth.AlgorithmArgon2id,
				Argon2:    app.Argon2Settings{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLength: 32},
				Policy: app.PolicySettings{
					MinLength:        8,
					RequireMixedCase: true,
					RequireNumbers:   true,
					RequireSymbols:   true,
				},
			},
			Tokens:               app.TokenSettings{VerifyTTL: time.Hour, ResetTTL: time.Hour},
			RequireVerifiedEmail: true,
		},
		OAuth: app.OAuthConfig{StateTTL: 10 * time.Minute},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
	}
	for _, fn := range options.configure {
		fn(cfg)
	}

	users := store.NewUserRepository(db)
	sessions := store.NewSessionRepository(db)
	tokens := store.NewActionTokenRepository(db)
	tx := store.NewTransactor(db)

	jwtCfg := cfg.Auth.JWTServiceConfig()
	jwtCfg.Clock = clock.Now
	jwtSvc, err := iauth.NewJWTService(jwtCfg)
	require.NoError(t, err)

	issuerCfg := cfg.Auth.TokenIssuerConfig()
	issuerCfg.Clock = clock.Now
	issuerCfg.Logger = zap.NewNop()
	issuer, err := iauth.NewTokenIssuer(jwtSvc, sessions, tokens, tx, issuerCfg)
	require.NoError(t, err)

	hasher, err := iauth.NewPasswordHasher(cfg.Auth.HasherConfig())
	require.NoError(t, err)

	audit, err := services.NewAuditService(db, services.WithAuditClock(clock.Now), services.WithAuditLogger(zap.NewNop()))
	require.NoError(t, err)

	outbox := &Outbox{}
	svcCfg := cfg.Auth.ServiceConfig()
	svcCfg.Clock = clock.Now
	svcCfg.Logger = zap.NewNop()
	svc, err := iauth.NewService(iauth.Dependencies{
		Users:      users,
		Hasher:     hasher,
		Tokens:     issuer,
		Transactor: tx,
		Notifier:   outbox,
		Auditor:    audit,
	}, svcCfg)
	require.NoError(t, err)

	health := monitoring.NewHealthManager(monitoring.WithDatabase(db, time.Second))

	router, err := api.NewRouter(api.Dependencies{
		Config:         cfg,
		Auth:           svc,
		Health:         health,
		OAuthProviders: options.providers,
	})
	require.NoError(t, err)

	return &Env{
		T:      t,
		DB:     db,
		Router: router,
		Config: cfg,
		Auth:   svc,
		Audit:  audit,
		Clock:  clock,
		Outbox: outbox,
	}
}

// TokenPair mirrors the login and refresh response payload.
type TokenPair struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"`
	User         *UserPayload `json:"user"`
}

// UserPayload captures the user fields returned from auth endpoints.
type UserPayload struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
}

// Register creates an account through the API and returns it.
func (e *Env) Register(name, email, password string) UserPayload {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/register", map[string]string{
		"name":                  name,
		"email":                 email,
		"password":              password,
		"password_confirmation": password,
	}, "")
	require.Equal(e.T, http.StatusCreated, w.Code, w.Body.String())

	var user UserPayload
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &user)
	return user
}

// RegisterVerified creates an account and follows its verification link.
func (e *Env) RegisterVerified(name, email, password string) UserPayload {
	e.T.Helper()

	user := e.Register(name, email, password)
	token := e.Outbox.LastToken(e.T, user.Email, iauth.NotificationVerifyEmail)
	w := e.Request(http.MethodGet, "/api/auth/email/verify/"+user.ID+"/"+token, nil, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())
	return user
}

// Login authenticates with email and password and returns the issued token pair.
func (e *Env) Login(email, password string) TokenPair {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	var result TokenPair
	require.NoError(e.T, json.Unmarshal(w.Body.Bytes(), &result))
	require.NotEmpty(e.T, result.AccessToken)
	require.NotEmpty(e.T, result.RefreshToken)
	require.Equal(e.T, "Bearer", result.TokenType)
	require.Greater(e.T, result.ExpiresIn, 0)
	return result
}

// DecodeResponse parses the standard API envelope from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Message string              `json:"message"`
	Code    string              `json:"code"`
	Data    json.RawMessage     `json:"data"`
	Errors  map[string][]string `json:"errors"`
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// RawRequest executes a request with a pre-encoded body.
func (e *Env) RawRequest(method, path, body string) *httptest.ResponseRecorder {
	e.T.Helper()

	req, err := http.NewRequest(method, path, bytes.NewBufferString(body))
	require.NoError(e.T, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// HashedToken returns the stored form of an emailed token.
func HashedToken(token string) string {
	return crypto.HashToken(token)
}
