package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/authcore/internal/auth"
	"github.com/charlesng35/authcore/internal/database/testutil"
	"github.com/charlesng35/authcore/internal/store"
	"github.com/charlesng35/authcore/pkg/crypto"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentNotification struct {
	Recipient auth.Recipient
	Kind      auth.NotificationKind
	Payload   auth.NotificationPayload
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Send(_ context.Context, recipient auth.Recipient, kind auth.NotificationKind, payload auth.NotificationPayload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{Recipient: recipient, Kind: kind, Payload: payload})
	return nil
}

func (n *recordingNotifier) All() []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentNotification(nil), n.sent...)
}

// Last returns the most recent token sent of kind.
func (n *recordingNotifier) Last(t *testing.T, kind auth.NotificationKind) string {
	t.Helper()
	all := n.All()
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Kind == kind {
			return all[i].Payload.Token
		}
	}
	t.Fatalf("no %s notification sent", kind)
	return ""
}

type recordingAuditor struct {
	mu     sync.Mutex
	events []auth.AuditEvent
}

func (a *recordingAuditor) Record(_ context.Context, event auth.AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
}

func (a *recordingAuditor) Actions(result string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, event := range a.events {
		if event.Result == result {
			out = append(out, event.Action)
		}
	}
	return out
}

type harness struct {
	db       *gorm.DB
	clock    *testClock
	issuer   *auth.TokenIssuer
	service  *auth.Service
	notifier *recordingNotifier
	auditor  *recordingAuditor
	users    *store.UserRepository
	sessions *store.SessionRepository
	tokens   *store.ActionTokenRepository
}

type harnessSettings struct {
	service *auth.Config
	issuer  *auth.TokenIssuerConfig
	hasher  *auth.HasherConfig
}

type harnessOption func(*harnessSettings)

func withInvalidateRotated(enabled bool) harnessOption {
	return func(s *harnessSettings) { s.issuer.InvalidateRotated = enabled }
}

func withCheckRevocation() harnessOption {
	return func(s *harnessSettings) { s.service.CheckRevocation = true }
}

func withoutVerifiedGate() harnessOption {
	return func(s *harnessSettings) { s.service.RequireVerifiedEmail = false }
}

func withBcrypt() harnessOption {
	return func(s *harnessSettings) {
		s.hasher.Algorithm = auth.AlgorithmBcrypt
		s.hasher.BcryptCost = 4
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := newTestClock()

	users := store.NewUserRepository(db)
	sessions := store.NewSessionRepository(db)
	tokens := store.NewActionTokenRepository(db)
	tx := store.NewTransactor(db)

	jwtService, err := auth.NewJWTService(auth.JWTConfig{
		Secret:         "test-secret",
		Issuer:         "authcore-test",
		AccessTokenTTL: 15 * time.Minute,
		Clock:          clock.Now,
	})
	require.NoError(t, err)

	cfg := auth.Config{
		Policy:               auth.DefaultPasswordPolicy(),
		RequireVerifiedEmail: true,
		Clock:                clock.Now,
		Logger:               zap.NewNop(),
	}
	issuerCfg := auth.TokenIssuerConfig{
		RefreshTokenTTL:   24 * time.Hour,
		InvalidateRotated: true,
		Clock:             clock.Now,
		Logger:            zap.NewNop(),
	}
	hasherCfg := auth.HasherConfig{
		Argon2: crypto.Argon2Parameters{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLength: 32},
	}
	settings := harnessSettings{service: &cfg, issuer: &issuerCfg, hasher: &hasherCfg}
	for _, opt := range opts {
		opt(&settings)
	}

	issuer, err := auth.NewTokenIssuer(jwtService, sessions, tokens, tx, issuerCfg)
	require.NoError(t, err)

	hasher, err := auth.NewPasswordHasher(hasherCfg)
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	auditor := &recordingAuditor{}

	service, err := auth.NewService(auth.Dependencies{
		Users:      users,
		Hasher:     hasher,
		Tokens:     issuer,
		Transactor: tx,
		Notifier:   notifier,
		Auditor:    auditor,
	}, cfg)
	require.NoError(t, err)

	return &harness{
		db:       db,
		clock:    clock,
		issuer:   issuer,
		service:  service,
		notifier: notifier,
		auditor:  auditor,
		users:    users,
		sessions: sessions,
		tokens:   tokens,
	}
}

// registerVerified registers an account and confirms it through the emailed link.
func (h *harness) registerVerified(t *testing.T, name, email, password string) auth.PublicUser {
	t.Helper()
	ctx := context.Background()

	user, err := h.service.Register(ctx, auth.RegisterInput{Name: name, Email: email, Password: password})
	require.NoError(t, err)
	require.NoError(t, h.service.VerifyEmail(ctx, user.ID, h.notifier.Last(t, auth.NotificationVerifyEmail)))
	return user
}
