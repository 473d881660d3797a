package notifications

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/authcore/internal/auth"
)

var fixedNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer("Authcore", "http://localhost:5173/", func() time.Time { return fixedNow })
	require.NoError(t, err)
	return r
}

func TestRenderVerifyEmail(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.Render(auth.NotificationVerifyEmail,
		auth.Recipient{UserID: "user-1", Email: "alice@example.com", Name: "Alice"},
		auth.NotificationPayload{Token: "tok_123", ExpiresAt: fixedNow.Add(60 * time.Minute)},
	)
	require.NoError(t, err)

	link := "http://localhost:5173/email/verify?id=user-1&hash=tok_123"
	require.Equal(t, "Verify your email address", out.Subject)
	require.Contains(t, out.Text, "Hello Alice!")
	require.Contains(t, out.Text, link)
	require.Contains(t, out.Text, "expire in 60 minutes")
	require.Contains(t, out.Text, "Authcore")
	require.Contains(t, out.HTML, `href="http://localhost:5173/email/verify?id=user-1&amp;hash=tok_123"`)
}

func TestRenderResetPasswordEscapesEmail(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.Render(auth.NotificationResetPassword,
		auth.Recipient{UserID: "user-1", Email: "a+b@example.com"},
		auth.NotificationPayload{Token: "reset-token", ExpiresAt: fixedNow.Add(30 * time.Minute)},
	)
	require.NoError(t, err)

	require.Equal(t, "Reset your password", out.Subject)
	require.Contains(t, out.Text, "http://localhost:5173/password/reset?token=reset-token&email=a%2Bb%40example.com")
	require.Contains(t, out.Text, "Hello a+b@example.com!")
	require.Contains(t, out.Text, "expire in 30 minutes")
}

func TestRenderEscapesHTML(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.Render(auth.NotificationVerifyEmail,
		auth.Recipient{UserID: "user-1", Email: "x@example.com", Name: "<script>alert(1)</script>"},
		auth.NotificationPayload{Token: "tok"},
	)
	require.NoError(t, err)
	require.NotContains(t, out.HTML, "<script>")
	require.Contains(t, out.HTML, "&lt;script&gt;")
}

func TestRenderUnknownKind(t *testing.T) {
	r := newTestRenderer(t)

	_, err := r.Render("welcome", auth.Recipient{Email: "x@example.com"}, auth.NotificationPayload{})
	require.Error(t, err)
}

func TestNewRendererRequiresFrontendURL(t *testing.T) {
	_, err := NewRenderer("Authcore", " ", nil)
	require.Error(t, err)
}
