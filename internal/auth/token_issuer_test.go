package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/authcore/internal/auth"
	"github.com/charlesng35/authcore/internal/models"
	"github.com/charlesng35/authcore/pkg/crypto"
)

func createUser(t *testing.T, h *harness, email string) *models.User {
	t.Helper()
	user := &models.User{Name: "Alice", Email: email, Password: "hash"}
	require.NoError(t, h.users.Create(context.Background(), user))
	return user
}

func TestIssueAccessPairCreatesSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := createUser(t, h, "alice@example.com")

	pair, err := h.issuer.IssueAccessPair(ctx, user.ID, auth.ClientMeta{IPAddress: " 10.0.0.1 ", UserAgent: "unit-test"})
	require.NoError(t, err)

	require.Equal(t, "Bearer", pair.TokenType)
	require.Equal(t, 15*time.Minute, pair.ExpiresIn)
	require.True(t, pair.AccessExpiresAt.Equal(h.clock.Now().Add(15*time.Minute)))
	require.True(t, pair.RefreshExpiresAt.Equal(h.clock.Now().Add(24*time.Hour)))

	session, err := h.sessions.FindByID(ctx, pair.SessionID)
	require.NoError(t, err)
	require.Equal(t, user.ID, session.UserID)
	require.Equal(t, "10.0.0.1", session.IPAddress)
	require.Equal(t, crypto.HashToken(pair.RefreshToken), session.RefreshTokenHash)
	require.NotEqual(t, pair.RefreshToken, session.RefreshTokenHash)

	claims, err := h.issuer.Verify(pair.AccessToken, auth.TokenTypeAccess)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, pair.SessionID, claims.SessionID)
}

func TestVerifyRejectsUniformly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := createUser(t, h, "alice@example.com")

	pair, err := h.issuer.IssueAccessPair(ctx, user.ID, auth.ClientMeta{})
	require.NoError(t, err)

	_, err = h.issuer.Verify(pair.RefreshToken, auth.TokenTypeAccess)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = h.issuer.Verify(pair.AccessToken+"x", auth.TokenTypeAccess)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = h.issuer.Verify("", auth.TokenTypeAccess)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	h.clock.Advance(15*time.Minute - time.Second)
	_, err = h.issuer.Verify(pair.AccessToken, auth.TokenTypeAccess)
	require.NoError(t, err)

	h.clock.Advance(2 * time.Second)
	_, err = h.issuer.Verify(pair.AccessToken, auth.TokenTypeAccess)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestRotateInvalidatesPreviousRefreshToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := createUser(t, h, "alice@example.com")

	first, err := h.issuer.IssueAccessPair(ctx, user.ID, auth.ClientMeta{})
	require.NoError(t, err)

	second, owner, err := h.issuer.Rotate(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, owner)
	require.Equal(t, first.SessionID, second.SessionID)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, _, err = h.issuer.Rotate(ctx, first.RefreshToken)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	// Reuse of a rotated token revokes the whole family.
	_, _, err = h.issuer.Rotate(ctx, second.RefreshToken)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	session, err := h.sessions.FindByID(ctx, first.SessionID)
	require.NoError(t, err)
	require.NotNil(t, session.RevokedAt)
}

func TestRotateWithoutInvalidationKeepsOlderTokens(t *testing.T) {
	h := newHarness(t, withInvalidateRotated(false))
	ctx := context.Background()
	user := createUser(t, h, "alice@example.com")

	first, err := h.issuer.IssueAccessPair(ctx, user.ID, auth.ClientMeta{})
	require.NoError(t, err)

	_, _, err = h.issuer.Rotate(ctx, first.RefreshToken)
	require.NoError(t, err)
	_, _, err = h.issuer.Rotate(ctx, first.RefreshToken)
	require.NoError(t, err)
}

func TestRotateRejectsRevokedAndExpiredSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := createUser(t, h, "alice@example.com")

	revoked, err := h.issuer.IssueAccessPair(ctx, user.ID, auth.ClientMeta{})
	require.NoError(t, err)
	require.NoError(t, h.issuer.Revoke(ctx, revoked.AccessToken))

	_, _, err = h.issuer.Rotate(ctx, revoked.RefreshToken)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	expiring, err := h.issuer.IssueAccessPair(ctx, user.ID, auth.ClientMeta{})
	require.NoError(t, err)
	h.clock.Advance(25 * time.Hour)

	_, _, err = h.issuer.Rotate(ctx, expiring.RefreshToken)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestRevokeUserEndsEverySession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := createUser(t, h, "alice@example.com")

	var pairs []auth.TokenPair
	for i := 0; i < 3; i++ {
		pair, err := h.issuer.IssueAccessPair(ctx, user.ID, auth.ClientMeta{})
		require.NoError(t, err)
		pairs = append(pairs, pair)
	}

	revoked, err := h.issuer.RevokeUser(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), revoked)

	for _, pair := range pairs {
		active, err := h.issuer.SessionActive(ctx, pair.SessionID)
		require.NoError(t, err)
		require.False(t, active)
	}

	active, err := h.issuer.SessionActive(ctx, "missing")
	require.NoError(t, err)
	require.False(t, active)
}

func TestActionTokenStoredHashedAndReissueInvalidatesPrevious(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := createUser(t, h, "alice@example.com")

	first, err := h.issuer.IssueActionToken(ctx, user.ID, models.PurposeVerifyEmail, time.Hour)
	require.NoError(t, err)

	var stored models.ActionToken
	require.NoError(t, h.db.Take(&stored, "user_id = ?", user.ID).Error)
	require.Equal(t, crypto.HashToken(first), stored.TokenHash)
	require.NotEqual(t, first, stored.TokenHash)

	second, err := h.issuer.IssueActionToken(ctx, user.ID, models.PurposeVerifyEmail, time.Hour)
	require.NoError(t, err)

	_, err = h.issuer.ConsumeActionToken(ctx, first, models.PurposeVerifyEmail)
	require.ErrorIs(t, err, auth.ErrInvalidOrExpiredToken)

	owner, err := h.issuer.ConsumeActionToken(ctx, second, models.PurposeVerifyEmail)
	require.NoError(t, err)
	require.Equal(t, user.ID, owner)
}

func TestConsumeActionTokenIsSingleUse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := createUser(t, h, "alice@example.com")

	token, err := h.issuer.IssueActionToken(ctx, user.ID, models.PurposeResetPassword, time.Hour)
	require.NoError(t, err)

	_, err = h.issuer.ConsumeActionToken(ctx, token, models.PurposeVerifyEmail)
	require.ErrorIs(t, err, auth.ErrInvalidOrExpiredToken, "purpose is part of the token scope")

	_, err = h.issuer.ConsumeActionToken(ctx, token, models.PurposeResetPassword)
	require.NoError(t, err)

	_, err = h.issuer.ConsumeActionToken(ctx, token, models.PurposeResetPassword)
	require.ErrorIs(t, err, auth.ErrInvalidOrExpiredToken)

	_, err = h.issuer.ConsumeActionToken(ctx, "", models.PurposeResetPassword)
	require.ErrorIs(t, err, auth.ErrInvalidOrExpiredToken)
}

func TestConsumeActionTokenConcurrently(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := createUser(t, h, "alice@example.com")

	token, err := h.issuer.IssueActionToken(ctx, user.ID, models.PurposeResetPassword, time.Hour)
	require.NoError(t, err)

	const callers = 10
	results := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = h.issuer.ConsumeActionToken(ctx, token, models.PurposeResetPassword)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		require.ErrorIs(t, err, auth.ErrInvalidOrExpiredToken)
	}
	require.Equal(t, 1, successes)
}

func TestActionTokenTTLBoundary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := createUser(t, h, "alice@example.com")

	early, err := h.issuer.IssueActionToken(ctx, user.ID, models.PurposeVerifyEmail, time.Hour)
	require.NoError(t, err)
	h.clock.Advance(time.Hour - time.Second)
	_, err = h.issuer.ConsumeActionToken(ctx, early, models.PurposeVerifyEmail)
	require.NoError(t, err)

	late, err := h.issuer.IssueActionToken(ctx, user.ID, models.PurposeVerifyEmail, time.Hour)
	require.NoError(t, err)
	h.clock.Advance(time.Hour + time.Second)
	_, err = h.issuer.ConsumeActionToken(ctx, late, models.PurposeVerifyEmail)
	require.ErrorIs(t, err, auth.ErrInvalidOrExpiredToken)
}

func TestMatchActionToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := createUser(t, h, "alice@example.com")
	bob := createUser(t, h, "bob@example.com")

	token, err := h.issuer.IssueActionToken(ctx, alice.ID, models.PurposeVerifyEmail, time.Hour)
	require.NoError(t, err)

	matched, err := h.issuer.MatchActionToken(ctx, alice.ID, token, models.PurposeVerifyEmail)
	require.NoError(t, err)
	require.True(t, matched)

	matched, err = h.issuer.MatchActionToken(ctx, bob.ID, token, models.PurposeVerifyEmail)
	require.NoError(t, err)
	require.False(t, matched)

	_, err = h.issuer.ConsumeActionToken(ctx, token, models.PurposeVerifyEmail)
	require.NoError(t, err)

	matched, err = h.issuer.MatchActionToken(ctx, alice.ID, token, models.PurposeVerifyEmail)
	require.NoError(t, err)
	require.True(t, matched, "consumed tokens still identify the link owner")

	matched, err = h.issuer.MatchActionToken(ctx, alice.ID, "unknown", models.PurposeVerifyEmail)
	require.NoError(t, err)
	require.False(t, matched)
}
