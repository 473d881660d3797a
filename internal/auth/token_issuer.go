package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/charlesng35/authcore/internal/models"
	"github.com/charlesng35/authcore/pkg/crypto"
	"github.com/charlesng35/authcore/pkg/logger"
	"github.com/charlesng35/authcore/pkg/metrics"
)

const (
	// DefaultRefreshTokenTTL is the fallback refresh token lifetime.
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
	// DefaultActionTokenTTL is the fallback lifetime of verification and reset tokens.
	DefaultActionTokenTTL = 60 * time.Minute

	actionTokenBytes = 32
	bearerTokenType  = "Bearer"
)

// ClientMeta captures contextual information about the client opening a session.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// TokenPair is the result of a login or refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	SessionID        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	// ExpiresIn is the access token lifetime.
	ExpiresIn time.Duration
}

// TokenIssuerConfig describes tunable behaviour for the TokenIssuer.
type TokenIssuerConfig struct {
	RefreshTokenTTL time.Duration
	// InvalidateRotated makes every refresh token single-use. Presenting a rotated
	// token revokes the whole session.
	InvalidateRotated bool
	Clock             func() time.Time
	Logger            *zap.Logger
}

// TokenIssuer issues and validates bearer tokens and single-use action tokens.
type TokenIssuer struct {
	jwt               *JWTService
	sessions          SessionStore
	tokens            ActionTokenStore
	tx                Transactor
	refreshTTL        time.Duration
	invalidateRotated bool
	now               func() time.Time
	log               *zap.Logger
}

// NewTokenIssuer wires the issuer to its stores.
func NewTokenIssuer(jwtService *JWTService, sessions SessionStore, tokens ActionTokenStore, tx Transactor, cfg TokenIssuerConfig) (*TokenIssuer, error) {
	if jwtService == nil {
		return nil, errors.New("token issuer: jwt service is required")
	}
	if sessions == nil || tokens == nil {
		return nil, errors.New("token issuer: session and action token stores are required")
	}
	if tx == nil {
		return nil, errors.New("token issuer: transactor is required")
	}

	ttl := cfg.RefreshTokenTTL
	if ttl <= 0 {
		ttl = DefaultRefreshTokenTTL
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	log := cfg.Logger
	if log == nil {
		log = logger.WithModule("tokens")
	}

	return &TokenIssuer{
		jwt:               jwtService,
		sessions:          sessions,
		tokens:            tokens,
		tx:                tx,
		refreshTTL:        ttl,
		invalidateRotated: cfg.InvalidateRotated,
		now:               clock,
		log:               log,
	}, nil
}

// IssueAccessPair opens a new session for userID and returns its first token pair.
func (s *TokenIssuer) IssueAccessPair(ctx context.Context, userID string, meta ClientMeta) (TokenPair, error) {
	if strings.TrimSpace(userID) == "" {
		return TokenPair{}, errors.New("token issuer: user id is required")
	}

	now := s.now()
	session := &models.Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		IPAddress:  strings.TrimSpace(meta.IPAddress),
		UserAgent:  strings.TrimSpace(meta.UserAgent),
		ExpiresAt:  now.Add(s.refreshTTL),
		LastUsedAt: now,
	}

	refresh, refreshExpiresAt, err := s.jwt.Generate(TokenInput{
		UserID:    userID,
		SessionID: session.ID,
		Type:      TokenTypeRefresh,
		TTL:       s.refreshTTL,
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("token issuer: generate refresh token: %w", err)
	}
	session.RefreshTokenHash = crypto.HashToken(refresh)

	if err := s.sessions.Create(ctx, session); err != nil {
		return TokenPair{}, fmt.Errorf("token issuer: create session: %w", err)
	}
	s.tx.AfterCommit(ctx, metrics.ActiveSessions.Inc)

	return s.pair(userID, session.ID, refresh, refreshExpiresAt)
}

// Verify checks signature, expiry and type. Every failure collapses into ErrInvalidToken;
// the cause is only logged.
func (s *TokenIssuer) Verify(token string, expected TokenType) (*Claims, error) {
	claims, err := s.jwt.Validate(strings.TrimSpace(token), expected)
	if err != nil {
		s.log.Debug("token rejected", zap.String("expected_type", string(expected)), zap.Error(err))
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Rotate exchanges a refresh token for a new pair within the same session and returns
// the session owner.
func (s *TokenIssuer) Rotate(ctx context.Context, refreshToken string) (TokenPair, string, error) {
	claims, err := s.Verify(refreshToken, TokenTypeRefresh)
	if err != nil {
		return TokenPair{}, "", err
	}
	if claims.SessionID == "" {
		return TokenPair{}, "", ErrInvalidToken
	}

	session, err := s.sessions.FindByID(ctx, claims.SessionID)
	if errors.Is(err, ErrNotFound) {
		return TokenPair{}, "", ErrInvalidToken
	}
	if err != nil {
		return TokenPair{}, "", fmt.Errorf("token issuer: find session: %w", err)
	}

	now := s.now()
	if session.UserID != claims.UserID || !session.Active(now) {
		return TokenPair{}, "", ErrInvalidToken
	}

	currentHash := crypto.HashToken(strings.TrimSpace(refreshToken))
	expectedHash := ""
	if s.invalidateRotated {
		if !crypto.EqualStrings(session.RefreshTokenHash, currentHash) {
			s.log.Warn("rotated refresh token reused, revoking session",
				zap.String("session_id", session.ID),
				zap.String("user_id", session.UserID),
			)
			if _, err := s.revokeSession(ctx, session.ID, now); err != nil {
				return TokenPair{}, "", err
			}
			return TokenPair{}, "", ErrInvalidToken
		}
		expectedHash = currentHash
	}

	refresh, refreshExpiresAt, err := s.jwt.Generate(TokenInput{
		UserID:    session.UserID,
		SessionID: session.ID,
		Type:      TokenTypeRefresh,
		TTL:       s.refreshTTL,
	})
	if err != nil {
		return TokenPair{}, "", fmt.Errorf("token issuer: generate refresh token: %w", err)
	}

	rotated, err := s.sessions.Rotate(ctx, session.ID, expectedHash, crypto.HashToken(refresh), refreshExpiresAt, now)
	if err != nil {
		return TokenPair{}, "", fmt.Errorf("token issuer: rotate session: %w", err)
	}
	if !rotated {
		// A concurrent refresh with the same token won the swap.
		return TokenPair{}, "", ErrInvalidToken
	}

	pair, err := s.pair(session.UserID, session.ID, refresh, refreshExpiresAt)
	if err != nil {
		return TokenPair{}, "", err
	}
	return pair, session.UserID, nil
}

// Revoke ends the session referenced by an access or refresh token.
func (s *TokenIssuer) Revoke(ctx context.Context, token string) error {
	claims, err := s.Verify(token, "")
	if err != nil {
		return err
	}
	if claims.SessionID == "" {
		return ErrInvalidToken
	}
	_, err = s.revokeSession(ctx, claims.SessionID, s.now())
	return err
}

// RevokeUser revokes every session of userID and returns how many were active.
func (s *TokenIssuer) RevokeUser(ctx context.Context, userID string) (int64, error) {
	revoked, err := s.sessions.RevokeAllForUser(ctx, userID, s.now())
	if err != nil {
		return 0, fmt.Errorf("token issuer: revoke user sessions: %w", err)
	}
	if revoked > 0 {
		s.tx.AfterCommit(ctx, func() { metrics.ActiveSessions.Sub(float64(revoked)) })
	}
	return revoked, nil
}

// SessionActive reports whether the session exists, is unrevoked and unexpired.
func (s *TokenIssuer) SessionActive(ctx context.Context, sessionID string) (bool, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("token issuer: find session: %w", err)
	}
	return session.Active(s.now()), nil
}

// IssueActionToken creates a single-use token for userID and purpose. Earlier unconsumed
// tokens of the same purpose stop working. Only the hash is stored.
func (s *TokenIssuer) IssueActionToken(ctx context.Context, userID string, purpose models.ActionTokenPurpose, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultActionTokenTTL
	}

	token, err := crypto.GenerateToken(actionTokenBytes)
	if err != nil {
		return "", fmt.Errorf("token issuer: generate action token: %w", err)
	}

	record := &models.ActionToken{
		UserID:    userID,
		Purpose:   purpose,
		TokenHash: crypto.HashToken(token),
		ExpiresAt: s.now().Add(ttl),
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.tokens.DeleteUnconsumed(ctx, userID, purpose); err != nil {
			return err
		}
		return s.tokens.Create(ctx, record)
	})
	if err != nil {
		return "", fmt.Errorf("token issuer: store action token: %w", err)
	}

	s.tx.AfterCommit(ctx, metrics.ActionTokens.WithLabelValues(string(purpose), "issued").Inc)
	return token, nil
}

// ConsumeActionToken marks the token used and returns its owner. Of any number of
// concurrent callers presenting the same token exactly one succeeds; the rest, like
// callers with unknown, expired or already used tokens, get ErrInvalidOrExpiredToken.
func (s *TokenIssuer) ConsumeActionToken(ctx context.Context, token string, purpose models.ActionTokenPurpose) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidOrExpiredToken
	}

	record, err := s.tokens.FindByHash(ctx, crypto.HashToken(token), purpose)
	if errors.Is(err, ErrNotFound) {
		metrics.ActionTokens.WithLabelValues(string(purpose), "rejected").Inc()
		return "", ErrInvalidOrExpiredToken
	}
	if err != nil {
		return "", fmt.Errorf("token issuer: find action token: %w", err)
	}

	now := s.now()
	if !record.Usable(now) {
		metrics.ActionTokens.WithLabelValues(string(purpose), "rejected").Inc()
		return "", ErrInvalidOrExpiredToken
	}

	consumed, err := s.tokens.MarkConsumed(ctx, record.ID, now)
	if err != nil {
		return "", fmt.Errorf("token issuer: consume action token: %w", err)
	}
	if !consumed {
		metrics.ActionTokens.WithLabelValues(string(purpose), "rejected").Inc()
		return "", ErrInvalidOrExpiredToken
	}

	s.tx.AfterCommit(ctx, metrics.ActionTokens.WithLabelValues(string(purpose), "consumed").Inc)
	return record.UserID, nil
}

// MatchActionToken reports whether token, consumed or not, was issued to userID for purpose.
func (s *TokenIssuer) MatchActionToken(ctx context.Context, userID, token string, purpose models.ActionTokenPurpose) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" || userID == "" {
		return false, nil
	}

	record, err := s.tokens.FindByHash(ctx, crypto.HashToken(token), purpose)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("token issuer: find action token: %w", err)
	}
	return crypto.EqualStrings(record.UserID, userID), nil
}

func (s *TokenIssuer) pair(userID, sessionID, refresh string, refreshExpiresAt time.Time) (TokenPair, error) {
	access, accessExpiresAt, err := s.jwt.GenerateAccessToken(userID, sessionID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("token issuer: generate access token: %w", err)
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        bearerTokenType,
		SessionID:        sessionID,
		AccessExpiresAt:  accessExpiresAt,
		RefreshExpiresAt: refreshExpiresAt,
		ExpiresIn:        s.jwt.AccessTokenTTL(),
	}, nil
}

func (s *TokenIssuer) revokeSession(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	revoked, err := s.sessions.Revoke(ctx, sessionID, at)
	if err != nil {
		return false, fmt.Errorf("token issuer: revoke session: %w", err)
	}
	if revoked {
		s.tx.AfterCommit(ctx, metrics.ActiveSessions.Dec)
	}
	return revoked, nil
}
