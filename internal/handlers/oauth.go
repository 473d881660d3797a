package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/authcore/internal/auth"
	"github.com/charlesng35/authcore/internal/oauth"
	"github.com/charlesng35/authcore/pkg/crypto"
	appErrors "github.com/charlesng35/authcore/pkg/errors"
	"github.com/charlesng35/authcore/pkg/logger"
	"github.com/charlesng35/authcore/pkg/response"
)

const (
	oauthStateCookie    = "oauth_state"
	oauthVerifierCookie = "oauth_verifier"
	oauthNonceCookie    = "oauth_nonce"
	oauthStateBytes     = 32
	defaultOAuthTTL     = 10 * time.Minute
)

// OAuthConfig controls the browser side of the authorization code flow.
type OAuthConfig struct {
	FrontendURL  string
	CookieSecure bool
	StateTTL     time.Duration
}

// OAuthHandler runs the redirect and callback legs of one provider. The callback hands
// the issued tokens to the frontend through a redirect.
type OAuthHandler struct {
	provider    oauth.Provider
	svc         *iauth.Service
	frontendURL string
	secure      bool
	ttl         time.Duration
	log         *zap.Logger
}

func NewOAuthHandler(provider oauth.Provider, svc *iauth.Service, cfg OAuthConfig) (*OAuthHandler, error) {
	if provider == nil {
		return nil, errors.New("oauth handler: provider is required")
	}
	if svc == nil {
		return nil, errors.New("oauth handler: auth service is required")
	}
	frontend := strings.TrimRight(strings.TrimSpace(cfg.FrontendURL), "/")
	if frontend == "" {
		return nil, errors.New("oauth handler: frontend url is required")
	}
	ttl := cfg.StateTTL
	if ttl <= 0 {
		ttl = defaultOAuthTTL
	}

	return &OAuthHandler{
		provider:    provider,
		svc:         svc,
		frontendURL: frontend,
		secure:      cfg.CookieSecure,
		ttl:         ttl,
		log:         logger.WithModule("oauth").With(zap.String("provider", provider.Name())),
	}, nil
}

// GET /oauth/:provider/redirect
func (h *OAuthHandler) Redirect(c *gin.Context) {
	state, err := crypto.GenerateToken(oauthStateBytes)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}
	nonce, err := crypto.GenerateToken(oauthStateBytes)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}
	pkce, err := oauth.GeneratePKCE()
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	maxAge := int(h.ttl.Seconds())
	h.setCookie(c, oauthStateCookie, state, maxAge)
	h.setCookie(c, oauthVerifierCookie, pkce.Verifier, maxAge)
	h.setCookie(c, oauthNonceCookie, nonce, maxAge)

	c.Redirect(http.StatusFound, h.provider.AuthCodeURL(state, nonce, pkce.Challenge))
}

// GET /oauth/:provider/callback
func (h *OAuthHandler) Callback(c *gin.Context) {
	state, _ := c.Cookie(oauthStateCookie)
	verifier, _ := c.Cookie(oauthVerifierCookie)
	nonce, _ := c.Cookie(oauthNonceCookie)
	h.setCookie(c, oauthStateCookie, "", -1)
	h.setCookie(c, oauthVerifierCookie, "", -1)
	h.setCookie(c, oauthNonceCookie, "", -1)

	if providerErr := c.Query("error"); providerErr != "" {
		h.log.Info("provider returned error", zap.String("error", providerErr))
		h.fail(c, "access_denied")
		return
	}

	if state == "" || verifier == "" || nonce == "" || !crypto.EqualStrings(state, c.Query("state")) {
		h.fail(c, "invalid_state")
		return
	}

	code := c.Query("code")
	if code == "" {
		h.fail(c, "invalid_request")
		return
	}

	ctx := requestContext(c)
	identity, err := h.provider.Exchange(ctx, code, verifier, nonce)
	if err != nil {
		h.log.Warn("code exchange failed", zap.Error(err))
		h.fail(c, "exchange_failed")
		return
	}

	result, err := h.svc.LoginWithExternalIdentity(ctx, iauth.ExternalIdentityInput{
		Provider:      identity.Provider,
		Subject:       identity.Subject,
		Email:         identity.Email,
		EmailVerified: identity.EmailVerified,
		Name:          identity.Name,
	}, clientMeta(c))
	if err != nil {
		var verr *iauth.ValidationError
		switch {
		case errors.Is(err, iauth.ErrEmailNotVerified):
			h.fail(c, "email_not_verified")
			return
		case errors.Is(err, iauth.ErrUnauthorized), errors.As(err, &verr):
			h.fail(c, "account_unavailable")
			return
		}
		h.log.Error("external login failed", zap.Error(err))
		h.fail(c, "server_error")
		return
	}

	query := url.Values{}
	query.Set("token", result.Tokens.AccessToken)
	query.Set("refresh_token", result.Tokens.RefreshToken)
	c.Redirect(http.StatusFound, h.frontendURL+"/oauth/callback?"+query.Encode())
}

func (h *OAuthHandler) fail(c *gin.Context, code string) {
	query := url.Values{}
	query.Set("error", code)
	c.Redirect(http.StatusFound, h.frontendURL+"/oauth/callback?"+query.Encode())
}

func (h *OAuthHandler) setCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/oauth/"+h.provider.Name(), "", h.secure, true)
}
