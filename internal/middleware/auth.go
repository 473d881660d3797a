package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/authcore/internal/auditctx"
	iauth "github.com/charlesng35/authcore/internal/auth"
	"github.com/charlesng35/authcore/pkg/errors"
	"github.com/charlesng35/authcore/pkg/response"
)

const (
	CtxUserIDKey      = "userID"
	CtxSessionIDKey   = "sessionID"
	CtxAccessTokenKey = "accessToken"
)

// Authenticator resolves bearer access tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*iauth.Principal, error)
}

// Auth enforces bearer authentication using the supplied Authenticator.
func Auth(authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		principal, err := authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		// Propagate identity into request context
		c.Set(CtxUserIDKey, principal.UserID)
		c.Set(CtxAccessTokenKey, token)
		if principal.SessionID != "" {
			c.Set(CtxSessionIDKey, principal.SessionID)
		}

		actor, _ := auditctx.FromContext(c.Request.Context())
		actor.UserID = principal.UserID
		c.Request = c.Request.WithContext(auditctx.WithActor(c.Request.Context(), actor))

		c.Next()
	}
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) (string, bool) {
	authz := c.GetHeader("Authorization")
	if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(authz[7:])
	return token, token != ""
}
