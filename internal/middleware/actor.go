package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/authcore/internal/auditctx"
)

// Actor records the client address and user agent on the request context so audit
// entries written further down carry them.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := auditctx.Actor{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}
		c.Request = c.Request.WithContext(auditctx.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}
