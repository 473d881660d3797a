package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/authcore/internal/auth"
	appErrors "github.com/charlesng35/authcore/pkg/errors"
	"github.com/charlesng35/authcore/pkg/logger"
	"github.com/charlesng35/authcore/pkg/response"
)

// bindJSON binds the JSON payload into dest. Field rules are enforced by the service
// so every violation is reported together; a malformed body writes a 400 and returns false.
func bindJSON[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("Invalid JSON payload."))
		return false
	}
	return true
}

// writeError maps service errors onto the HTTP error taxonomy. Unexpected errors are
// logged and rendered without detail.
func writeError(c *gin.Context, err error) {
	var verr *iauth.ValidationError
	switch {
	case errors.As(err, &verr):
		response.Error(c, appErrors.NewValidation(verr.Fields))
	case errors.Is(err, iauth.ErrUnauthorized):
		response.Error(c, appErrors.ErrUnauthorized)
	case errors.Is(err, iauth.ErrEmailNotVerified):
		response.Error(c, appErrors.ErrEmailNotVerified)
	case errors.Is(err, iauth.ErrInvalidLink):
		response.Error(c, appErrors.ErrInvalidLink)
	case errors.Is(err, iauth.ErrInvalidOrExpiredToken):
		response.Error(c, appErrors.ErrInvalidOrExpiredToken)
	default:
		logger.WithModule("http").Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
	}
}
