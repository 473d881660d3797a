package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/authcore/internal/handlers"
)

type authRouteDeps struct {
	Handler     *handlers.AuthHandler
	RequireAuth gin.HandlerFunc
	RateLimit   gin.HandlerFunc
}

func registerAuthRoutes(engine *gin.Engine, deps authRouteDeps) {
	auth := engine.Group("/api/auth")
	{
		auth.POST("/register", deps.RateLimit, deps.Handler.Register)
		auth.POST("/login", deps.RateLimit, deps.Handler.Login)
		auth.POST("/refresh", deps.Handler.Refresh)
		auth.GET("/email/verify/:id/:hash", deps.Handler.VerifyEmail)
		auth.POST("/password/forgot", deps.RateLimit, deps.Handler.ForgotPassword)
		auth.POST("/password/reset", deps.RateLimit, deps.Handler.ResetPassword)
	}

	protected := auth.Group("")
	protected.Use(deps.RequireAuth)
	{
		protected.POST("/logout", deps.Handler.Logout)
		protected.GET("/me", deps.Handler.Me)
		protected.POST("/me", deps.Handler.Me)
		protected.POST("/email/resend", deps.RateLimit, deps.Handler.ResendVerification)
	}
}
