package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/authcore/internal/app"
	iauth "github.com/charlesng35/authcore/internal/auth"
	"github.com/charlesng35/authcore/internal/handlers"
	"github.com/charlesng35/authcore/internal/oauth"
)

func registerOAuthRoutes(engine *gin.Engine, cfg *app.Config, svc *iauth.Service, providers []oauth.Provider) error {
	for _, provider := range providers {
		if provider == nil {
			continue
		}
		handler, err := handlers.NewOAuthHandler(provider, svc, handlers.OAuthConfig{
			FrontendURL:  cfg.App.FrontendURL,
			CookieSecure: cfg.OAuth.CookieSecure,
			StateTTL:     cfg.OAuth.StateTTL,
		})
		if err != nil {
			return err
		}

		group := engine.Group("/oauth/" + provider.Name())
		group.GET("/redirect", handler.Redirect)
		group.GET("/callback", handler.Callback)
	}
	return nil
}
