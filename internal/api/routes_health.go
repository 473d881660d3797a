package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/authcore/internal/app"
	"github.com/charlesng35/authcore/internal/handlers"
	"github.com/charlesng35/authcore/internal/monitoring"
)

func registerHealthRoutes(r *gin.Engine, cfg *app.Config, manager *monitoring.HealthManager) {
	if !cfg.Monitoring.Health.Enabled {
		r.GET("/health", disabledHealthHandler)
		r.GET("/health/live", disabledHealthHandler)
		r.GET("/health/ready", disabledHealthHandler)
		return
	}

	if manager == nil {
		manager = monitoring.NewHealthManager()
	}

	r.GET("/health", handlers.Health(manager))
	r.GET("/health/live", handlers.HealthLive(manager))
	r.GET("/health/ready", handlers.HealthReady(manager))
}

func disabledHealthHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"status":  "disabled",
	})
}
