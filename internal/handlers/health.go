package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/authcore/internal/monitoring"
)

// Health reports readiness as a compact status payload.
func Health(manager *monitoring.HealthManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := manager.Ready(requestContext(c))
		c.JSON(healthStatus(report), gin.H{
			"success":    report.Success,
			"status":     report.Status,
			"checked_at": report.CheckedAt,
		})
	}
}

// HealthLive answers the liveness probe.
func HealthLive(manager *monitoring.HealthManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, manager.Live())
	}
}

// HealthReady reports every readiness component.
func HealthReady(manager *monitoring.HealthManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := manager.Ready(requestContext(c))
		c.JSON(healthStatus(report), report)
	}
}

func healthStatus(report monitoring.Report) int {
	if !report.Success {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
