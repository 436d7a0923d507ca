package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/scoutwork/harvest/models"
)

// PoolStatser exposes render pool utilisation. Implemented by the
// render service; nil means the render path is not running.
type PoolStatser interface {
	Stats() models.PoolStats
}

// Health returns a handler for GET /api/v1/health.
//
// Reports pool utilisation and degrades status when > 80% of pages are
// active, or when the render service is absent entirely.
func Health(pool PoolStatser, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		var stats models.PoolStats
		if pool != nil {
			stats = pool.Stats()
			if stats.MaxPages > 0 && stats.ActivePages > int(float64(stats.MaxPages)*0.8) {
				status = "degraded"
			}
		} else {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			PoolStats: stats,
			Version:   "0.1.0",
		})
	}
}
