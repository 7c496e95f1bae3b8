package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sortcheck/models"
)

// ActiveRunner reports the run in progress, if any.
type ActiveRunner interface {
	Active() string
}

// PoolStatsFunc reports browser page pool utilisation.
type PoolStatsFunc func() models.PoolStats

// Health returns a handler for GET /api/v1/health.
//
// Status is "busy" while a run holds the single run slot, and "degraded" when
// more than 80% of the browser pool is in use outside a run. poolStats is nil
// for fetchers without a browser pool.
func Health(ar ActiveRunner, poolStats PoolStatsFunc, fetcher string, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		active := ar.Active()

		var stats *models.PoolStats
		if poolStats != nil {
			s := poolStats()
			stats = &s
		}

		status := "healthy"
		switch {
		case active != "":
			status = "busy"
		case stats != nil && stats.MaxPages > 0 && stats.ActivePages > int(float64(stats.MaxPages)*0.8):
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			ActiveRun: active,
			Fetcher:   fetcher,
			PoolStats: stats,
			Version:   "0.1.0",
		})
	}
}
