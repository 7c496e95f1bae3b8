package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sortcheck/api/handler"
	"github.com/use-agent/sortcheck/config"
)

// Runs is what the router needs from the run coordinator.
type Runs interface {
	handler.RunService
	handler.ActiveRunner
}

// NewRouter creates a configured Gin engine with all routes and middleware.
// poolStats may be nil when the fetcher has no browser pool.
//
// Middleware chain: Recovery → Logger.
func NewRouter(runs Runs, events handler.EventSource, poolStats handler.PoolStatsFunc, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	// Legacy trigger kept at the root.
	r.POST("/start-test", handler.StartTest(runs))

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(runs, poolStats, cfg.Source.Fetcher, startTime))
	v1.POST("/runs", handler.PostRun(runs))
	v1.GET("/runs/:id", handler.GetRun(runs))
	v1.GET("/events", handler.Events(events, 15*time.Second))

	return r
}
