package models

import "time"

// Run lifecycle states reported by GET /api/v1/runs/:id.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// RunResponse is the immediate response for POST /api/v1/runs.
type RunResponse struct {
	ID     string       `json:"id,omitempty"`
	Status string       `json:"status"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// RunStatus tracks one run from trigger to terminal state.
type RunStatus struct {
	ID          string            `json:"id"`
	Status      string            `json:"status"`
	TargetCount int               `json:"target_count"`
	Report      *ValidationReport `json:"report,omitempty"`
	Error       *ErrorDetail      `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string     `json:"status"` // "healthy", "busy" or "degraded"
	Uptime    string     `json:"uptime"`
	ActiveRun string     `json:"active_run,omitempty"`
	Fetcher   string     `json:"fetcher"`
	PoolStats *PoolStats `json:"pool_stats,omitempty"`
	Version   string     `json:"version"`
}

// PoolStats reports the state of the browser page pool.
type PoolStats struct {
	MaxPages      int    `json:"max_pages"`
	ActivePages   int    `json:"active_pages"`
	BrowserUptime string `json:"browser_uptime"`
}
