package models

// Bounds for RunRequest.TargetCount.
const (
	DefaultTargetCount = 100
	MaxTargetCount     = 1000
)

// RunRequest is the payload for POST /api/v1/runs.
type RunRequest struct {
	// TargetCount is the number of records to collect before auditing.
	// Default: 100. Max: 1000.
	TargetCount int `json:"target_count,omitempty" binding:"omitempty,min=1,max=1000"`
}

// Defaults applies default values to unset fields.
func (r *RunRequest) Defaults() {
	if r.TargetCount == 0 {
		r.TargetCount = DefaultTargetCount
	}
}
