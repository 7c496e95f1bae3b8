package models

// Progress event types relayed to subscribers.
const (
	EventStatus = "status"
	EventBatch  = "batch"
	EventResult = "result"
	EventError  = "error"
)

// ProgressEvent is emitted by the engine while a run advances.
// Only the fields relevant to Type are populated.
type ProgressEvent struct {
	Type  string `json:"type"`
	RunID string `json:"run_id,omitempty"`

	// status
	Message string  `json:"message,omitempty"`
	Percent float64 `json:"progress"`

	// batch
	Collected int      `json:"collected,omitempty"`
	Total     int      `json:"total,omitempty"`
	Records   []Record `json:"records,omitempty"`

	// result
	Report *ValidationReport `json:"report,omitempty"`

	// error
	Code string `json:"code,omitempty"`
}

// Terminal reports whether the event ends a run.
func (e ProgressEvent) Terminal() bool {
	return e.Type == EventResult || e.Type == EventError
}
