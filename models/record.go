package models

import "time"

// Sentinels used when a listing omits the optional metadata fields.
const (
	UnknownAuthor = "Unknown"
	NoScore       = "No Score"
)

// Record is one harvested listing item.
type Record struct {
	// Title is the trimmed headline text. Never empty.
	Title string `json:"title"`

	// URL is the headline link resolved against the page it was found on.
	URL string `json:"url,omitempty"`

	// Author defaults to UnknownAuthor when the listing has no author element.
	Author string `json:"author"`

	// Score is the raw score label, NoScore when absent.
	Score string `json:"score"`

	// Age is the raw time label. The machine-readable attribute wins over
	// the visible text when both exist.
	Age string `json:"age"`

	// SortKey is Age as Unix milliseconds, or 0 when Age could not be parsed.
	SortKey int64 `json:"sort_key"`

	// Page is the 1-based page index the record was discovered on.
	Page int `json:"page"`
}

// SortViolation is an adjacent pair where the earlier record is older than
// the one after it.
type SortViolation struct {
	// Position is the 1-based index of Current in the collection.
	Position int    `json:"position"`
	Current  Record `json:"current"`
	Next     Record `json:"next"`
}

// ValidationReport is the terminal artifact of a run.
type ValidationReport struct {
	IsSorted       bool            `json:"is_sorted"`
	TotalCollected int             `json:"total_collected"`
	Violations     []SortViolation `json:"violations"`

	// Records is the collection the audit ran over, in discovery order.
	Records []Record `json:"records"`

	// PagesVisited counts the pages records were extracted from.
	PagesVisited int `json:"pages_visited"`

	// SourceExhausted is set when pagination ran out before the target.
	SourceExhausted bool `json:"source_exhausted"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// PageSnapshot is the content of the currently loaded page.
type PageSnapshot struct {
	URL  string
	HTML string
}
