// Package engine drives the load/extract/paginate loop over a listing and
// audits the collected records for newest-first order.
package engine

import (
	"context"
	"time"

	"github.com/use-agent/sortcheck/models"
)

// PageProvider is the page-rendering capability the engine reads from.
type PageProvider interface {
	// Load navigates to url.
	Load(ctx context.Context, url string) error

	// WaitForSelector blocks until selector matches at least one element,
	// failing once timeout elapses.
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error

	// Snapshot returns the content of the currently loaded page.
	Snapshot(ctx context.Context) (models.PageSnapshot, error)
}

// Paginator moves the loaded page forward through the listing.
type Paginator interface {
	// HasNext reports whether a next-page control is present.
	HasNext(ctx context.Context) (bool, error)

	// Advance activates the next-page control.
	Advance(ctx context.Context) error

	// WaitForQuiescence blocks until the page has had no network activity
	// for quiet.
	WaitForQuiescence(ctx context.Context, quiet time.Duration) error
}

// Extractor turns a page snapshot into records in display order.
type Extractor interface {
	Extract(snap models.PageSnapshot) []models.Record
}

// ProgressFunc receives every event of a run. It is called synchronously
// from the run's goroutine.
type ProgressFunc func(models.ProgressEvent)

// Options configures an Engine.
type Options struct {
	// StartURL is the first page of the listing.
	StartURL string

	// ItemSelector must match before a page is extracted.
	ItemSelector string

	// SelectorTimeout bounds the wait for ItemSelector. Default: 10s.
	SelectorTimeout time.Duration

	// QuietInterval is passed to WaitForQuiescence. Default: 500ms.
	QuietInterval time.Duration

	// RunDeadline bounds a whole run; zero means no deadline.
	RunDeadline time.Duration
}

// Engine runs collections. It keeps no per-run state, so one Engine may
// serve independent runs on independent sessions.
type Engine struct {
	opts      Options
	extractor Extractor
}

// New creates an Engine.
func New(opts Options, extractor Extractor) *Engine {
	if opts.SelectorTimeout <= 0 {
		opts.SelectorTimeout = 10 * time.Second
	}
	if opts.QuietInterval <= 0 {
		opts.QuietInterval = 500 * time.Millisecond
	}
	return &Engine{opts: opts, extractor: extractor}
}
