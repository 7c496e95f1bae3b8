// Package progress fans run events out to interested sinks.
package progress

import (
	"log/slog"
	"sync"

	"github.com/use-agent/sortcheck/models"
)

// Sink receives progress events. Implementations must not block for long;
// they are called on the run's goroutine.
type Sink interface {
	Publish(ev models.ProgressEvent)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(models.ProgressEvent)

// Publish calls f(ev).
func (f SinkFunc) Publish(ev models.ProgressEvent) { f(ev) }

// Multi publishes to every non-nil sink in order.
type Multi []Sink

// Publish forwards ev to each sink.
func (m Multi) Publish(ev models.ProgressEvent) {
	for _, s := range m {
		if s != nil {
			s.Publish(ev)
		}
	}
}

// LogSink writes events to slog. Batch records are summarised, not dumped.
type LogSink struct{}

// Publish logs ev.
func (LogSink) Publish(ev models.ProgressEvent) {
	switch ev.Type {
	case models.EventStatus:
		slog.Info("run progress", "run_id", ev.RunID, "message", ev.Message, "progress", ev.Percent)
	case models.EventBatch:
		slog.Info("batch collected", "run_id", ev.RunID, "records", len(ev.Records), "collected", ev.Collected, "total", ev.Total)
	case models.EventResult:
		if ev.Report == nil {
			slog.Info("run finished", "run_id", ev.RunID)
			return
		}
		slog.Info("run finished",
			"run_id", ev.RunID,
			"sorted", ev.Report.IsSorted,
			"collected", ev.Report.TotalCollected,
			"violations", len(ev.Report.Violations),
			"pages", ev.Report.PagesVisited,
		)
	case models.EventError:
		slog.Error("run failed", "run_id", ev.RunID, "code", ev.Code, "error", ev.Message)
	}
}

// Hub broadcasts events to any number of subscribers, such as SSE clients.
// A subscriber whose buffer is full misses events rather than stalling
// the run.
type Hub struct {
	mu     sync.RWMutex
	subs   map[chan models.ProgressEvent]struct{}
	buffer int
}

// NewHub creates a Hub whose subscriber channels hold buffer events.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{subs: make(map[chan models.ProgressEvent]struct{}), buffer: buffer}
}

// Subscribe registers a new subscriber. The returned cancel func
// unregisters it and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan models.ProgressEvent, func()) {
	ch := make(chan models.ProgressEvent, h.buffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers ev to every subscriber with room for it.
func (h *Hub) Publish(ev models.ProgressEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			slog.Debug("progress subscriber full, dropping event", "type", ev.Type, "run_id", ev.RunID)
		}
	}
}

// Subscribers reports the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
