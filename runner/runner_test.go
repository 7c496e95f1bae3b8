package runner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/use-agent/sortcheck/cache"
	"github.com/use-agent/sortcheck/engine"
	"github.com/use-agent/sortcheck/models"
	"github.com/use-agent/sortcheck/progress"
)

// stubSession serves a single page of records keyed by page HTML.
type stubSession struct {
	block  chan struct{} // Load waits on this when non-nil
	closed bool
}

func (s *stubSession) Load(ctx context.Context, url string) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *stubSession) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}

func (s *stubSession) Snapshot(ctx context.Context) (models.PageSnapshot, error) {
	return models.PageSnapshot{URL: "https://example.com/newest", HTML: "page"}, nil
}

func (s *stubSession) HasNext(ctx context.Context) (bool, error)                       { return false, nil }
func (s *stubSession) Advance(ctx context.Context) error                                { return nil }
func (s *stubSession) WaitForQuiescence(ctx context.Context, quiet time.Duration) error { return nil }

func (s *stubSession) Close() error {
	s.closed = true
	return nil
}

type stubExtractor struct{ keys []int64 }

func (e stubExtractor) Extract(snap models.PageSnapshot) []models.Record {
	out := make([]models.Record, len(e.keys))
	for i, k := range e.keys {
		out[i] = models.Record{Title: "story " + strconv.Itoa(i), Age: "x", SortKey: k}
	}
	return out
}

type eventLog struct {
	mu     sync.Mutex
	events []models.ProgressEvent
}

func (l *eventLog) Publish(ev models.ProgressEvent) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) snapshot() []models.ProgressEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.ProgressEvent(nil), l.events...)
}

func newTestRunner(t *testing.T, sess *stubSession, keys []int64, sink progress.Sink) (*Runner, *cache.Store) {
	t.Helper()
	eng := engine.New(engine.Options{StartURL: "https://example.com/newest", ItemSelector: ".athing"}, stubExtractor{keys: keys})
	store := cache.New(10, time.Hour)
	t.Cleanup(store.Close)
	factory := func(ctx context.Context) (Session, error) { return sess, nil }
	return New(eng, factory, store, sink, 0), store
}

func TestRunner_RunSync(t *testing.T) {
	sess := &stubSession{}
	var log eventLog
	r, _ := newTestRunner(t, sess, []int64{3, 2, 1}, &log)

	report, err := r.Run(context.Background(), models.RunRequest{TargetCount: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.IsSorted || report.TotalCollected != 3 {
		t.Errorf("report = %+v", report)
	}
	if !sess.closed {
		t.Error("session should be closed after the run")
	}
	if r.Active() != "" {
		t.Error("run slot should be released")
	}

	events := log.snapshot()
	if len(events) == 0 {
		t.Fatal("no events published")
	}
	runID := events[0].RunID
	if runID == "" {
		t.Fatal("events must carry the run id")
	}
	for _, ev := range events {
		if ev.RunID != runID {
			t.Errorf("event %s has run id %q, want %q", ev.Type, ev.RunID, runID)
		}
	}

	st, err := r.Status(runID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Status != models.RunStatusCompleted || st.Report == nil {
		t.Errorf("status = %+v", st)
	}
}

func TestRunner_StartRejectsConcurrentRun(t *testing.T) {
	sess := &stubSession{block: make(chan struct{})}
	r, _ := newTestRunner(t, sess, []int64{1}, nil)

	id, err := r.Start(models.RunRequest{TargetCount: 1})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if r.Active() != id {
		t.Errorf("Active = %q, want %q", r.Active(), id)
	}

	_, err = r.Start(models.RunRequest{TargetCount: 1})
	var re *models.RunError
	if !errors.As(err, &re) || re.Code != models.ErrCodeRunInProgress {
		t.Fatalf("second Start: want run in progress, got %v", err)
	}

	close(sess.block)
	waitFor(t, func() bool { return r.Active() == "" })

	st, err := r.Status(id)
	if err != nil || st.Status != models.RunStatusCompleted {
		t.Errorf("status = %+v, %v", st, err)
	}
}

func TestRunner_InvalidTarget(t *testing.T) {
	r, _ := newTestRunner(t, &stubSession{}, nil, nil)

	for _, n := range []int{-1, models.MaxTargetCount + 1} {
		_, err := r.Start(models.RunRequest{TargetCount: n})
		var re *models.RunError
		if !errors.As(err, &re) || re.Code != models.ErrCodeInvalidInput {
			t.Errorf("target %d: want invalid input, got %v", n, err)
		}
	}
	if r.Active() != "" {
		t.Error("invalid requests must not claim the run slot")
	}
}

func TestRunner_DefaultTarget(t *testing.T) {
	keys := make([]int64, 150)
	for i := range keys {
		keys[i] = int64(1000 - i)
	}
	r, _ := newTestRunner(t, &stubSession{}, keys, nil)

	report, err := r.Run(context.Background(), models.RunRequest{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.TotalCollected != models.DefaultTargetCount {
		t.Errorf("TotalCollected = %d, want %d", report.TotalCollected, models.DefaultTargetCount)
	}
}

func TestRunner_ConfiguredDefaultTarget(t *testing.T) {
	keys := make([]int64, 150)
	for i := range keys {
		keys[i] = int64(1000 - i)
	}
	eng := engine.New(engine.Options{StartURL: "https://example.com/newest", ItemSelector: ".athing"}, stubExtractor{keys: keys})
	store := cache.New(10, time.Hour)
	defer store.Close()
	sess := &stubSession{}
	r := New(eng, func(ctx context.Context) (Session, error) { return sess, nil }, store, nil, 40)

	report, err := r.Run(context.Background(), models.RunRequest{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.TotalCollected != 40 {
		t.Errorf("TotalCollected = %d, want 40", report.TotalCollected)
	}

	id, err := r.Start(models.RunRequest{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	st, err := r.Status(id)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.TargetCount != 40 {
		t.Errorf("stored TargetCount = %d, want 40", st.TargetCount)
	}
	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestRunner_SessionFailure(t *testing.T) {
	var log eventLog
	eng := engine.New(engine.Options{ItemSelector: ".athing"}, stubExtractor{})
	store := cache.New(10, time.Hour)
	defer store.Close()
	factory := func(ctx context.Context) (Session, error) { return nil, fmt.Errorf("chrome exited") }
	r := New(eng, factory, store, &log, 0)

	_, err := r.Run(context.Background(), models.RunRequest{TargetCount: 5})
	var re *models.RunError
	if !errors.As(err, &re) || re.Code != models.ErrCodeBrowserCrash {
		t.Fatalf("want browser crash, got %v", err)
	}

	events := log.snapshot()
	if len(events) != 1 || events[0].Type != models.EventError {
		t.Fatalf("events = %+v, want a single error event", events)
	}
	st, err := r.Status(events[0].RunID)
	if err != nil || st.Status != models.RunStatusFailed || st.Error == nil {
		t.Errorf("status = %+v, %v", st, err)
	}
}

func TestRunner_ShutdownCancelsRun(t *testing.T) {
	sess := &stubSession{block: make(chan struct{})}
	r, _ := newTestRunner(t, sess, []int64{1}, nil)

	id, err := r.Start(models.RunRequest{TargetCount: 1})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	st, _ := r.Status(id)
	if st.Status != models.RunStatusFailed || st.Error == nil || st.Error.Code != models.ErrCodeCanceled {
		t.Errorf("status = %+v, want failed by cancellation", st)
	}
}

func TestRunner_StatusNotFound(t *testing.T) {
	r, _ := newTestRunner(t, &stubSession{}, nil, nil)
	_, err := r.Status("nope")
	var re *models.RunError
	if !errors.As(err, &re) || re.Code != models.ErrCodeNotFound {
		t.Errorf("want not found, got %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
