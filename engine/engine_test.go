package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/use-agent/sortcheck/models"
)

// fakeSite serves a fixed listing. Snapshot HTML carries the current page
// index, which fakeExtractor maps back to that page's records.
type fakeSite struct {
	pages [][]models.Record

	current int
	loaded  bool

	loadErr     error
	selectorErr error
	advanceErr  error
	stuck       bool // Advance leaves the page unchanged
	blockLoad   bool // Load waits for the run context to end

	advances int
}

func (s *fakeSite) Load(ctx context.Context, url string) error {
	if s.loadErr != nil {
		return s.loadErr
	}
	if s.blockLoad {
		<-ctx.Done()
		return ctx.Err()
	}
	s.current = 0
	s.loaded = true
	return nil
}

func (s *fakeSite) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if s.selectorErr != nil {
		return s.selectorErr
	}
	return nil
}

func (s *fakeSite) Snapshot(ctx context.Context) (models.PageSnapshot, error) {
	return models.PageSnapshot{
		URL:  fmt.Sprintf("https://example.com/newest?p=%d", s.current+1),
		HTML: strconv.Itoa(s.current),
	}, nil
}

func (s *fakeSite) HasNext(ctx context.Context) (bool, error) {
	return s.current+1 < len(s.pages), nil
}

func (s *fakeSite) Advance(ctx context.Context) error {
	if s.advanceErr != nil {
		return s.advanceErr
	}
	s.advances++
	if !s.stuck {
		s.current++
	}
	return nil
}

func (s *fakeSite) WaitForQuiescence(ctx context.Context, quiet time.Duration) error {
	return ctx.Err()
}

type fakeExtractor struct{ site *fakeSite }

func (f fakeExtractor) Extract(snap models.PageSnapshot) []models.Record {
	i, err := strconv.Atoi(snap.HTML)
	if err != nil || i >= len(f.site.pages) {
		return nil
	}
	return f.site.pages[i]
}

// descending builds n records whose keys continue down from start.
func descending(page string, start int64, n int) []models.Record {
	out := make([]models.Record, n)
	for i := range out {
		out[i] = models.Record{
			Title:   fmt.Sprintf("%s story %d", page, i),
			URL:     fmt.Sprintf("https://example.com/%s/%d", page, i),
			Author:  "pg",
			Score:   "1 point",
			Age:     "2024-05-01T12:00:00",
			SortKey: start - int64(i),
		}
	}
	return out
}

func keyed(keys ...int64) []models.Record {
	out := make([]models.Record, len(keys))
	for i, k := range keys {
		out[i] = models.Record{Title: fmt.Sprintf("item %d", i), Age: "x", SortKey: k}
	}
	return out
}

func newTestEngine(site *fakeSite) *Engine {
	return New(Options{
		StartURL:        "https://example.com/newest",
		ItemSelector:    ".athing",
		SelectorTimeout: time.Second,
		QuietInterval:   time.Millisecond,
	}, fakeExtractor{site: site})
}

type recorder struct{ events []models.ProgressEvent }

func (r *recorder) record(ev models.ProgressEvent) { r.events = append(r.events, ev) }

func (r *recorder) count(typ string) int {
	n := 0
	for _, ev := range r.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func TestCollect_ReachesTargetAcrossPages(t *testing.T) {
	site := &fakeSite{pages: [][]models.Record{
		descending("p1", 10000, 45),
		descending("p2", 9000, 45),
		descending("p3", 8000, 160),
	}}
	var rec recorder

	report, err := newTestEngine(site).Collect(context.Background(), 100, site, site, rec.record)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.TotalCollected != 100 || len(report.Records) != 100 {
		t.Fatalf("collected %d records (%d in slice), want 100", report.TotalCollected, len(report.Records))
	}
	if !report.IsSorted || len(report.Violations) != 0 {
		t.Errorf("expected sorted report, got %d violations", len(report.Violations))
	}
	if report.PagesVisited != 3 {
		t.Errorf("PagesVisited = %d, want 3", report.PagesVisited)
	}
	if report.SourceExhausted {
		t.Error("SourceExhausted should be false when the target was reached")
	}
	if got := rec.count(models.EventBatch); got != 3 {
		t.Errorf("batch events = %d, want 3", got)
	}

	// Records keep page order and the last page is truncated.
	if report.Records[0].Title != "p1 story 0" || report.Records[45].Title != "p2 story 0" || report.Records[90].Title != "p3 story 0" {
		t.Errorf("unexpected record order: %q, %q, %q",
			report.Records[0].Title, report.Records[45].Title, report.Records[90].Title)
	}
	if report.Records[99].Title != "p3 story 9" {
		t.Errorf("last record = %q, want p3 story 9", report.Records[99].Title)
	}
	if report.Records[0].Page != 1 || report.Records[99].Page != 3 {
		t.Errorf("page indices = %d..%d, want 1..3", report.Records[0].Page, report.Records[99].Page)
	}
}

func TestCollect_ExhaustedSourceIsNotAnError(t *testing.T) {
	site := &fakeSite{pages: [][]models.Record{descending("p1", 100, 40)}}
	var rec recorder

	report, err := newTestEngine(site).Collect(context.Background(), 100, site, site, rec.record)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.TotalCollected != 40 {
		t.Errorf("TotalCollected = %d, want 40", report.TotalCollected)
	}
	if !report.SourceExhausted {
		t.Error("SourceExhausted should be true")
	}
	if site.advances != 0 {
		t.Errorf("Advance called %d times, want 0", site.advances)
	}
	if got := rec.count(models.EventBatch); got != 1 {
		t.Errorf("batch events = %d, want 1", got)
	}
}

func TestCollect_DetectsViolation(t *testing.T) {
	site := &fakeSite{pages: [][]models.Record{keyed(500, 400, 450, 100)}}

	report, err := newTestEngine(site).Collect(context.Background(), 4, site, site, nil)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.IsSorted {
		t.Fatal("expected unsorted report")
	}
	if len(report.Violations) != 1 {
		t.Fatalf("violations = %d, want 1", len(report.Violations))
	}
	v := report.Violations[0]
	if v.Position != 2 || v.Current.SortKey != 400 || v.Next.SortKey != 450 {
		t.Errorf("violation = pos %d (%d → %d), want pos 2 (400 → 450)", v.Position, v.Current.SortKey, v.Next.SortKey)
	}
}

func TestCollect_SelectorTimeout(t *testing.T) {
	site := &fakeSite{
		pages:       [][]models.Record{descending("p1", 100, 30)},
		selectorErr: errors.New("context deadline exceeded waiting for element"),
	}
	var rec recorder

	report, err := newTestEngine(site).Collect(context.Background(), 100, site, site, rec.record)
	if report != nil {
		t.Error("expected no report on failure")
	}
	var re *models.RunError
	if !errors.As(err, &re) {
		t.Fatalf("expected *models.RunError, got %T: %v", err, err)
	}
	if re.Code != models.ErrCodeExtractionTimeout {
		t.Errorf("code = %s, want %s", re.Code, models.ErrCodeExtractionTimeout)
	}
	if rec.count(models.EventBatch) != 0 || rec.count(models.EventResult) != 0 {
		t.Error("no batch or result events expected after a selector timeout")
	}
	last := rec.events[len(rec.events)-1]
	if last.Type != models.EventError || last.Code != models.ErrCodeExtractionTimeout {
		t.Errorf("last event = %+v, want error event with extraction timeout code", last)
	}
	if rec.count(models.EventError) != 1 {
		t.Errorf("error events = %d, want exactly 1", rec.count(models.EventError))
	}
}

func TestCollect_LoadFailure(t *testing.T) {
	site := &fakeSite{loadErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}

	_, err := newTestEngine(site).Collect(context.Background(), 10, site, site, nil)
	var re *models.RunError
	if !errors.As(err, &re) || re.Code != models.ErrCodeNavigation {
		t.Fatalf("expected navigation error, got %v", err)
	}
	if !errors.Is(err, site.loadErr) {
		t.Error("cause should be preserved")
	}
}

func TestCollect_AdvanceFailure(t *testing.T) {
	site := &fakeSite{
		pages:      [][]models.Record{descending("p1", 100, 30), descending("p2", 50, 30)},
		advanceErr: errors.New("element detached"),
	}

	_, err := newTestEngine(site).Collect(context.Background(), 60, site, site, nil)
	var re *models.RunError
	if !errors.As(err, &re) || re.Code != models.ErrCodeNavigation {
		t.Fatalf("expected navigation error, got %v", err)
	}
}

func TestCollect_StalePagination(t *testing.T) {
	site := &fakeSite{
		pages: [][]models.Record{descending("p1", 100, 30), descending("p2", 50, 30)},
		stuck: true,
	}

	_, err := newTestEngine(site).Collect(context.Background(), 60, site, site, nil)
	var re *models.RunError
	if !errors.As(err, &re) || re.Code != models.ErrCodeNavigation {
		t.Fatalf("expected navigation error for a page that never advances, got %v", err)
	}
}

func TestCollect_Canceled(t *testing.T) {
	site := &fakeSite{pages: [][]models.Record{descending("p1", 100, 30), descending("p2", 50, 30)}}
	ctx, cancel := context.WithCancel(context.Background())
	var rec recorder

	onProgress := func(ev models.ProgressEvent) {
		rec.record(ev)
		if ev.Type == models.EventBatch {
			cancel()
		}
	}

	_, err := newTestEngine(site).Collect(ctx, 60, site, site, onProgress)
	var re *models.RunError
	if !errors.As(err, &re) || re.Code != models.ErrCodeCanceled {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if rec.count(models.EventResult) != 0 {
		t.Error("canceled run must not emit a result")
	}
}

func TestCollect_RunDeadline(t *testing.T) {
	site := &fakeSite{pages: [][]models.Record{descending("p1", 100, 30)}, blockLoad: true}
	e := New(Options{
		StartURL:     "https://example.com/newest",
		ItemSelector: ".athing",
		RunDeadline:  10 * time.Millisecond,
	}, fakeExtractor{site: site})

	_, err := e.Collect(context.Background(), 60, site, site, nil)
	var re *models.RunError
	if !errors.As(err, &re) {
		t.Fatalf("expected *models.RunError, got %v", err)
	}
	if re.Code != models.ErrCodeDeadlineExceeded {
		t.Errorf("code = %s, want %s", re.Code, models.ErrCodeDeadlineExceeded)
	}
}

func TestCollect_InvalidTarget(t *testing.T) {
	site := &fakeSite{pages: [][]models.Record{descending("p1", 100, 30)}}
	for _, target := range []int{0, -1} {
		_, err := newTestEngine(site).Collect(context.Background(), target, site, site, nil)
		var re *models.RunError
		if !errors.As(err, &re) || re.Code != models.ErrCodeInvalidInput {
			t.Errorf("target %d: expected invalid input error, got %v", target, err)
		}
		if site.loaded {
			t.Errorf("target %d: page should not be loaded", target)
		}
	}
}

func TestCollect_ProgressSequence(t *testing.T) {
	site := &fakeSite{pages: [][]models.Record{descending("p1", 100, 30), descending("p2", 50, 30)}}
	var rec recorder

	if _, err := newTestEngine(site).Collect(context.Background(), 60, site, site, rec.record); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	var percents []float64
	for _, ev := range rec.events {
		if ev.Type == models.EventStatus || ev.Type == models.EventResult {
			percents = append(percents, ev.Percent)
		}
	}
	want := []float64{0, 5, 5, 40, 80, 100}
	if len(percents) != len(want) {
		t.Fatalf("percents = %v, want %v", percents, want)
	}
	for i := range want {
		if percents[i] != want[i] {
			t.Errorf("percent[%d] = %v, want %v", i, percents[i], want[i])
		}
	}
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Errorf("progress went backwards: %v", percents)
		}
	}

	last := rec.events[len(rec.events)-1]
	if last.Type != models.EventResult || last.Report == nil {
		t.Errorf("last event = %+v, want result with report", last)
	}
}

func TestCollect_BatchEventsCarryOnlyNewRecords(t *testing.T) {
	site := &fakeSite{pages: [][]models.Record{descending("p1", 100, 30), descending("p2", 50, 30)}}
	var rec recorder

	if _, err := newTestEngine(site).Collect(context.Background(), 45, site, site, rec.record); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	var sizes, collected []int
	for _, ev := range rec.events {
		if ev.Type == models.EventBatch {
			sizes = append(sizes, len(ev.Records))
			collected = append(collected, ev.Collected)
			if ev.Total != 45 {
				t.Errorf("batch Total = %d, want 45", ev.Total)
			}
		}
	}
	if fmt.Sprint(sizes) != "[30 15]" || fmt.Sprint(collected) != "[30 45]" {
		t.Errorf("batch sizes %v collected %v, want [30 15] and [30 45]", sizes, collected)
	}
}
