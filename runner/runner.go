// Package runner coordinates collection runs: it enforces a single active
// run, opens a page session per run, and records outcomes.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/sortcheck/cache"
	"github.com/use-agent/sortcheck/engine"
	"github.com/use-agent/sortcheck/models"
	"github.com/use-agent/sortcheck/progress"
)

// Session is a page source for one run.
type Session interface {
	engine.PageProvider
	engine.Paginator
	Close() error
}

// SessionFactory opens a fresh session.
type SessionFactory func(ctx context.Context) (Session, error)

// Runner is safe for concurrent use.
type Runner struct {
	engine   *engine.Engine
	sessions SessionFactory
	store    *cache.Store
	sink     progress.Sink

	defaultTarget int

	mu     sync.Mutex
	active string

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a Runner. store and sink may be nil. defaultTarget fills in
// requests that leave TargetCount unset; values below 1 fall back to
// models.DefaultTargetCount.
func New(eng *engine.Engine, sessions SessionFactory, store *cache.Store, sink progress.Sink, defaultTarget int) *Runner {
	if sink == nil {
		sink = progress.Multi{}
	}
	if defaultTarget < 1 {
		defaultTarget = models.DefaultTargetCount
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		engine:   eng,
		sessions: sessions,
		store:    store,
		sink:     sink,
		baseCtx:  ctx,

		defaultTarget: defaultTarget,
		cancel:   cancel,
	}
}

// Start validates req, claims the run slot and launches the run in the
// background. It returns the new run's ID.
func (r *Runner) Start(req models.RunRequest) (string, error) {
	r.applyDefaults(&req)
	if err := validate(req); err != nil {
		return "", err
	}

	id := uuid.NewString()
	if err := r.acquire(id); err != nil {
		return "", err
	}
	r.record(models.RunStatus{
		ID:          id,
		Status:      models.RunStatusRunning,
		TargetCount: req.TargetCount,
		CreatedAt:   time.Now(),
	})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release()
		_, _ = r.execute(r.baseCtx, id, req.TargetCount)
	}()
	return id, nil
}

// Run executes a run on the calling goroutine and returns its report.
func (r *Runner) Run(ctx context.Context, req models.RunRequest) (*models.ValidationReport, error) {
	r.applyDefaults(&req)
	if err := validate(req); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	if err := r.acquire(id); err != nil {
		return nil, err
	}
	defer r.release()

	r.record(models.RunStatus{
		ID:          id,
		Status:      models.RunStatusRunning,
		TargetCount: req.TargetCount,
		CreatedAt:   time.Now(),
	})
	return r.execute(ctx, id, req.TargetCount)
}

func (r *Runner) applyDefaults(req *models.RunRequest) {
	if req.TargetCount == 0 {
		req.TargetCount = r.defaultTarget
	}
	req.Defaults()
}

// Active returns the ID of the run in progress, or "".
func (r *Runner) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Status looks up a run recorded by this Runner.
func (r *Runner) Status(id string) (models.RunStatus, error) {
	if r.store == nil {
		return models.RunStatus{}, models.NewRunError(models.ErrCodeNotFound, "run status is not retained", nil)
	}
	st, ok := r.store.Get(id)
	if !ok {
		return models.RunStatus{}, models.NewRunError(models.ErrCodeNotFound, fmt.Sprintf("run %q not found", id), nil)
	}
	return st, nil
}

// Shutdown cancels any background run and waits for it to finish or for
// ctx to end.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func validate(req models.RunRequest) error {
	if req.TargetCount < 1 || req.TargetCount > models.MaxTargetCount {
		return models.NewRunError(models.ErrCodeInvalidInput,
			fmt.Sprintf("target_count must be between 1 and %d", models.MaxTargetCount), nil)
	}
	return nil
}

func (r *Runner) acquire(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != "" {
		return models.NewRunError(models.ErrCodeRunInProgress,
			fmt.Sprintf("run %s is already in progress", r.active), nil)
	}
	r.active = id
	return nil
}

func (r *Runner) release() {
	r.mu.Lock()
	r.active = ""
	r.mu.Unlock()
}

func (r *Runner) record(st models.RunStatus) {
	if r.store != nil {
		r.store.Put(st)
	}
}

func (r *Runner) execute(ctx context.Context, id string, target int) (*models.ValidationReport, error) {
	log := slog.With("run_id", id)
	log.Info("run started", "target", target)
	start := time.Now()

	publish := func(ev models.ProgressEvent) {
		ev.RunID = id
		r.sink.Publish(ev)
	}

	report, err := r.collect(ctx, target, publish)
	if err != nil {
		re := models.AsRunError(err)
		r.finish(id, func(st *models.RunStatus) {
			st.Status = models.RunStatusFailed
			st.Error = re.ToDetail()
		})
		log.Warn("run failed", "code", re.Code, "error", err, "elapsed", time.Since(start))
		return nil, re
	}

	r.finish(id, func(st *models.RunStatus) {
		st.Status = models.RunStatusCompleted
		st.Report = report
	})
	log.Info("run completed",
		"sorted", report.IsSorted,
		"collected", report.TotalCollected,
		"violations", len(report.Violations),
		"elapsed", time.Since(start),
	)
	return report, nil
}

// collect opens a session and runs the engine on it. Failures to open a
// session are reported through publish like engine failures.
func (r *Runner) collect(ctx context.Context, target int, publish engine.ProgressFunc) (*models.ValidationReport, error) {
	sess, err := r.sessions(ctx)
	if err != nil {
		re := models.AsRunError(err)
		if re.Code == models.ErrCodeInternal {
			re = models.NewRunError(models.ErrCodeBrowserCrash, "failed to open page session", err)
		}
		publish(models.ProgressEvent{Type: models.EventError, Message: re.Error(), Code: re.Code})
		return nil, re
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			slog.Warn("session close failed", "error", cerr)
		}
	}()

	return r.engine.Collect(ctx, target, sess, sess, publish)
}

func (r *Runner) finish(id string, fn func(*models.RunStatus)) {
	if r.store != nil {
		r.store.Update(id, fn)
	}
}
