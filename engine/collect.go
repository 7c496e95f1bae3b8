package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/sortcheck/models"
	"github.com/use-agent/sortcheck/simhash"
)

// runState is the mutable accumulation of a single run.
type runState struct {
	state        State
	collection   []models.Record
	pageIndex    int
	pagesVisited int
	lastBatch    uint64
	exhausted    bool
	startedAt    time.Time
}

func (st *runState) transition(to State) {
	slog.Debug("engine: state change", "from", st.state.String(), "to", to.String(), "page", st.pageIndex)
	st.state = to
}

// appendBatch adds at most target-len(collection) records, in batch order,
// and returns the records actually added.
func (st *runState) appendBatch(batch []models.Record, target int) []models.Record {
	room := target - len(st.collection)
	if room <= 0 {
		return nil
	}
	if len(batch) > room {
		batch = batch[:room]
	}
	added := make([]models.Record, len(batch))
	for i, rec := range batch {
		rec.Page = st.pageIndex
		added[i] = rec
	}
	st.collection = append(st.collection, added...)
	return added
}

// Collect harvests up to targetCount records starting at Options.StartURL,
// then audits their order.
//
// Running out of pages before the target is not an error: the report covers
// whatever was collected. Extraction timeouts, navigation failures and
// cancellation abort the run with a *models.RunError and no report; an
// error event is emitted before returning.
func (e *Engine) Collect(ctx context.Context, targetCount int, pages PageProvider, pager Paginator, onProgress ProgressFunc) (*models.ValidationReport, error) {
	if onProgress == nil {
		onProgress = func(models.ProgressEvent) {}
	}

	st := &runState{state: StateIdle, startedAt: time.Now()}
	report, err := e.collect(ctx, st, targetCount, pages, pager, onProgress)
	if err != nil {
		re := models.AsRunError(err)
		st.transition(StateFailed)

		msg := re.Message
		if re.Err != nil {
			msg = fmt.Sprintf("%s: %v", re.Message, re.Err)
		}
		onProgress(models.ProgressEvent{Type: models.EventError, Message: msg, Code: re.Code})
		return nil, re
	}
	return report, nil
}

func (e *Engine) collect(ctx context.Context, st *runState, target int, pages PageProvider, pager Paginator, onProgress ProgressFunc) (*models.ValidationReport, error) {
	if target < 1 {
		return nil, models.NewRunError(models.ErrCodeInvalidInput,
			fmt.Sprintf("target count must be at least 1, got %d", target), nil)
	}

	if e.opts.RunDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.RunDeadline)
		defer cancel()
	}

	status := func(msg string, pct float64) {
		onProgress(models.ProgressEvent{Type: models.EventStatus, Message: msg, Percent: pct})
	}

	st.transition(StateLoading)
	status("Starting validation...", 0)
	if err := pages.Load(ctx, e.opts.StartURL); err != nil {
		return nil, failure(ctx, models.ErrCodeNavigation, "failed to load start page", err)
	}
	status("Page loaded", 5)
	st.pageIndex = 1

	for len(st.collection) < target {
		if err := ctx.Err(); err != nil {
			return nil, contextError(err)
		}

		st.transition(StateLoading)
		status(fmt.Sprintf("Loading page %d...", st.pageIndex),
			5+float64(len(st.collection))/float64(target)*70)

		if err := pages.WaitForSelector(ctx, e.opts.ItemSelector, e.opts.SelectorTimeout); err != nil {
			return nil, failure(ctx, models.ErrCodeExtractionTimeout,
				fmt.Sprintf("selector %q did not appear within %s", e.opts.ItemSelector, e.opts.SelectorTimeout), err)
		}

		st.transition(StateExtracting)
		snap, err := pages.Snapshot(ctx)
		if err != nil {
			return nil, failure(ctx, models.ErrCodeNavigation, "failed to read page content", err)
		}
		batch := e.extractor.Extract(snap)

		fp := simhash.Records(batch)
		if len(batch) > 0 && st.pagesVisited > 0 && fp == st.lastBatch {
			return nil, models.NewRunError(models.ErrCodeNavigation,
				fmt.Sprintf("pagination did not advance past page %d", st.pageIndex-1), nil)
		}
		st.lastBatch = fp
		st.pagesVisited++

		added := st.appendBatch(batch, target)
		onProgress(models.ProgressEvent{
			Type:      models.EventBatch,
			Collected: len(st.collection),
			Total:     target,
			Records:   added,
		})
		slog.Debug("engine: page extracted",
			"page", st.pageIndex,
			"extracted", len(batch),
			"added", len(added),
			"collected", len(st.collection),
		)

		if len(st.collection) >= target {
			break
		}

		st.transition(StatePaginating)
		more, err := pager.HasNext(ctx)
		if err != nil {
			return nil, failure(ctx, models.ErrCodeNavigation, "failed to look up next page", err)
		}
		if !more {
			st.exhausted = true
			slog.Info("engine: no more pages available",
				"page", st.pageIndex,
				"collected", len(st.collection),
				"target", target,
			)
			break
		}
		if err := pager.Advance(ctx); err != nil {
			return nil, failure(ctx, models.ErrCodeNavigation, "failed to advance to next page", err)
		}
		if err := pager.WaitForQuiescence(ctx, e.opts.QuietInterval); err != nil {
			return nil, failure(ctx, models.ErrCodeNavigation, "next page did not settle", err)
		}
		st.pageIndex++
	}

	st.transition(StateAuditing)
	status("Validating article sorting...", 80)
	report := BuildReport(st.collection, ReportMeta{
		PagesVisited:    st.pagesVisited,
		SourceExhausted: st.exhausted,
		StartedAt:       st.startedAt,
	})
	st.transition(StateDone)

	onProgress(models.ProgressEvent{Type: models.EventResult, Percent: 100, Report: report})
	return report, nil
}

// failure attributes a collaborator error to the run context when the run
// itself was cancelled or timed out, and to code otherwise.
func failure(ctx context.Context, code, msg string, err error) *models.RunError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return contextError(ctxErr)
	}
	return models.NewRunError(code, msg, err)
}

func contextError(err error) *models.RunError {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewRunError(models.ErrCodeDeadlineExceeded, "run deadline exceeded", err)
	}
	return models.NewRunError(models.ErrCodeCanceled, "run canceled", err)
}
