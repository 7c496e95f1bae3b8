package engine

import (
	"time"

	"github.com/use-agent/sortcheck/models"
)

// Audit scans adjacent pairs left to right and returns one violation for
// every pair whose earlier record has a smaller sort key than the next.
// Equal keys are in order. The result is never nil.
func Audit(records []models.Record) []models.SortViolation {
	violations := []models.SortViolation{}
	for i := 0; i+1 < len(records); i++ {
		cur, next := records[i], records[i+1]
		if cur.SortKey < next.SortKey {
			violations = append(violations, models.SortViolation{
				Position: i + 1,
				Current:  cur,
				Next:     next,
			})
		}
	}
	return violations
}

// ReportMeta carries run facts that are not derivable from the records.
type ReportMeta struct {
	PagesVisited    int
	SourceExhausted bool
	StartedAt       time.Time
}

// BuildReport audits records and assembles the final report. The report
// holds its own copy of records.
func BuildReport(records []models.Record, meta ReportMeta) *models.ValidationReport {
	recs := make([]models.Record, len(records))
	copy(recs, records)

	violations := Audit(recs)
	return &models.ValidationReport{
		IsSorted:        len(violations) == 0,
		TotalCollected:  len(recs),
		Violations:      violations,
		Records:         recs,
		PagesVisited:    meta.PagesVisited,
		SourceExhausted: meta.SourceExhausted,
		StartedAt:       meta.StartedAt,
		FinishedAt:      time.Now(),
	}
}
