package engine

import (
	"testing"
	"time"
)

func TestAudit(t *testing.T) {
	tests := []struct {
		name      string
		keys      []int64
		positions []int
	}{
		{"empty", nil, nil},
		{"single", []int64{5}, nil},
		{"descending", []int64{500, 400, 300}, nil},
		{"equal keys", []int64{300, 300, 200, 200}, nil},
		{"one inversion", []int64{500, 400, 450, 100}, []int{2}},
		{"ascending", []int64{1, 2, 3}, []int{1, 2}},
		{"unparsed zero before real", []int64{0, 100}, []int{1}},
		{"unparsed zero after real", []int64{100, 0}, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Audit(keyed(tc.keys...))
			if got == nil {
				t.Fatal("Audit returned nil slice")
			}
			if len(got) != len(tc.positions) {
				t.Fatalf("violations = %d, want %d", len(got), len(tc.positions))
			}
			for i, v := range got {
				if v.Position != tc.positions[i] {
					t.Errorf("violation %d position = %d, want %d", i, v.Position, tc.positions[i])
				}
				if v.Current.SortKey >= v.Next.SortKey {
					t.Errorf("violation %d is not an inversion: %d → %d", i, v.Current.SortKey, v.Next.SortKey)
				}
			}
		})
	}
}

func TestAudit_Idempotent(t *testing.T) {
	recs := keyed(9, 7, 8, 3, 4, 1)
	a := Audit(recs)
	b := Audit(recs)
	if len(a) != len(b) {
		t.Fatalf("audits differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Position != b[i].Position {
			t.Errorf("violation %d differs: %d vs %d", i, a[i].Position, b[i].Position)
		}
	}
}

func TestBuildReport(t *testing.T) {
	recs := keyed(500, 400, 450, 100)
	start := time.Now().Add(-time.Second)

	report := BuildReport(recs, ReportMeta{PagesVisited: 1, SourceExhausted: true, StartedAt: start})
	if report.IsSorted != (len(report.Violations) == 0) {
		t.Error("IsSorted must match an empty violation list")
	}
	if report.TotalCollected != len(report.Records) || report.TotalCollected != 4 {
		t.Errorf("TotalCollected = %d, records = %d", report.TotalCollected, len(report.Records))
	}
	if !report.SourceExhausted || report.PagesVisited != 1 {
		t.Errorf("meta not carried: %+v", report)
	}
	if report.FinishedAt.Before(start) {
		t.Error("FinishedAt precedes StartedAt")
	}

	recs[0].Title = "mutated"
	if report.Records[0].Title == "mutated" {
		t.Error("report shares the caller's record slice")
	}
}

func TestBuildReport_Empty(t *testing.T) {
	report := BuildReport(nil, ReportMeta{})
	if !report.IsSorted || report.TotalCollected != 0 || report.Violations == nil {
		t.Errorf("empty report = %+v", report)
	}
	if report.Records == nil {
		t.Error("Records should be an empty slice, not nil")
	}
}

func TestStateString(t *testing.T) {
	if StateAuditing.String() != "auditing" || State(99).String() != "unknown" {
		t.Errorf("unexpected state names: %s, %s", StateAuditing, State(99))
	}
}
