package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/use-agent/sortcheck/models"
)

const titleWidth = 50

// printReport writes the human-readable validation summary.
func printReport(w io.Writer, r *models.ValidationReport) {
	rule := strings.Repeat("=", 80)

	fmt.Fprintf(w, "\nCollected %d articles", r.TotalCollected)
	if r.SourceExhausted {
		fmt.Fprintf(w, " (no more pages after page %d)", r.PagesVisited)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\n%s\nValidation Results\n%s\n", rule, rule)
	if r.IsSorted {
		fmt.Fprintln(w, "\nArticles are sorted correctly")
	} else {
		fmt.Fprintln(w, "\nArticles are not sorted correctly")
	}
	fmt.Fprintf(w, "\n%d sorting errors found\n", len(r.Violations))

	for i, v := range r.Violations {
		fmt.Fprintf(w, "\n%d. Position %d:\n", i+1, v.Position)
		fmt.Fprintf(w, "\tCurrent article: %s (%s)\n", truncate(v.Current.Title, titleWidth), v.Current.Age)
		fmt.Fprintf(w, "\tNext article: %s (%s)\n", truncate(v.Next.Title, titleWidth), v.Next.Age)
	}

	if len(r.Records) == 0 {
		return
	}
	fmt.Fprintln(w, "\nFirst 5 articles:")
	printRecords(w, r.Records[:min(5, len(r.Records))])
	fmt.Fprintln(w, "\nLast 5 articles:")
	printRecords(w, r.Records[max(0, len(r.Records)-5):])
}

func printRecords(w io.Writer, recs []models.Record) {
	for i, rec := range recs {
		fmt.Fprintf(w, "%d. %s (%s)\n", i+1, truncate(rec.Title, titleWidth), rec.Age)
	}
}

// truncate shortens s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
