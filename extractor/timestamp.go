package extractor

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// SortKey converts an age label to Unix milliseconds.
//
// Labels of the form "<timestamp> <unix-seconds>" have the timestamp part
// parsed. Zone-less timestamps are read as UTC. Anything unparseable yields 0,
// which sorts as the oldest possible record.
func SortKey(raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}

	if fields := strings.Fields(raw); len(fields) == 2 && isDigits(fields[1]) {
		raw = fields[0]
	}

	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
