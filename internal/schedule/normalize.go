package schedule

import (
	"strings"
	"unicode"

	"choircal/internal/model"
)

// Normalize forward-fills Period the way merged header cells read: a blank
// period inherits the last non-empty one above it. Records that still have
// no period (nothing above them to inherit) and records whose date field
// contains no digit are dropped.
func Normalize(records []model.Record) []model.Record {
	out := make([]model.Record, 0, len(records))
	last := ""
	for _, rec := range records {
		if rec.Period == "" {
			rec.Period = last
		} else {
			last = rec.Period
		}
		if rec.Period == "" || !hasDigit(rec.DateRaw) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}
