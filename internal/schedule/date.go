package schedule

import (
	"strconv"
	"strings"
	"time"

	"choircal/internal/season"
)

// ResolveDate parses a sheet date such as "12/25(四)" into a calendar date
// in the given season. Anything from the first parenthesis onward is a
// weekday annotation and is ignored. ok is false when the text does not
// name a real month/day pair.
func ResolveDate(raw string, s season.Season) (time.Time, bool) {
	if i := strings.IndexAny(raw, "(（"); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.TrimSpace(raw)

	monthPart, dayPart, found := strings.Cut(raw, "/")
	if !found {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(strings.TrimSpace(monthPart))
	if err != nil {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(strings.TrimSpace(dayPart))
	if err != nil {
		return time.Time{}, false
	}
	return s.Date(month, day)
}
