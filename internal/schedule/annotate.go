package schedule

import (
	"strings"

	"choircal/internal/config"
	"choircal/internal/model"
)

// Annotator derives the secondary facts of a record from its text.
type Annotator struct {
	performance string // lower-cased
	guest       string
	marker      string
}

func NewAnnotator(v config.Vocabulary) Annotator {
	return Annotator{
		performance: strings.ToLower(strings.TrimSpace(v.Performance)),
		guest:       strings.TrimSpace(v.GuestInstructor),
		marker:      v.GuestMarker,
	}
}

// IsPerformance reports whether content or notes mention the performance
// keyword, ignoring case.
func (a Annotator) IsPerformance(content, notes string) bool {
	if a.performance == "" {
		return false
	}
	return strings.Contains(strings.ToLower(content), a.performance) ||
		strings.Contains(strings.ToLower(notes), a.performance)
}

// Annotate sets IsPerformance and GuestInstructor and, for guest-instructor
// rows, appends the marker to the displayed date.
func (a Annotator) Annotate(rec *model.Record) {
	rec.IsPerformance = a.IsPerformance(rec.Content, rec.Notes)
	rec.GuestInstructor = a.guest != "" && strings.Contains(rec.Notes, a.guest)
	if rec.GuestInstructor {
		rec.DateRaw = DecorateDate(rec.DateRaw, a.marker)
	}
}

// DecorateDate appends marker to date unless it is already there.
func DecorateDate(date, marker string) string {
	if marker == "" || strings.HasSuffix(date, marker) {
		return date
	}
	return date + marker
}
