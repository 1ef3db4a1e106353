package ics

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"choircal/internal/model"
)

// ExportConfig controls the generated calendar feed.
type ExportConfig struct {
	// SourceID namespaces event UIDs.
	SourceID string
	// Name is shown by calendar clients (X-WR-CALNAME).
	Name string
	// Location is the timezone the sheet's clock times are written in.
	// If nil, time.Local is used.
	Location *time.Location
	// Now stamps DTSTAMP.
	Now time.Time
}

// timeRange matches the sheet's "14:00-17:00" style time column.
var timeRange = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*[-~～–]\s*(\d{1,2}):(\d{2})$`)

// Export renders dated records as an iCalendar feed. Records whose time
// column holds a clock range become timed events; all others are all-day
// events. Undated records are skipped.
func Export(records []model.Record, cfg ExportConfig) string {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//choircal//schedule//EN")
	if cfg.Name != "" {
		cal.SetXWRCalName(cfg.Name)
	}
	cal.SetXWRTimezone(cfg.Location.String())

	for _, rec := range records {
		if !rec.HasDate() {
			continue
		}
		ev := cal.AddEvent(eventUID(cfg.SourceID, rec))
		ev.SetDtStampTime(cfg.Now.UTC())
		ev.SetSummary(summary(rec))
		if rec.Venue != "" {
			ev.SetLocation(rec.Venue)
		}
		if desc := description(rec); desc != "" {
			ev.SetDescription(desc)
		}
		ev.AddProperty(ical.ComponentPropertyCategories, string(rec.Category))

		if start, end, ok := clockRange(rec.EventDate, rec.Time, cfg.Location); ok {
			ev.SetStartAt(start)
			ev.SetEndAt(end)
		} else {
			ev.SetAllDayStartAt(rec.EventDate)
			ev.SetAllDayEndAt(rec.EventDate.AddDate(0, 0, 1))
		}
	}

	return cal.Serialize()
}

// eventUID is stable for a given sheet row and date.
func eventUID(sourceID string, rec model.Record) string {
	if sourceID == "" {
		sourceID = "schedule"
	}
	return fmt.Sprintf("%s-%d-%s@choircal", sourceID, rec.Row, rec.EventDate.Format("20060102"))
}

func summary(rec model.Record) string {
	s := rec.Content
	if s == "" {
		s = strings.TrimSpace(rec.Slot + " 排練")
	}
	if rec.IsPerformance && !strings.HasPrefix(s, "🎤") {
		s = "🎤 " + s
	}
	return s
}

func description(rec model.Record) string {
	parts := make([]string, 0, 3)
	if rec.Slot != "" {
		parts = append(parts, "時段: "+rec.Slot)
	}
	if rec.Time != "" {
		parts = append(parts, "時間: "+rec.Time)
	}
	if rec.Notes != "" {
		parts = append(parts, "備註: "+rec.Notes)
	}
	return strings.Join(parts, "\n")
}

// clockRange turns "14:00-17:00" on day into concrete start/end times.
func clockRange(day time.Time, text string, loc *time.Location) (time.Time, time.Time, bool) {
	m := timeRange.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return time.Time{}, time.Time{}, false
	}
	n := make([]int, 4)
	for i := range n {
		v, err := strconv.Atoi(m[i+1])
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		n[i] = v
	}
	if n[0] > 23 || n[1] > 59 || n[2] > 24 || n[3] > 59 {
		return time.Time{}, time.Time{}, false
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), n[0], n[1], 0, 0, loc)
	end := time.Date(day.Year(), day.Month(), day.Day(), n[2], n[3], 0, 0, loc)
	if !end.After(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
