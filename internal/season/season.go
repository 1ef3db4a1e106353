// Package season maps the sheet's year-less month/day pairs onto calendar
// dates. A season runs from November of its start year to the end of
// October of the following year.
package season

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// FirstMonth is the first month that belongs to the season's start year.
const FirstMonth = time.November

// Season is the active rehearsal season.
type Season struct {
	startYear int
	loc       *time.Location
	regular   *rrule.RRule
}

// New builds a Season. regularRule is an optional RRULE (without DTSTART)
// describing the choir's usual rehearsal days; it is anchored at the start
// of the season window.
func New(startYear int, loc *time.Location, regularRule string) (Season, error) {
	if loc == nil {
		loc = time.Local
	}
	s := Season{startYear: startYear, loc: loc}

	regularRule = strings.TrimSpace(regularRule)
	if regularRule == "" {
		return s, nil
	}
	r, err := rrule.StrToRRule(strings.TrimPrefix(regularRule, "RRULE:"))
	if err != nil {
		return Season{}, fmt.Errorf("season: parse regular rehearsal rule: %w", err)
	}
	start, _ := s.Window()
	r.DTStart(start)
	s.regular = r
	return s, nil
}

// StartYearFor returns the start year of the season containing now: rows
// from November onward belong to a new season.
func StartYearFor(now time.Time) int {
	if now.Month() >= FirstMonth {
		return now.Year()
	}
	return now.Year() - 1
}

func (s Season) StartYear() int { return s.startYear }

func (s Season) Location() *time.Location { return s.loc }

// YearFor infers the calendar year of a month in this season.
func (s Season) YearFor(month time.Month) int {
	if month >= FirstMonth {
		return s.startYear
	}
	return s.startYear + 1
}

// Date returns midnight of month/day in the season's location. ok is false
// when the pair does not name a real calendar day.
func (s Season) Date(month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	m := time.Month(month)
	t := time.Date(s.YearFor(m), m, day, 0, 0, 0, 0, s.loc)
	// time.Date normalizes overflow (2/30 -> 3/2); reject it.
	if t.Month() != m || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// Window returns the half-open interval [start, end) covered by the season.
func (s Season) Window() (time.Time, time.Time) {
	start := time.Date(s.startYear, FirstMonth, 1, 0, 0, 0, 0, s.loc)
	return start, start.AddDate(1, 0, 0)
}

// Today truncates now to midnight in the season's location.
func (s Season) Today(now time.Time) time.Time {
	n := now.In(s.loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, s.loc)
}

// IsRegularDay reports whether day falls on a regular rehearsal day. It is
// always false when no rule is configured.
func (s Season) IsRegularDay(day time.Time) bool {
	if s.regular == nil {
		return false
	}
	d := s.Today(day)
	// Between is inclusive on both ends; stop just short of the next midnight.
	return len(s.regular.Between(d, d.AddDate(0, 0, 1).Add(-time.Second), true)) > 0
}

// DaysBetween counts calendar days from a to b, ignoring DST shifts.
func DaysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
