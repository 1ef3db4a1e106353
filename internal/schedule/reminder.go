package schedule

import (
	"time"

	"choircal/internal/model"
	"choircal/internal/season"
)

// EventState is the terminal state of the next-event reminder.
type EventState string

const (
	StateEventToday    EventState = "EVENT_TODAY"
	StateEventUpcoming EventState = "EVENT_UPCOMING"
	StateNoneScheduled EventState = "NONE_SCHEDULED"
)

// StateTodayIdle is informational and never a terminal State: nothing
// happens today, but something is scheduled later.
const StateTodayIdle EventState = "TODAY_IDLE"

// PerformanceReminder is the countdown to the nearest performance.
type PerformanceReminder struct {
	Record    model.Record `json:"record"`
	DaysUntil int          `json:"days_until"`
}

// EventReminder describes the nearest upcoming event for the viewer.
type EventReminder struct {
	State EventState    `json:"state"`
	Next  *model.Record `json:"next,omitempty"`
	// DaysUntil is zero for EVENT_TODAY and NONE_SCHEDULED.
	DaysUntil int `json:"days_until"`
	// Today lists every event scheduled today, in sheet order.
	Today []model.Record `json:"today,omitempty"`
	// Info is StateTodayIdle when nothing is scheduled today but a later
	// event is, and empty otherwise.
	Info EventState `json:"info,omitempty"`
	// RegularDay is set when today is idle although it is one of the
	// choir's regular rehearsal days.
	RegularDay bool `json:"regular_day"`
}

// Reminders is the pair of reminders shown above the board.
type Reminders struct {
	// Performance is nil when no performance is ahead.
	Performance *PerformanceReminder `json:"performance,omitempty"`
	Event       EventReminder        `json:"event"`
	// ShowEvent is false when the next event is the performance already
	// surfaced as the primary reminder.
	ShowEvent bool `json:"show_event"`
}

// SelectReminders picks the nearest performance over all records and the
// nearest event over the records the viewer's role can see. now is the
// caller's clock; only its calendar day in the season's location matters.
func SelectReminders(records []model.Record, showSmall bool, now time.Time, s season.Season) Reminders {
	today := s.Today(now)

	var rem Reminders
	if perf, ok := nearest(records, today, func(r model.Record) bool { return r.IsPerformance }); ok {
		rem.Performance = &PerformanceReminder{
			Record:    perf,
			DaysUntil: season.DaysBetween(today, perf.EventDate),
		}
	}

	role := RoleFilter(showSmall)
	rem.Event = selectEvent(records, role, today, s)

	rem.ShowEvent = true
	if rem.Performance != nil && rem.Event.Next != nil && rem.Event.Next.Row == rem.Performance.Record.Row {
		rem.ShowEvent = false
	}
	return rem
}

func selectEvent(records []model.Record, role Predicate, today time.Time, s season.Season) EventReminder {
	next, ok := nearest(records, today, role)
	if !ok {
		return EventReminder{State: StateNoneScheduled}
	}

	ev := EventReminder{Next: &next}
	if next.EventDate.Equal(today) {
		ev.State = StateEventToday
		for _, r := range records {
			if role(r) && r.HasDate() && r.EventDate.Equal(today) {
				ev.Today = append(ev.Today, r)
			}
		}
		return ev
	}

	ev.State = StateEventUpcoming
	ev.DaysUntil = season.DaysBetween(today, next.EventDate)
	ev.Info = StateTodayIdle
	ev.RegularDay = s.IsRegularDay(today)
	return ev
}

// nearest returns the earliest-dated record on or after today that keep
// accepts. Ties go to the earlier sheet row; undated records never qualify.
func nearest(records []model.Record, today time.Time, keep Predicate) (model.Record, bool) {
	var (
		best  model.Record
		found bool
	)
	for _, r := range records {
		if !r.HasDate() || r.EventDate.Before(today) || !keep(r) {
			continue
		}
		if !found || r.EventDate.Before(best.EventDate) {
			best = r
			found = true
		}
	}
	return best, found
}
