package schedule

import (
	"slices"
	"strings"

	"choircal/internal/model"
)

// Predicate decides whether a record stays in a view. Predicates must not
// modify the record.
type Predicate func(model.Record) bool

// Selection carries the viewer's filter inputs. The zero value shows every
// full-ensemble row in sheet order.
type Selection struct {
	ShowSmall       bool     `json:"show_small"`
	Periods         []string `json:"periods,omitempty"`
	Keyword         string   `json:"keyword,omitempty"`
	PerformanceOnly bool     `json:"performance_only"`
	SortByDate      bool     `json:"sort_by_date"`
}

// Predicates returns the filters selected by s.
func (s Selection) Predicates() []Predicate {
	return []Predicate{
		RoleFilter(s.ShowSmall),
		PeriodFilter(s.Periods),
		KeywordFilter(s.Keyword),
		PerformanceFilter(s.PerformanceOnly),
	}
}

func keepAll(model.Record) bool { return true }

// RoleFilter hides small-ensemble rows from viewers who are not in the
// small ensemble. Musician-only rows never pass.
func RoleFilter(showSmall bool) Predicate {
	return func(r model.Record) bool {
		switch r.Category {
		case model.CategoryLarge, model.CategoryMixed:
			return true
		case model.CategorySmall:
			return showSmall
		default:
			return false
		}
	}
}

// PeriodFilter keeps records whose period is in periods. An empty set
// means no constraint.
func PeriodFilter(periods []string) Predicate {
	if len(periods) == 0 {
		return keepAll
	}
	set := make(map[string]struct{}, len(periods))
	for _, p := range periods {
		set[p] = struct{}{}
	}
	return func(r model.Record) bool {
		_, ok := set[r.Period]
		return ok
	}
}

// KeywordFilter keeps records where keyword occurs, ignoring case, in any
// of the seven text fields. A blank keyword means no constraint.
func KeywordFilter(keyword string) Predicate {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return keepAll
	}
	return func(r model.Record) bool {
		for _, f := range r.Fields() {
			if strings.Contains(strings.ToLower(f), kw) {
				return true
			}
		}
		return false
	}
}

// PerformanceFilter keeps only performances when on is set.
func PerformanceFilter(on bool) Predicate {
	if !on {
		return keepAll
	}
	return func(r model.Record) bool { return r.IsPerformance }
}

// Apply returns the records matching every predicate, in input order. The
// input slice is not modified.
func Apply(records []model.Record, preds ...Predicate) []model.Record {
	out := make([]model.Record, 0, len(records))
next:
	for _, r := range records {
		for _, p := range preds {
			if !p(r) {
				continue next
			}
		}
		out = append(out, r)
	}
	return out
}

// SortByDate orders records by EventDate in place, keeping sheet order for
// equal dates. Records without a date sort last.
func SortByDate(records []model.Record) {
	slices.SortStableFunc(records, func(a, b model.Record) int {
		switch {
		case !a.HasDate() && !b.HasDate():
			return 0
		case !a.HasDate():
			return 1
		case !b.HasDate():
			return -1
		}
		return a.EventDate.Compare(b.EventDate)
	})
}
