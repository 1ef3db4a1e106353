// Package schedule turns the raw rehearsal sheet export into classified,
// dated records and builds filtered, reminder-annotated boards from them.
//
// The pipeline is synchronous and free of shared state:
//
//	raw CSV -> Repair -> Normalize -> classify -> resolve date -> annotate
//	        -> Dataset -> (filters | reminders) -> projection -> Board
//
// Every function here is deterministic given its inputs; the current time
// is always passed in by the caller.
package schedule

import (
	"time"

	"choircal/internal/config"
	appLog "choircal/internal/log"
	"choircal/internal/model"
	"choircal/internal/season"
)

// Options configures an Engine.
type Options struct {
	Vocabulary config.Vocabulary
	Season     season.Season
}

// Engine holds the compiled rules of the schedule pipeline.
type Engine struct {
	season     season.Season
	classifier *Classifier
	annotator  Annotator
	tagger     *Tagger
}

func NewEngine(opts Options) *Engine {
	return &Engine{
		season:     opts.Season,
		classifier: NewClassifier(opts.Vocabulary),
		annotator:  NewAnnotator(opts.Vocabulary),
		tagger:     NewTagger(opts.Vocabulary),
	}
}

func (e *Engine) Season() season.Season { return e.season }

// Dataset is the canonical outcome of one ingestion pass.
type Dataset struct {
	// Records excludes musician-only rows and is in sheet order.
	Records []model.Record `json:"records"`

	Skipped      int `json:"skipped"`       // rows the CSV reader rejected
	Dropped      int `json:"dropped"`       // header, title and blank rows
	MusicianOnly int `json:"musician_only"` // rows hidden from every view
	Undated      int `json:"undated"`       // rows whose date could not be resolved
}

// Ingest runs repair, normalization, classification, date resolution and
// annotation over a raw export. It fails only with ErrSourceUnavailable.
func (e *Engine) Ingest(raw []byte) (Dataset, error) {
	repaired, skipped, err := Repair(raw)
	if err != nil {
		return Dataset{Skipped: skipped}, err
	}

	normalized := Normalize(repaired)
	ds := Dataset{
		Records: make([]model.Record, 0, len(normalized)),
		Skipped: skipped,
		Dropped: len(repaired) - len(normalized),
	}

	for _, rec := range normalized {
		rec.Category = e.classifier.Classify(rec.Content, rec.Notes)
		if rec.Category == model.CategoryMusicianOnly {
			ds.MusicianOnly++
			continue
		}
		if d, ok := ResolveDate(rec.DateRaw, e.season); ok {
			rec.EventDate = d
		} else {
			ds.Undated++
			appLog.Debug("schedule date unparsable", "row", rec.Row, "date", rec.DateRaw)
		}
		e.annotator.Annotate(&rec)
		ds.Records = append(ds.Records, rec)
	}

	return ds, nil
}

// Board is everything the UI layer needs for one render.
type Board struct {
	Rows []model.BoardRow `json:"rows"`
	// Total is the number of rows after filtering.
	Total int `json:"total"`
	// Periods lists every period of the dataset once, in sheet order.
	Periods   []string  `json:"periods"`
	Reminders Reminders `json:"reminders"`
	Selection Selection `json:"selection"`

	// Unavailable is set when the source could not be read; Warning then
	// carries the user-facing message and Rows is empty.
	Unavailable bool   `json:"unavailable"`
	Warning     string `json:"warning,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Board filters, orders and projects ds for one viewer. Reminders use only
// the viewer's role, never the period, keyword or performance filters.
func (e *Engine) Board(ds Dataset, sel Selection, now time.Time) Board {
	visible := Apply(ds.Records, sel.Predicates()...)
	if sel.SortByDate {
		SortByDate(visible)
	}

	return Board{
		Rows:        e.tagger.Project(visible),
		Total:       len(visible),
		Periods:     Periods(ds.Records),
		Reminders:   SelectReminders(ds.Records, sel.ShowSmall, now, e.season),
		Selection:   sel,
		GeneratedAt: now,
	}
}

// Periods returns the distinct periods of records in first-seen order.
func Periods(records []model.Record) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, r := range records {
		if _, ok := seen[r.Period]; ok {
			continue
		}
		seen[r.Period] = struct{}{}
		out = append(out, r.Period)
	}
	return out
}
