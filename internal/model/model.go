package model

import "time"

// Category is the ensemble classification of a schedule row.
type Category string

const (
	// CategoryMusicianOnly rows concern the accompanying band only and are
	// dropped before any view is built.
	CategoryMusicianOnly Category = "musician_only"
	CategorySmall        Category = "small"
	CategoryLarge        Category = "large"
	CategoryMixed        Category = "mixed"
)

// PriorityTag is the row-level visual priority assigned by the projection.
type PriorityTag string

const (
	TagAlert             PriorityTag = "alert"
	TagEnsembleHighlight PriorityTag = "ensemble-highlight"
	TagDefault           PriorityTag = "default"
)

// Record is one row of the rehearsal calendar after repair, normalization,
// classification and annotation.
type Record struct {
	// Row is the position of the record in the source export. It is the
	// record's identity when comparing reminder selections.
	Row int `json:"row"`

	Period  string `json:"period"`
	DateRaw string `json:"date"`
	Slot    string `json:"slot"`
	Time    string `json:"time"`
	Content string `json:"content"`
	Venue   string `json:"venue"`
	Notes   string `json:"notes"`

	Category Category `json:"category"`

	// EventDate is midnight of the resolved day in the season's location.
	// The zero value means the date could not be resolved.
	EventDate time.Time `json:"event_date,omitzero"`

	IsPerformance   bool `json:"is_performance"`
	GuestInstructor bool `json:"guest_instructor"`
}

// HasDate reports whether the record carries a resolved EventDate.
func (r Record) HasDate() bool {
	return !r.EventDate.IsZero()
}

// Fields returns the seven positional text fields in source column order.
func (r Record) Fields() []string {
	return []string{r.Period, r.DateRaw, r.Slot, r.Time, r.Content, r.Venue, r.Notes}
}

// BoardRow is a presentation copy of a Record. Period may be blanked by
// period collapsing; the canonical Record is never modified.
type BoardRow struct {
	Record

	Tag PriorityTag `json:"priority_tag"`
	// Parity alternates "even"/"odd" by row position for default rows and
	// is empty otherwise.
	Parity string `json:"parity,omitempty"`
}
