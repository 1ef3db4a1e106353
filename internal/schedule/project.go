package schedule

import (
	"strings"

	"choircal/internal/config"
	"choircal/internal/model"
)

// Tagger assigns the row-level visual priority.
type Tagger struct {
	alert matcher
}

func NewTagger(v config.Vocabulary) *Tagger {
	return &Tagger{alert: newMatcher(v.Alert)}
}

// Tag evaluates, in order: alert phrases in content or notes, then
// small/mixed ensemble rows, then the default tag.
func (t *Tagger) Tag(r model.Record) model.PriorityTag {
	text := r.Content + "\n" + r.Notes
	if t.alert.match(text, strings.ToLower(text)) {
		return model.TagAlert
	}
	switch r.Category {
	case model.CategorySmall, model.CategoryMixed:
		return model.TagEnsembleHighlight
	}
	return model.TagDefault
}

// Project copies the final ordered records into board rows, tags them and
// collapses repeated periods.
func (t *Tagger) Project(records []model.Record) []model.BoardRow {
	rows := make([]model.BoardRow, len(records))
	for i, r := range records {
		rows[i] = model.BoardRow{Record: r, Tag: t.Tag(r)}
		if rows[i].Tag == model.TagDefault {
			rows[i].Parity = parity(i)
		}
	}
	CollapsePeriods(rows)
	return rows
}

// CollapsePeriods blanks Period on every row that repeats the period of the
// row directly above it, so each run shows its period once.
func CollapsePeriods(rows []model.BoardRow) {
	prev := ""
	for i := range rows {
		cur := rows[i].Period
		if i > 0 && cur == prev {
			rows[i].Period = ""
		}
		prev = cur
	}
}

func parity(i int) string {
	if i%2 == 0 {
		return "even"
	}
	return "odd"
}
