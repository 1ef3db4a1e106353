package schedule

import (
	"strings"

	"choircal/internal/config"
	"choircal/internal/model"
)

// matcher is a compiled config.PhraseSet.
type matcher struct {
	native  []string
	latin   []string // lower-cased
	guarded []config.GuardedPhrase
}

func newMatcher(p config.PhraseSet) matcher {
	m := matcher{native: nonEmpty(p.Native), guarded: p.Guarded}
	for _, s := range nonEmpty(p.Latin) {
		m.latin = append(m.latin, strings.ToLower(s))
	}
	return m
}

// match reports whether text contains any phrase. lower is text already
// lower-cased, so a matcher never lower-cases the same buffer twice.
func (m matcher) match(text, lower string) bool {
	for _, p := range m.native {
		if strings.Contains(text, p) {
			return true
		}
	}
	for _, p := range m.latin {
		if strings.Contains(lower, p) {
			return true
		}
	}
	for _, g := range m.guarded {
		if g.Phrase == "" {
			continue
		}
		if strings.Contains(text, g.Phrase) && (g.Unless == "" || !strings.Contains(text, g.Unless)) {
			return true
		}
	}
	return false
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// rule is one step of the classifier: the first rule whose predicate holds
// decides the category.
type rule struct {
	when     func(text, lower string) bool
	category model.Category
}

// Classifier assigns ensemble categories from row text.
type Classifier struct {
	rules []rule
}

// NewClassifier compiles the vocabulary into an ordered rule list:
// musician-only, then small+large (mixed), then small. Anything left over
// is a full-ensemble rehearsal.
func NewClassifier(v config.Vocabulary) *Classifier {
	musician := newMatcher(v.MusicianOnly)
	small := newMatcher(v.Small)
	large := newMatcher(v.Large)

	return &Classifier{rules: []rule{
		{when: musician.match, category: model.CategoryMusicianOnly},
		{when: func(t, l string) bool { return small.match(t, l) && large.match(t, l) }, category: model.CategoryMixed},
		{when: small.match, category: model.CategorySmall},
	}}
}

// Classify returns the category for a row's content and notes.
func (c *Classifier) Classify(content, notes string) model.Category {
	// The newline keeps a phrase from matching across the two fields.
	text := content + "\n" + notes
	lower := strings.ToLower(text)
	for _, r := range c.rules {
		if r.when(text, lower) {
			return r.category
		}
	}
	return model.CategoryLarge
}
