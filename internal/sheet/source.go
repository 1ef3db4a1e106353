// Package sheet fetches the raw schedule export. It knows nothing about the
// export's content; parsing lives in internal/schedule.
package sheet

import (
	"context"
	"errors"
)

// Source produces the raw bytes of one schedule export.
type Source interface {
	// ID identifies the source in cache keys and logs.
	ID() string
	Fetch(ctx context.Context) ([]byte, error)
}

// ErrNotPublished is returned when the spreadsheet answers with an HTML
// page instead of CSV, which is what happens when it is not shared with
// "anyone with the link".
var ErrNotPublished = errors.New("sheet: export returned HTML; is the sheet shared publicly?")
