package schedule

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	appLog "choircal/internal/log"
	"choircal/internal/model"
)

// FieldCount is the fixed number of positional columns in the sheet:
// period, date, slot, time, content, venue, notes.
const FieldCount = 7

// maxContinuation is how many following lines a quoted cell may span
// before its opening line is treated as malformed.
const maxContinuation = 4

// ErrSourceUnavailable reports that the export was empty or could not be
// read as delimited text at all.
var ErrSourceUnavailable = errors.New("schedule source unavailable")

var utf8BOM = []byte("\xef\xbb\xbf")

// Repair splits raw CSV text into records with exactly FieldCount fields.
// Input is read one physical line at a time. A quoted cell may continue on
// up to maxContinuation following lines; a line whose quote never closes
// within that span, or that cannot be split, is skipped and counted in
// skipped, and reading resumes on the next line. Blank lines are ignored.
// No header is trusted; columns are assigned by position.
func Repair(raw []byte) (records []model.Record, skipped int, err error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, 0, ErrSourceUnavailable
	}

	lines := strings.Split(string(raw), "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}

	for i := 0; i < len(lines); {
		if strings.TrimSpace(lines[i]) == "" {
			i++
			continue
		}

		fields, used, perr := splitRecord(lines[i:])
		if perr != nil {
			skipped++
			appLog.Debug("schedule row skipped", "line", i+1, "err", perr)
			i++
			continue
		}
		records = append(records, mapFields(len(records), fields))
		i += used
	}

	if len(records) == 0 {
		return nil, skipped, ErrSourceUnavailable
	}
	return records, skipped, nil
}

var errUnclosedQuote = errors.New("quoted field not closed")

// splitRecord parses the record starting at lines[0] and reports how many
// lines it consumed. A line with balanced quotes is parsed on its own and
// tolerates stray quotes inside unquoted fields. An unbalanced line is
// joined with following lines until its quotes balance, and the joined
// text must then parse strictly as exactly one record.
func splitRecord(lines []string) ([]string, int, error) {
	text := lines[0]
	if !quoteOpen(text) {
		fields, err := parseOne(text, true)
		return fields, 1, err
	}

	for n := 1; n <= maxContinuation && n < len(lines); n++ {
		text += "\n" + lines[n]
		if !quoteOpen(text) {
			fields, err := parseOne(text, false)
			return fields, n + 1, err
		}
	}
	return nil, 1, errUnclosedQuote
}

// parseOne parses text as a single CSV record.
func parseOne(text string, lazy bool) ([]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = lazy

	fields, err := r.Read()
	if err != nil {
		return nil, err
	}
	if _, err := r.Read(); err != io.EOF {
		if err == nil {
			err = errors.New("line holds more than one record")
		}
		return nil, err
	}
	return fields, nil
}

// quoteOpen reports whether text leaves a quoted literal open. Escaped
// quotes ("") come in pairs, so an odd count means an unclosed literal.
func quoteOpen(text string) bool {
	return strings.Count(text, `"`)%2 == 1
}

// mapFields truncates or pads fields to FieldCount and assigns them to
// record columns by position.
func mapFields(row int, fields []string) model.Record {
	var f [FieldCount]string
	for i := 0; i < FieldCount && i < len(fields); i++ {
		f[i] = strings.TrimSpace(fields[i])
	}
	return model.Record{
		Row:     row,
		Period:  f[0],
		DateRaw: f[1],
		Slot:    f[2],
		Time:    f[3],
		Content: f[4],
		Venue:   f[5],
		Notes:   f[6],
	}
}
