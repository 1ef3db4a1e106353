package board

import (
	"fmt"
	"time"

	"choircal/internal/config"
	"choircal/internal/metrics"
	"choircal/internal/schedule"
	"choircal/internal/season"
	"choircal/internal/sheet"
)

// Built is the result of FromConfig.
type Built struct {
	Service *Service
	// File is set when the schedule is read from a local file and can be
	// watched for changes.
	File *sheet.FileSource
}

// FromConfig assembles the source chain and engine described by cfg.
// now decides the season when cfg.SeasonStartYear is zero.
func FromConfig(cfg *config.Config, rec *metrics.Recorder, now time.Time) (Built, error) {
	loc := cfg.Location()

	startYear := cfg.SeasonStartYear
	if startYear == 0 {
		startYear = season.StartYearFor(now.In(loc))
	}
	ssn, err := season.New(startYear, loc, cfg.RegularRehearsal)
	if err != nil {
		return Built{}, fmt.Errorf("board: %w", err)
	}

	var (
		upstream sheet.Source
		file     *sheet.FileSource
	)
	switch {
	case cfg.Source.File != "":
		file = sheet.NewFileSource(cfg.Source.ID, cfg.Source.File)
		upstream = file
	case cfg.Source.URL != "":
		upstream = sheet.NewHTTPSource(cfg.Source.ID, cfg.Source.URL, cfg.FetchTimeout(),
			sheet.WithMinInterval(time.Duration(cfg.Source.MinIntervalSeconds)*time.Second),
		)
	default:
		return Built{}, fmt.Errorf("board: source has neither url nor file")
	}

	opts := []sheet.CachedOption{sheet.WithTimeout(cfg.FetchTimeout())}
	if rec != nil {
		opts = append(opts, sheet.WithObserver(rec))
	}
	src := sheet.NewCachedSource(upstream, sheet.NewMemoryCache(), cfg.CacheTTL(), opts...)

	engine := schedule.NewEngine(schedule.Options{
		Vocabulary: cfg.Vocabulary,
		Season:     ssn,
	})

	return Built{Service: NewService(src, engine, rec), File: file}, nil
}
