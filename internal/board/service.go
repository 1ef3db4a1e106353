// Package board wires the schedule source to the schedule engine and turns
// source failures into a user-facing warning instead of an error.
package board

import (
	"context"
	"errors"
	"time"

	appLog "choircal/internal/log"
	"choircal/internal/metrics"
	"choircal/internal/model"
	"choircal/internal/schedule"
	"choircal/internal/sheet"
)

// UnavailableWarning is shown when the schedule cannot be read.
const UnavailableWarning = "讀取不到有效資料，請確認 Google Sheet 已設定為「知道連結的任何人」可檢視。"

// Source is a sheet.Source whose cached copy can be dropped.
type Source interface {
	sheet.Source
	Invalidate()
}

// Service builds boards from the configured source.
type Service struct {
	src     Source
	engine  *schedule.Engine
	metrics *metrics.Recorder
}

// NewService creates a Service. rec may be nil.
func NewService(src Source, engine *schedule.Engine, rec *metrics.Recorder) *Service {
	return &Service{src: src, engine: engine, metrics: rec}
}

func (s *Service) Engine() *schedule.Engine { return s.engine }

// Dataset fetches and ingests the export. Any failure is reported as
// schedule.ErrSourceUnavailable, wrapping the cause.
func (s *Service) Dataset(ctx context.Context) (schedule.Dataset, error) {
	raw, err := s.src.Fetch(ctx)
	if err != nil {
		return schedule.Dataset{}, errors.Join(schedule.ErrSourceUnavailable, err)
	}

	ds, err := s.engine.Ingest(raw)
	if err != nil {
		return schedule.Dataset{}, err
	}

	appLog.Debug("schedule ingested",
		"id", s.src.ID(),
		"records", len(ds.Records),
		"skipped", ds.Skipped,
		"dropped", ds.Dropped,
		"musician_only", ds.MusicianOnly,
		"undated", ds.Undated,
	)
	if s.metrics != nil {
		s.metrics.RecordIngest(ds)
	}
	return ds, nil
}

// Board returns the board for sel at now. It never fails: when the source
// is unavailable the board is empty, flagged and carries a warning.
func (s *Service) Board(ctx context.Context, sel schedule.Selection, now time.Time) schedule.Board {
	ds, err := s.Dataset(ctx)
	if err != nil {
		appLog.Warn("schedule source unavailable", "id", s.src.ID(), "err", err)
		if s.metrics != nil {
			s.metrics.RecordUnavailable()
		}
		return Unavailable(sel, now)
	}
	return s.engine.Board(ds, sel, now)
}

// Refresh drops the cached export and fetches it again.
func (s *Service) Refresh(ctx context.Context) (schedule.Dataset, error) {
	s.src.Invalidate()
	return s.Dataset(ctx)
}

// Unavailable is the board shown when no data could be read.
func Unavailable(sel schedule.Selection, now time.Time) schedule.Board {
	return schedule.Board{
		Rows:        []model.BoardRow{},
		Periods:     []string{},
		Reminders:   schedule.Reminders{Event: schedule.EventReminder{State: schedule.StateNoneScheduled}, ShowEvent: true},
		Selection:   sel,
		Unavailable: true,
		Warning:     UnavailableWarning,
		GeneratedAt: now,
	}
}
