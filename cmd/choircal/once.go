package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"choircal/internal/board"
	"choircal/internal/ics"
	"choircal/internal/schedule"
)

var onceFlags struct {
	small       bool
	periods     []string
	keyword     string
	performance bool
	sortDate    bool
	ics         bool
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Fetch the schedule once and print the board as JSON",
	RunE:  runOnce,
}

func init() {
	f := onceCmd.Flags()
	f.BoolVar(&onceFlags.small, "small", false, "include small-ensemble rows")
	f.StringSliceVar(&onceFlags.periods, "period", nil, "only these periods (repeatable)")
	f.StringVarP(&onceFlags.keyword, "query", "q", "", "keyword search over every field")
	f.BoolVar(&onceFlags.performance, "performance", false, "only performances")
	f.BoolVar(&onceFlags.sortDate, "sort-date", false, "order by event date")
	f.BoolVar(&onceFlags.ics, "ics", false, "print an iCalendar feed instead of JSON")
	rootCmd.AddCommand(onceCmd)
}

func runOnce(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	now := time.Now()
	built, err := board.FromConfig(cfg, nil, now)
	if err != nil {
		return err
	}
	svc := built.Service

	sel := schedule.Selection{
		ShowSmall:       onceFlags.small,
		Periods:         onceFlags.periods,
		Keyword:         onceFlags.keyword,
		PerformanceOnly: onceFlags.performance,
		SortByDate:      onceFlags.sortDate,
	}

	if onceFlags.ics {
		ds, err := svc.Dataset(cmd.Context())
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), ics.Export(schedule.Apply(ds.Records, sel.Predicates()...), ics.ExportConfig{
			SourceID: cfg.Source.ID,
			Name:     "choircal " + cfg.Source.ID,
			Location: cfg.Location(),
			Now:      now,
		}))
		return err
	}

	b := svc.Board(cmd.Context(), sel, now)
	if b.Unavailable {
		fmt.Fprintln(cmd.ErrOrStderr(), b.Warning)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}
