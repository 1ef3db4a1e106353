package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"choircal/internal/board"
	appLog "choircal/internal/log"
	"choircal/internal/metrics"
	"choircal/internal/refresh"
	"choircal/internal/schedule"
	"choircal/internal/web"
)

var listenFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the board, API and calendar feed",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenFlag, "listen", "", "HTTP listen address (overrides config if set)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if listenFlag != "" {
		cfg.Listen = listenFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec, err := metrics.NewRecorder(reg)
	if err != nil {
		return err
	}

	built, err := board.FromConfig(cfg, rec, time.Now())
	if err != nil {
		return err
	}
	svc := built.Service

	appLog.Info("choircal starting",
		"version", version,
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"season", svc.Engine().Season().StartYear(),
		"source", cfg.Source.ID,
		"refresh", cfg.RefreshCron,
	)

	if cfg.RefreshCron != "" {
		r, err := refresh.New(cfg.RefreshCron, cfg.Location(), cfg.FetchTimeout(), warmJob(svc))
		if err != nil {
			return err
		}
		if err := r.RunOnce(ctx); err != nil {
			appLog.Warn("initial refresh failed", "err", err)
		}
		r.Start()
		defer r.Stop()
	}

	if built.File != nil {
		go func() {
			err := built.File.Watch(ctx, 500*time.Millisecond, func() {
				if _, err := svc.Refresh(ctx); err != nil {
					appLog.Warn("reload after file change failed", "err", err)
				}
			})
			if err != nil {
				appLog.Error("sheet file watch stopped", err)
			}
		}()
	}

	srv := web.NewServer(cfg, svc, web.WithGatherer(reg))
	err = srv.ListenAndServe(ctx)
	appLog.Info("choircal exiting")
	return err
}

// warmJob refetches the export and logs what the default viewer would be
// reminded of.
func warmJob(svc *board.Service) refresh.Job {
	return func(ctx context.Context) error {
		ds, err := svc.Refresh(ctx)
		if err != nil {
			return err
		}
		rem := schedule.SelectReminders(ds.Records, false, time.Now(), svc.Engine().Season())
		kv := []any{"records", len(ds.Records), "event_state", string(rem.Event.State)}
		if rem.Event.Next != nil {
			kv = append(kv, "next", rem.Event.Next.DateRaw, "days_until", rem.Event.DaysUntil)
		}
		if rem.Performance != nil {
			kv = append(kv, "performance", rem.Performance.Record.Content, "performance_in_days", rem.Performance.DaysUntil)
		}
		appLog.Info("schedule refreshed", kv...)
		return nil
	}
}
