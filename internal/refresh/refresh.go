// Package refresh keeps the schedule cache warm on a cron schedule.
package refresh

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "choircal/internal/log"
)

// Job is run on every tick.
type Job func(ctx context.Context) error

// Refresher runs a Job on a cron schedule. Ticks never overlap: a tick that
// fires while the previous one is still running is skipped.
type Refresher struct {
	spec    string
	job     Job
	timeout time.Duration

	mu     sync.Mutex
	c      *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// New validates spec (standard five-field cron or a descriptor such as
// "@every 5m") and returns a stopped Refresher. timeout bounds each run;
// zero means one minute.
func New(spec string, loc *time.Location, timeout time.Duration, job Job) (*Refresher, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("refresh: empty schedule")
	}
	if _, err := parser.Parse(spec); err != nil {
		return nil, fmt.Errorf("refresh: parse %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.Local
	}
	if timeout <= 0 {
		timeout = time.Minute
	}

	r := &Refresher{spec: spec, job: job, timeout: timeout}
	r.c = cron.New(
		cron.WithParser(parser),
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := r.c.AddFunc(spec, r.tick); err != nil {
		return nil, fmt.Errorf("refresh: add %q: %w", spec, err)
	}
	return r, nil
}

// Start begins ticking. It is a no-op if already started.
func (r *Refresher) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.c.Start()
	appLog.Info("refresher started", "schedule", r.spec)
}

// Stop halts ticking, cancels a running job and waits for it to return.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if r.cancel == nil {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	stopped := r.c.Stop()
	cancel()
	<-stopped.Done()
	appLog.Info("refresher stopped", "schedule", r.spec)
}

// RunOnce runs the job immediately, outside the schedule.
func (r *Refresher) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.job(ctx)
}

func (r *Refresher) tick() {
	r.mu.Lock()
	base := r.ctx
	r.mu.Unlock()
	if base == nil {
		return
	}

	start := time.Now()
	if err := r.RunOnce(base); err != nil {
		appLog.Warn("scheduled refresh failed", "schedule", r.spec, "err", err)
		return
	}
	appLog.Debug("scheduled refresh done", "duration_ms", time.Since(start).Milliseconds())
}
