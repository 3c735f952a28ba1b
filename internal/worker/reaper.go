// Package worker runs background maintenance over the job store.
package worker

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"
)

// StaleJobPauser is the part of the job service the reaper drives.
type StaleJobPauser interface {
	StaleJobs(ctx context.Context, cutoff time.Time) (map[string][]string, error)
	PauseStale(ctx context.Context, taskName string, ids []string, cutoff time.Time, maxSession time.Duration) (int, error)
}

// Reaper periodically pauses job timers left running by users who went
// away. Paused jobs stay assigned.
type Reaper struct {
	jobs        StaleJobPauser
	pool        *Pool
	idleTimeout time.Duration
	interval    time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

func NewReaper(jobs StaleJobPauser, idleTimeout, interval time.Duration, workers int, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reaper{
		jobs:        jobs,
		pool:        NewPool(workers, logger),
		idleTimeout: idleTimeout,
		interval:    interval,
		logger:      logger,
		now:         time.Now,
	}
}

// Run sweeps every interval until ctx is done. A zero idle timeout or
// interval disables the reaper.
func (r *Reaper) Run(ctx context.Context) error {
	if r.idleTimeout <= 0 || r.interval <= 0 {
		r.logger.Info("idle reaper disabled")
		<-ctx.Done()
		return nil
	}
	r.logger.Info("idle reaper started", "idle_timeout", r.idleTimeout, "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("idle reaper stopped")
			return nil
		case <-ticker.C:
			n, err := r.Sweep(ctx)
			if err != nil {
				r.logger.Warn("reap error", "error", err)
				continue
			}
			if n > 0 {
				r.logger.Info("paused idle jobs", "count", n)
			}
		}
	}
}

// Sweep runs one pass and returns how many jobs were paused.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.idleTimeout)
	stale, err := r.jobs.StaleJobs(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	tasks := make([]string, 0, len(stale))
	for name := range stale {
		tasks = append(tasks, name)
	}
	sort.Strings(tasks)

	var paused atomic.Int64
	r.pool.Run(ctx, tasks, func(ctx context.Context, task string) error {
		n, err := r.jobs.PauseStale(ctx, task, stale[task], cutoff, r.idleTimeout)
		paused.Add(int64(n))
		return err
	})
	return int(paused.Load()), ctx.Err()
}
