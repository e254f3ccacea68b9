// Package cleanup deletes refresh tokens and one-time codes that expired
// longer ago than the retention window.
package cleanup

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Skotchmaster/auth_service/internal/metrics"
)

const (
	DefaultInterval  = time.Hour
	DefaultRetention = 30 * 24 * time.Hour
)

// Pruner deletes rows whose expiry is before the given instant.
type Pruner interface {
	PruneExpired(ctx context.Context, before time.Time) (int64, error)
}

type Job struct {
	targets   map[string]Pruner
	logger    *slog.Logger
	metrics   metrics.Recorder
	Retention time.Duration
	Interval  time.Duration
	Now       func() time.Time
}

// NewJob builds a job over named tables, e.g. {"refresh_tokens": ledger}.
func NewJob(targets map[string]Pruner, logger *slog.Logger, rec metrics.Recorder) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	if rec == nil {
		rec = metrics.Noop{}
	}
	return &Job{
		targets:   targets,
		logger:    logger,
		metrics:   rec,
		Retention: DefaultRetention,
		Interval:  DefaultInterval,
		Now:       time.Now,
	}
}

// RunOnce prunes every target. It is idempotent; a failing target does not
// stop the others.
func (j *Job) RunOnce(ctx context.Context) error {
	start := time.Now()
	cutoff := j.Now().Add(-j.Retention)

	var errs []error
	for table, p := range j.targets {
		n, err := p.PruneExpired(ctx, cutoff)
		if err != nil {
			j.logger.Error("cleanup_failed",
				slog.String("table", table),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
			continue
		}
		j.metrics.RecordPruned(table, n)
		j.logger.Info("cleanup_done",
			slog.String("table", table),
			slog.Int64("deleted_count", n),
			slog.Duration("retention", j.Retention),
		)
	}

	j.logger.Debug("cleanup_cycle", slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return errors.Join(errs...)
}

// Start runs the job immediately and then every Interval until ctx ends.
func (j *Job) Start(ctx context.Context) {
	interval := j.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	_ = j.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = j.RunOnce(ctx)
		}
	}
}
