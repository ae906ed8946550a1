// Package reaper clears batch-progress entries that callers stopped
// polling.
package reaper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/probeworks/apiprobe/internal/observability/metrics"
	"github.com/probeworks/apiprobe/internal/observability/statsd"
)

const (
	defaultInterval = 10 * time.Minute
	defaultTTL      = time.Hour
)

// Registry is the progress store being swept.
type Registry interface {
	Sweep(ttl time.Duration) int
	Len() int
}

// Options holds the dependencies for creating a Runner.
type Options struct {
	Registry Registry
	// Interval between sweeps; defaults to 10 minutes.
	Interval time.Duration
	// TTL is how long an entry survives after its last update; defaults
	// to one hour.
	TTL     time.Duration
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// Runner sweeps the batch progress registry on a fixed interval. A
// running batch keeps touching its entry, so only abandoned tasks age
// past the TTL.
type Runner struct {
	registry Registry
	interval time.Duration
	ttl      time.Duration
	logger   *slog.Logger
	metrics  statsd.Sink
}

// NewRunner creates a sweeper with the given options.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Registry == nil {
		return nil, errors.New("progress registry is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{
		registry: opts.Registry,
		interval: opts.Interval,
		ttl:      opts.TTL,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}, nil
}

// Run sweeps until the context is cancelled. Returns nil on graceful
// shutdown.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting progress reaper",
		slog.Duration("interval", r.interval),
		slog.Duration("ttl", r.ttl))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "progress reaper stopping", slog.Any("reason", ctx.Err()))
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Runner) sweep(ctx context.Context) {
	removed := r.registry.Sweep(r.ttl)
	metrics.EmitSweep(r.metrics, metrics.SweepMetric{Removed: removed})
	if removed > 0 {
		r.logger.InfoContext(ctx, "swept stale batch tasks",
			slog.Int("removed", removed),
			slog.Int("remaining", r.registry.Len()))
	}
}
