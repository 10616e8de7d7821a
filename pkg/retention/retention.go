// Package retention periodically prunes old, low-importance records from the
// long-term store.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/papercomputeco/tiermem/pkg/metrics"
)

const (
	// DefaultSchedule runs the compactor once a day.
	DefaultSchedule = "@daily"

	// DefaultMaxAge is how long unimportant records are kept.
	DefaultMaxAge = 90 * 24 * time.Hour

	// DefaultKeepImportance exempts records at or above this score.
	DefaultKeepImportance = 8

	runTimeout = 10 * time.Minute
)

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Pruner deletes long-term records older than cutoff with importance below
// keepImportance.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time, keepImportance int) (int, error)
}

// Config configures a Compactor.
type Config struct {
	Pruner Pruner

	// Schedule is a cron expression or descriptor such as "@daily".
	Schedule string

	MaxAge         time.Duration
	KeepImportance int

	// Now defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// Compactor runs the pruner on a cron schedule.
type Compactor struct {
	pruner   Pruner
	schedule cron.Schedule
	spec     string
	maxAge   time.Duration
	keep     int
	now      func() time.Time
	logger   *slog.Logger
	cron     *cron.Cron
}

// New validates c and builds a stopped Compactor.
func New(c Config) (*Compactor, error) {
	if c.Pruner == nil {
		return nil, errors.New("retention pruner is required")
	}

	spec := c.Schedule
	if spec == "" {
		spec = DefaultSchedule
	}
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", spec, err)
	}

	comp := &Compactor{
		pruner:   c.Pruner,
		schedule: schedule,
		spec:     spec,
		maxAge:   c.MaxAge,
		keep:     c.KeepImportance,
		now:      c.Now,
		logger:   c.Logger,
	}
	if comp.maxAge <= 0 {
		comp.maxAge = DefaultMaxAge
	}
	if comp.keep <= 0 {
		comp.keep = DefaultKeepImportance
	}
	if comp.now == nil {
		comp.now = time.Now
	}
	if comp.logger == nil {
		comp.logger = slog.New(slog.DiscardHandler)
	}
	comp.logger = comp.logger.With("component", "retention")

	return comp, nil
}

// Next returns the first scheduled run after t.
func (c *Compactor) Next(t time.Time) time.Time {
	return c.schedule.Next(t)
}

// RunOnce prunes records older than the configured age.
func (c *Compactor) RunOnce(ctx context.Context) (int, error) {
	cutoff := c.now().Add(-c.maxAge)
	n, err := c.pruner.Prune(ctx, cutoff, c.keep)
	metrics.RecordRetentionDeletes(n)
	if err != nil {
		return n, fmt.Errorf("pruning long-term store: %w", err)
	}
	return n, nil
}

// Start schedules RunOnce. Runs never overlap.
func (c *Compactor) Start() {
	c.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.cron.Schedule(c.schedule, cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		n, err := c.RunOnce(ctx)
		if err != nil {
			c.logger.Error("retention run failed", "deleted", n, "error", err)
			return
		}
		c.logger.Info("retention run finished", "deleted", n)
	}))
	c.cron.Start()
	c.logger.Info("retention scheduled", "schedule", c.spec, "max_age", c.maxAge, "keep_importance", c.keep)
}

// Stop halts scheduling and waits for a running prune to finish or ctx to end.
func (c *Compactor) Stop(ctx context.Context) {
	if c.cron == nil {
		return
	}
	select {
	case <-c.cron.Stop().Done():
	case <-ctx.Done():
	}
}
