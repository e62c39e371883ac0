// Package sweeper removes expired conversions and their output files.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/wudi/scanpdf/observability"
	"github.com/wudi/scanpdf/store"
)

// Store is the subset of the conversion store the sweeper needs.
type Store interface {
	ListExpired(ctx context.Context, before time.Time) ([]store.Conversion, error)
	Delete(ctx context.Context, id string) error
}

type Sweeper struct {
	store     Store
	retention time.Duration
	interval  time.Duration
	logger    observability.Logger
	now       func() time.Time
}

type Option func(*Sweeper)

func WithLogger(l observability.Logger) Option {
	return func(s *Sweeper) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// New returns a sweeper that deletes conversions older than retention every
// interval.
func New(st Store, retention, interval time.Duration, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:     st,
		retention: retention,
		interval:  interval,
		logger:    observability.NopLogger{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOnce deletes every expired conversion and reports how many were removed.
// A conversion whose file cannot be removed is kept for the next pass.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.retention)
	expired, err := s.store.ListExpired(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list expired: %w", err)
	}

	removed := 0
	var errs []error
	for _, c := range expired {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if c.OutputPath != "" {
			if err := os.Remove(c.OutputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, fmt.Errorf("remove %s: %w", c.OutputPath, err))
				continue
			}
		}
		if err := s.store.Delete(ctx, c.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			errs = append(errs, fmt.Errorf("delete %s: %w", c.ID, err))
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
// Errors of a single pass are logged, never fatal.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("sweeper started",
		observability.Duration("retention", s.retention),
		observability.Duration("interval", s.interval),
	)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	start := time.Now()
	n, err := s.RunOnce(ctx)
	if err != nil && ctx.Err() == nil {
		s.logger.Error("sweep failed", observability.Int(observability.MetricSweptCount, n), observability.Error("error", err))
		return
	}
	if n > 0 {
		s.logger.Info("sweep finished",
			observability.Int(observability.MetricSweptCount, n),
			observability.Duration("took", time.Since(start)),
		)
	}
}
