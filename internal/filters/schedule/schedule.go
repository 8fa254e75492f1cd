// Package schedule drives periodic update cycles. The interval restarts only
// after a cycle finishes, so a slow cycle never causes ticks to stack up.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sieve/internal/filters/models"
	"sieve/internal/filters/service/update"
)

// Runner executes one update cycle over all enabled filters.
// Implemented by update.Orchestrator.
type Runner interface {
	UpdateEnabled(ctx context.Context, force bool) ([]models.FilterMetadata, error)
}

// Scheduler wakes up every period, or earlier on Kick, and runs one cycle.
type Scheduler struct {
	runner  Runner
	period  time.Duration
	onStart bool
	kick    chan struct{}
	logger  *slog.Logger
}

// Option configures optional Scheduler behavior.
type Option func(*Scheduler)

// WithLogger sets the logger for scheduler lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithOnStart makes Run execute a first cycle immediately instead of waiting
// a full period.
func WithOnStart(enabled bool) Option {
	return func(s *Scheduler) {
		s.onStart = enabled
	}
}

// New constructs a Scheduler that cycles every period.
func New(runner Runner, period time.Duration, opts ...Option) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("runner is required")
	}
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %s", period)
	}

	s := &Scheduler{
		runner: runner,
		period: period,
		kick:   make(chan struct{}, 1),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Kick requests a cycle outside the regular period. Kicks arriving while a
// cycle runs coalesce into a single follow-up cycle.
func (s *Scheduler) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Run blocks, cycling until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	first := s.period
	if s.onStart {
		first = 0
	}
	timer := time.NewTimer(first)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		case <-s.kick:
		}

		s.runCycle(ctx)
		timer.Reset(s.period)
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	updated, err := s.runner.UpdateEnabled(ctx, false)
	switch {
	case errors.Is(err, update.ErrCycleInFlight):
		s.logger.DebugContext(ctx, "skipping tick, a cycle is already in flight")
	case err != nil:
		s.logger.ErrorContext(ctx, "scheduled update cycle failed", "error", err)
	default:
		s.logger.DebugContext(ctx, "scheduled update cycle finished", "updated", len(updated))
	}
}
