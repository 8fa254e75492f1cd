// Package notify turns update-cycle signals into engine rebuild
// notifications. Signals arriving close together coalesce into a single
// notification carrying the union of the updated filters, so a burst of
// list updates triggers one engine rebuild instead of one per filter.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"sieve/internal/filters/metrics"
	"sieve/internal/filters/models"
)

// Notifier delivers one coalesced engine update notification.
type Notifier interface {
	NotifyEngineUpdate(ctx context.Context, ids []models.FilterID) error
}

// LogNotifier writes notifications to the log. It is the default sink for
// deployments without a broker.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyEngineUpdate(ctx context.Context, ids []models.FilterID) error {
	n.logger.InfoContext(ctx, "engine update", "filter_ids", ids)
	return nil
}

// Debouncer accumulates update signals and flushes them to a Notifier after
// a quiet period. It implements ports.UpdateSignal.
type Debouncer struct {
	notifier Notifier
	window   time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger

	signals chan []models.FilterID
}

// Option configures optional Debouncer behavior.
type Option func(*Debouncer)

// WithLogger sets the logger for flush outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Debouncer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics enables notification counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Debouncer) {
		d.metrics = m
	}
}

// New constructs a Debouncer flushing after window of quiet.
func New(notifier Notifier, window time.Duration, opts ...Option) (*Debouncer, error) {
	if notifier == nil {
		return nil, errors.New("notifier is required")
	}
	if window <= 0 {
		return nil, fmt.Errorf("debounce window must be positive, got %s", window)
	}

	d := &Debouncer{
		notifier: notifier,
		window:   window,
		logger:   slog.Default(),
		signals:  make(chan []models.FilterID, 16),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Signal reports that the given filters have fresh content. It never blocks:
// a signal that cannot be queued is dropped with an error log, since a
// missed rebuild heals on the next cycle.
func (d *Debouncer) Signal(ids []models.FilterID) {
	if len(ids) == 0 {
		return
	}
	select {
	case d.signals <- ids:
	default:
		d.logger.Error("dropping engine update signal, debouncer is not draining", "filter_ids", ids)
	}
}

// Run blocks, coalescing signals until ctx is cancelled. Pending filters are
// flushed once more on shutdown, best effort.
func (d *Debouncer) Run(ctx context.Context) error {
	pending := make(map[models.FilterID]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func(ctx context.Context) {
		if len(pending) > 0 {
			d.flush(ctx, pending)
			pending = make(map[models.FilterID]struct{})
		}
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			flush(flushCtx)
			cancel()
			return ctx.Err()

		case ids := <-d.signals:
			for _, id := range ids {
				pending[id] = struct{}{}
			}
			if timer == nil {
				timer = time.NewTimer(d.window)
				timerC = timer.C
			} else {
				timer.Reset(d.window)
			}

		case <-timerC:
			flush(ctx)
		}
	}
}

func (d *Debouncer) flush(ctx context.Context, pending map[models.FilterID]struct{}) {
	ids := make([]models.FilterID, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	if err := d.notifier.NotifyEngineUpdate(ctx, ids); err != nil {
		d.logger.ErrorContext(ctx, "engine update notification failed", "error", err, "filter_ids", ids)
		return
	}
	d.metrics.IncrementEngineNotifications()
	d.logger.DebugContext(ctx, "engine update notified", "filter_ids", ids)
}
