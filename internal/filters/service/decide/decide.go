// Package decide classifies installed filters into per-cycle update tasks.
//
// Two independent selections exist. SelectCandidates implements the staleness
// policy that drives the periodic cycle: forced runs take everything, patch
// capable lists take the patch path, expired lists take a full refresh.
// SelectForCheck implements the recency throttle for manually triggered
// checks: custom filters are always rechecked, catalog filters only when
// their last check is older than the recency window.
package decide

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"sieve/internal/filters/models"
	"sieve/internal/filters/ports"
	dErrors "sieve/pkg/domain-errors"
)

// defaultRecencyWindow throttles manual rechecks of catalog filters.
const defaultRecencyWindow = 5 * time.Minute

// Engine evaluates update policy against the version store. It never writes;
// all staleness decisions are pure reads over the record set.
type Engine struct {
	versions ports.VersionStore
	clock    ports.Clock
	recency  time.Duration
	logger   *slog.Logger
}

type Option func(*Engine)

// WithClock injects a time source for tests.
func WithClock(clock ports.Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRecencyWindow overrides the manual-check throttle window.
func WithRecencyWindow(window time.Duration) Option {
	return func(e *Engine) {
		if window > 0 {
			e.recency = window
		}
	}
}

func New(versions ports.VersionStore, opts ...Option) (*Engine, error) {
	if versions == nil {
		return nil, errors.New("version store is required")
	}

	e := &Engine{
		versions: versions,
		clock:    time.Now,
		recency:  defaultRecencyWindow,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// SelectCandidates turns the installed-and-enabled filter set into the task
// list for one update cycle.
//
// When force is set every candidate becomes a full-refresh task and settings
// are not consulted. Otherwise disabled filtering or a disabled update period
// short-circuits to an empty list. For the remaining case each filter is
// evaluated independently: a missing version record or an expired one yields
// a forced task, a fresh record with a patch feed yields a patch task, and a
// fresh record without one is skipped. Expiry wins over the patch path.
func (e *Engine) SelectCandidates(ctx context.Context, ids []models.FilterID, force bool, settings models.UpdateSettings) ([]models.FilterUpdateTask, error) {
	if force {
		tasks := make([]models.FilterUpdateTask, 0, len(ids))
		for _, id := range ids {
			tasks = append(tasks, models.FilterUpdateTask{FilterID: id, Force: true})
		}
		return tasks, nil
	}

	if settings.FilteringDisabled || settings.UpdatePeriod.Disabled() {
		e.logger.DebugContext(ctx, "updates disabled, nothing selected",
			"filtering_disabled", settings.FilteringDisabled,
		)
		return nil, nil
	}

	records, err := e.versions.GetAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "load version records")
	}

	now := e.clock()
	tasks := make([]models.FilterUpdateTask, 0, len(ids))
	for _, id := range ids {
		record, ok := records[id]
		switch {
		case !ok:
			// Never checked before, treat as expired.
			tasks = append(tasks, models.FilterUpdateTask{FilterID: id, Force: true})
		case expired(record, settings.UpdatePeriod, now):
			tasks = append(tasks, models.FilterUpdateTask{FilterID: id, Force: true})
		case record.SupportsPatching():
			tasks = append(tasks, models.FilterUpdateTask{FilterID: id, Force: false})
		}
	}

	e.logger.DebugContext(ctx, "candidates selected",
		"installed", len(ids),
		"selected", len(tasks),
	)
	return tasks, nil
}

// SelectForCheck picks the subset of ids worth a manual recheck. Custom
// filters always qualify; catalog filters qualify when unchecked or last
// checked longer than the recency window ago. Selected filters come back as
// full-refresh tasks.
func (e *Engine) SelectForCheck(ctx context.Context, ids []models.FilterID) ([]models.FilterUpdateTask, error) {
	records, err := e.versions.GetAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "load version records")
	}

	now := e.clock()
	tasks := make([]models.FilterUpdateTask, 0, len(ids))
	for _, id := range ids {
		if !id.IsCustom() {
			if record, ok := records[id]; ok && now.Sub(record.LastCheckTime) <= e.recency {
				e.logger.DebugContext(ctx, "filter checked recently, skipping",
					"filter_id", id.String(),
				)
				continue
			}
		}
		tasks = append(tasks, models.FilterUpdateTask{FilterID: id, Force: true})
	}
	return tasks, nil
}

func expired(record models.FilterVersionRecord, period models.UpdatePeriod, now time.Time) bool {
	if period.UseListExpiry() {
		return record.ExpiredAt(now)
	}
	return !record.LastCheckTime.Add(period.Interval()).After(now)
}
