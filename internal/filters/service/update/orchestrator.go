// Package update drives full update cycles: candidate selection, concurrent
// dispatch to the per-filter executor, result aggregation and the debounced
// downstream engine signal. Only successfully updated filters are returned;
// failures are logged and counted, never propagated across tasks.
package update

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"sieve/internal/filters/metrics"
	"sieve/internal/filters/models"
	"sieve/internal/filters/ports"
	"sieve/internal/filters/service/decide"
	dErrors "sieve/pkg/domain-errors"
)

var tracer = otel.Tracer("sieve.filters.update")

// ErrCycleInFlight rejects a cycle start while another cycle is running.
// The scheduler treats it as a skipped tick and retries on the next one.
var ErrCycleInFlight = errors.New("update cycle already in flight")

const defaultConcurrency = 8

// TaskExecutor applies one update task. Implemented by patch.Executor.
type TaskExecutor interface {
	Apply(ctx context.Context, task models.FilterUpdateTask, optimized bool) (*models.FilterMetadata, error)
}

// Orchestrator owns the update cycle. A single instance runs at most one
// cycle at a time; within a cycle tasks run concurrently with an all-settled
// join, so no task failure short-circuits its siblings.
type Orchestrator struct {
	engine    *decide.Engine
	executor  TaskExecutor
	versions  ports.VersionStore
	installed ports.InstalledFilters
	settings  ports.SettingsSource
	catalog   ports.Catalog
	signal    ports.UpdateSignal
	metrics   *metrics.Metrics
	logger    *slog.Logger
	clock     ports.Clock
	limit     int

	gate sync.Mutex
}

type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithClock injects a time source for tests.
func WithClock(clock ports.Clock) Option {
	return func(o *Orchestrator) {
		o.clock = clock
	}
}

// WithMetrics attaches domain metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithConcurrency bounds how many tasks run at once within a cycle.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.limit = n
		}
	}
}

func New(
	engine *decide.Engine,
	executor TaskExecutor,
	versions ports.VersionStore,
	installed ports.InstalledFilters,
	settings ports.SettingsSource,
	catalog ports.Catalog,
	signal ports.UpdateSignal,
	opts ...Option,
) (*Orchestrator, error) {
	if engine == nil {
		return nil, errors.New("decision engine is required")
	}
	if executor == nil {
		return nil, errors.New("task executor is required")
	}
	if versions == nil {
		return nil, errors.New("version store is required")
	}
	if installed == nil {
		return nil, errors.New("installed filters source is required")
	}
	if settings == nil {
		return nil, errors.New("settings source is required")
	}
	if catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if signal == nil {
		return nil, errors.New("update signal is required")
	}

	o := &Orchestrator{
		engine:    engine,
		executor:  executor,
		versions:  versions,
		installed: installed,
		settings:  settings,
		catalog:   catalog,
		signal:    signal,
		logger:    slog.Default(),
		clock:     time.Now,
		limit:     defaultConcurrency,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run executes one cycle over the given tasks and returns the metadata of
// the filters that updated successfully.
func (o *Orchestrator) Run(ctx context.Context, tasks []models.FilterUpdateTask) ([]models.FilterMetadata, error) {
	return o.cycle(ctx, tasks, taskIDs(tasks))
}

// UpdateEnabled runs the periodic entry point: select candidates among all
// installed-and-enabled filters under the current settings, then cycle over
// them. force bypasses staleness policy entirely.
func (o *Orchestrator) UpdateEnabled(ctx context.Context, force bool) ([]models.FilterMetadata, error) {
	ids, err := o.installed.EnabledFilterIDs(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "list installed filters")
	}

	settings, err := o.settings.UpdateSettings(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read update settings")
	}

	tasks, err := o.engine.SelectCandidates(ctx, ids, force, settings)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		o.logger.DebugContext(ctx, "no filters due for update")
		return nil, nil
	}
	return o.cycle(ctx, tasks, taskIDs(tasks))
}

// CheckForUpdates runs the manual entry point over the given filters, or all
// installed-and-enabled ones when ids is empty. Selection applies the recency
// throttle; every candidate gets its LastCheckTime refreshed afterwards,
// including ones the throttle skipped, so the next tick does not re-trigger
// them.
func (o *Orchestrator) CheckForUpdates(ctx context.Context, ids []models.FilterID) ([]models.FilterMetadata, error) {
	if len(ids) == 0 {
		var err error
		ids, err = o.installed.EnabledFilterIDs(ctx)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "list installed filters")
		}
	}

	tasks, err := o.engine.SelectForCheck(ctx, ids)
	if err != nil {
		return nil, err
	}
	return o.cycle(ctx, tasks, ids)
}

type taskResult struct {
	meta *models.FilterMetadata
	err  error
}

// cycle is the single gated execution path. checkedIDs is the full candidate
// set whose LastCheckTime is refreshed after the tasks settle; it may exceed
// the task list when selection skipped some candidates.
func (o *Orchestrator) cycle(ctx context.Context, tasks []models.FilterUpdateTask, checkedIDs []models.FilterID) ([]models.FilterMetadata, error) {
	if !o.gate.TryLock() {
		return nil, ErrCycleInFlight
	}
	defer o.gate.Unlock()

	start := time.Now()
	cycleID := uuid.NewString()
	logger := o.logger.With("cycle_id", cycleID)

	ctx, span := tracer.Start(ctx, "filters.update_cycle",
		trace.WithAttributes(
			attribute.String("cycle_id", cycleID),
			attribute.Int("task_count", len(tasks)),
		))
	defer span.End()

	settings := o.cycleSettings(ctx, logger)

	if needsCatalog(tasks) {
		o.metrics.IncrementCatalogRefreshes()
		if err := o.catalog.Refresh(ctx); err != nil {
			// Stale catalog data keeps serving; affected filters fail
			// individually below.
			logger.WarnContext(ctx, "catalog refresh failed", "error", err)
		}
	}

	results := make([]taskResult, len(tasks))
	var g errgroup.Group
	g.SetLimit(o.limit)
	for i, task := range tasks {
		g.Go(func() error {
			results[i] = o.runTask(ctx, task, settings.Optimized)
			return nil
		})
	}
	// Task closures never return errors; every slot settles before Wait
	// returns.
	_ = g.Wait()

	succeeded := make([]models.FilterMetadata, 0, len(tasks))
	failed := 0
	for i, res := range results {
		if res.err != nil {
			failed++
			logger.ErrorContext(ctx, "filter update failed",
				"filter_id", tasks[i].FilterID.String(),
				"error", res.err,
			)
			continue
		}
		succeeded = append(succeeded, *res.meta)
	}

	if len(checkedIDs) > 0 {
		if err := o.versions.RefreshLastCheckTime(ctx, checkedIDs, o.clock()); err != nil {
			logger.WarnContext(ctx, "refreshing last check time failed", "error", err)
		}
	}

	if len(succeeded) > 0 {
		o.signal.Signal(updatedIDs(succeeded))
	}

	o.metrics.ObserveCycle(start)
	span.SetAttributes(
		attribute.Int("succeeded", len(succeeded)),
		attribute.Int("failed", failed),
	)
	span.SetStatus(codes.Ok, "")

	logger.InfoContext(ctx, "update cycle finished",
		"tasks", len(tasks),
		"succeeded", len(succeeded),
		"failed", failed,
		"duration", time.Since(start),
	)
	return succeeded, nil
}

func (o *Orchestrator) runTask(ctx context.Context, task models.FilterUpdateTask, optimized bool) taskResult {
	ctx, span := tracer.Start(ctx, "filters.update_task",
		trace.WithAttributes(
			attribute.String("filter_id", task.FilterID.String()),
			attribute.Bool("force", task.Force),
		))
	defer span.End()

	meta, err := o.executor.Apply(ctx, task, optimized)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		o.metrics.RecordTaskFailure(task.FilterID.String())
		return taskResult{err: err}
	}

	span.SetStatus(codes.Ok, "")
	o.metrics.RecordTaskSuccess(task.FilterID.String(), meta.RuleCount)
	return taskResult{meta: meta}
}

// cycleSettings snapshots settings once per cycle. On failure the zero value
// keeps the cycle usable with full (non-optimized) lists.
func (o *Orchestrator) cycleSettings(ctx context.Context, logger *slog.Logger) models.UpdateSettings {
	settings, err := o.settings.UpdateSettings(ctx)
	if err != nil {
		logger.WarnContext(ctx, "reading update settings failed, using defaults", "error", err)
		return models.UpdateSettings{}
	}
	return settings
}

// needsCatalog reports whether any task forces a full refresh of a catalog
// filter; index metadata is fetched collectively once per cycle, not per
// filter.
func needsCatalog(tasks []models.FilterUpdateTask) bool {
	for _, t := range tasks {
		if t.Force && !t.FilterID.IsCustom() {
			return true
		}
	}
	return false
}

func taskIDs(tasks []models.FilterUpdateTask) []models.FilterID {
	ids := make([]models.FilterID, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.FilterID)
	}
	return ids
}

func updatedIDs(metas []models.FilterMetadata) []models.FilterID {
	ids := make([]models.FilterID, 0, len(metas))
	for _, m := range metas {
		ids = append(ids, m.FilterID)
	}
	return ids
}
