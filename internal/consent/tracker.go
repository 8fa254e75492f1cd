package consent

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"sieve/internal/filters/models"
	dErrors "sieve/pkg/domain-errors"
)

// Tracker owns the in-process consent set. The set is materialized from
// storage once, on first access, and every mutation is flushed back
// synchronously, so the in-memory copy and the durable copy never diverge
// for longer than one write.
type Tracker struct {
	store  Store
	logger *slog.Logger

	mu           sync.Mutex
	materialized bool
	set          map[models.FilterID]struct{}
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTracker creates a Tracker over the given store.
func NewTracker(store Store, opts ...TrackerOption) (*Tracker, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}

	t := &Tracker{
		store:  store,
		logger: slog.Default(),
		set:    make(map[models.FilterID]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// AddFilterIDs unions the given identifiers into the consent set. Existing
// members are unaffected; when nothing new was added the store is not
// touched. The full resulting set is written through on change.
func (t *Tracker) AddFilterIDs(ctx context.Context, ids []models.FilterID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.materialize(ctx)

	added := false
	for _, id := range ids {
		if _, exists := t.set[id]; !exists {
			t.set[id] = struct{}{}
			added = true
		}
	}
	if !added {
		return nil
	}

	if err := t.store.Save(ctx, t.sortedIDs()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "persist consent set")
	}
	return nil
}

// IsConsented reports whether the filter has been approved. Triggers
// materialization on first access.
func (t *Tracker) IsConsented(ctx context.Context, id models.FilterID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.materialize(ctx)

	_, exists := t.set[id]
	return exists
}

// ConsentedFilterIDs returns the current consent set, sorted.
func (t *Tracker) ConsentedFilterIDs(ctx context.Context) []models.FilterID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.materialize(ctx)

	return t.sortedIDs()
}

// Reset clears both the persisted set and the materialized in-memory copy.
func (t *Tracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.store.Clear(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "clear consent set")
	}
	t.set = make(map[models.FilterID]struct{})
	t.materialized = true
	return nil
}

// materialize populates the set from storage exactly once. Unreadable or
// malformed storage degrades to an empty set, which is persisted back to
// repair the stored state. Callers must hold t.mu.
func (t *Tracker) materialize(ctx context.Context) {
	if t.materialized {
		return
	}

	ids, err := t.store.Load(ctx)
	if err != nil {
		t.logger.WarnContext(ctx, "consent state unreadable, resetting to empty", "error", err)
		t.set = make(map[models.FilterID]struct{})
		t.materialized = true
		if err := t.store.Save(ctx, nil); err != nil {
			t.logger.ErrorContext(ctx, "failed to repair consent state", "error", err)
		}
		return
	}

	t.set = make(map[models.FilterID]struct{}, len(ids))
	for _, id := range ids {
		t.set[id] = struct{}{}
	}
	t.materialized = true
}

func (t *Tracker) sortedIDs() []models.FilterID {
	ids := make([]models.FilterID, 0, len(t.set))
	for id := range t.set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
