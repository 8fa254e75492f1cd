package update

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sieve/internal/filters/models"
	"sieve/internal/filters/ports"
	"sieve/internal/filters/service/decide"
	"sieve/internal/filters/store/subscription"
	"sieve/internal/filters/store/version"
	dErrors "sieve/pkg/domain-errors"
	"sieve/pkg/platform/sentinel"
)

type stubExecutor struct {
	mu            sync.Mutex
	fail          map[models.FilterID]error
	applied       []models.FilterID
	lastOptimized bool

	entered chan struct{} // receives when Apply starts, when non-nil
	release chan struct{} // Apply waits on it, when non-nil
}

func (e *stubExecutor) Apply(_ context.Context, task models.FilterUpdateTask, optimized bool) (*models.FilterMetadata, error) {
	if e.entered != nil {
		e.entered <- struct{}{}
	}
	if e.release != nil {
		<-e.release
	}

	e.mu.Lock()
	e.applied = append(e.applied, task.FilterID)
	e.lastOptimized = optimized
	e.mu.Unlock()

	if err := e.fail[task.FilterID]; err != nil {
		return nil, err
	}
	return &models.FilterMetadata{FilterID: task.FilterID, Version: "9.9", RuleCount: 3}, nil
}

type fakeCatalog struct {
	mu           sync.Mutex
	refreshCalls int
	refreshErr   error
}

func (c *fakeCatalog) Refresh(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshCalls++
	return c.refreshErr
}

func (c *fakeCatalog) DownloadURL(id models.FilterID, _ bool) (string, error) {
	return "https://cdn.example.org/lists/" + id.String() + ".txt", nil
}

type fakeSignal struct {
	mu    sync.Mutex
	calls [][]models.FilterID
}

func (f *fakeSignal) Signal(ids []models.FilterID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ids)
}

type OrchestratorSuite struct {
	suite.Suite
	ctx         context.Context
	now         time.Time
	versions    *version.InMemoryStore
	subs        *subscription.InMemoryStore
	executor    *stubExecutor
	catalog     *fakeCatalog
	signal      *fakeSignal
	settings    models.UpdateSettings
	settingsErr error
	orch        *Orchestrator
}

func (s *OrchestratorSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.versions = version.NewInMemoryStore()
	s.subs = subscription.NewInMemoryStore()
	s.executor = &stubExecutor{fail: map[models.FilterID]error{}}
	s.catalog = &fakeCatalog{}
	s.signal = &fakeSignal{}
	s.settings = models.UpdateSettings{UpdatePeriod: models.UpdatePeriodListExpiry}
	s.settingsErr = nil

	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := func() time.Time { return s.now }

	engine, err := decide.New(s.versions, decide.WithClock(clock), decide.WithLogger(discard))
	s.Require().NoError(err)

	orch, err := New(engine, s.executor, s.versions, s.subs,
		ports.SettingsFunc(func(context.Context) (models.UpdateSettings, error) {
			return s.settings, s.settingsErr
		}),
		s.catalog, s.signal,
		WithLogger(discard),
		WithClock(clock),
		WithConcurrency(4))
	s.Require().NoError(err)
	s.orch = orch
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) seed(id models.FilterID, checkedAgo time.Duration) {
	s.Require().NoError(s.versions.Set(s.ctx, models.FilterVersionRecord{
		FilterID:       id,
		Version:        "1.0",
		Expires:        4 * 86400,
		LastUpdateTime: s.now.Add(-checkedAgo),
		LastCheckTime:  s.now.Add(-checkedAgo),
	}))
}

func (s *OrchestratorSuite) enable(id models.FilterID) {
	s.Require().NoError(s.subs.Upsert(s.ctx, models.Subscription{
		FilterID: id,
		URL:      "https://filters.example.net/" + id.String() + ".txt",
		Enabled:  true,
	}))
}

func metaIDs(metas []models.FilterMetadata) []models.FilterID {
	ids := make([]models.FilterID, 0, len(metas))
	for _, m := range metas {
		ids = append(ids, m.FilterID)
	}
	return ids
}

// =============================================================================
// Partial Failure Tests
// =============================================================================

func (s *OrchestratorSuite) TestRunPartialFailure() {
	s.Run("middle task failure leaves siblings intact", func() {
		s.seed(1, 48*time.Hour)
		s.seed(2, 48*time.Hour)
		s.seed(3, 48*time.Hour)
		s.executor.fail[2] = dErrors.New(dErrors.CodePatchFailed, "hunk mismatch")

		metas, err := s.orch.Run(s.ctx, []models.FilterUpdateTask{
			{FilterID: 1}, {FilterID: 2}, {FilterID: 3},
		})
		s.Require().NoError(err)
		s.Equal([]models.FilterID{1, 3}, metaIDs(metas))

		// The failed filter's record is not committed: version and update
		// instant are untouched. Its check instant still advances because the
		// attempt reached the remote.
		record, err := s.versions.Get(s.ctx, 2)
		s.Require().NoError(err)
		s.Equal("1.0", record.Version)
		s.Equal(s.now.Add(-48*time.Hour), record.LastUpdateTime)
		s.Equal(s.now, record.LastCheckTime)
	})

	s.Run("all failures yield an empty result and no signal", func() {
		s.signal.calls = nil
		s.executor.fail[5] = dErrors.New(dErrors.CodeMetadataUnavailable, "gone")

		metas, err := s.orch.Run(s.ctx, []models.FilterUpdateTask{{FilterID: 5}})
		s.Require().NoError(err)
		s.Empty(metas)
		s.Empty(s.signal.calls)
	})
}

// =============================================================================
// Cycle Gate Tests
// =============================================================================

func (s *OrchestratorSuite) TestCycleGate() {
	s.Run("second cycle is rejected while one is in flight", func() {
		s.executor.entered = make(chan struct{}, 1)
		s.executor.release = make(chan struct{})

		done := make(chan []models.FilterMetadata, 1)
		go func() {
			metas, err := s.orch.Run(s.ctx, []models.FilterUpdateTask{{FilterID: 2}})
			s.NoError(err)
			done <- metas
		}()

		// The first cycle is now inside a task and holds the gate.
		<-s.executor.entered

		_, err := s.orch.Run(s.ctx, []models.FilterUpdateTask{{FilterID: 3}})
		s.ErrorIs(err, ErrCycleInFlight)

		close(s.executor.release)
		metas := <-done
		s.Len(metas, 1)

		s.executor.entered = nil
		s.executor.release = nil
	})

	s.Run("the gate reopens after a cycle completes", func() {
		_, err := s.orch.Run(s.ctx, []models.FilterUpdateTask{{FilterID: 2}})
		s.Require().NoError(err)

		_, err = s.orch.Run(s.ctx, []models.FilterUpdateTask{{FilterID: 3}})
		s.Require().NoError(err)
	})
}

// =============================================================================
// Catalog Refresh Tests
// =============================================================================

func (s *OrchestratorSuite) TestCatalogRefresh() {
	s.Run("forced catalog task refreshes the index once", func() {
		_, err := s.orch.Run(s.ctx, []models.FilterUpdateTask{
			{FilterID: 2, Force: true}, {FilterID: 3, Force: true}, {FilterID: 1001, Force: true},
		})
		s.Require().NoError(err)
		s.Equal(1, s.catalog.refreshCalls)
	})

	s.Run("patch-only tasks skip the index refresh", func() {
		before := s.catalog.refreshCalls
		_, err := s.orch.Run(s.ctx, []models.FilterUpdateTask{{FilterID: 2}})
		s.Require().NoError(err)
		s.Equal(before, s.catalog.refreshCalls)
	})

	s.Run("forced custom-only tasks skip the index refresh", func() {
		before := s.catalog.refreshCalls
		_, err := s.orch.Run(s.ctx, []models.FilterUpdateTask{{FilterID: 1001, Force: true}})
		s.Require().NoError(err)
		s.Equal(before, s.catalog.refreshCalls)
	})

	s.Run("index refresh failure does not abort the cycle", func() {
		s.catalog.refreshErr = errors.New("cdn unreachable")

		metas, err := s.orch.Run(s.ctx, []models.FilterUpdateTask{{FilterID: 2, Force: true}})
		s.Require().NoError(err)
		s.Len(metas, 1)
		s.catalog.refreshErr = nil
	})
}

// =============================================================================
// Downstream Signal Tests
// =============================================================================

func (s *OrchestratorSuite) TestSignal() {
	s.Run("successful cycle signals the updated ids once", func() {
		_, err := s.orch.Run(s.ctx, []models.FilterUpdateTask{
			{FilterID: 1}, {FilterID: 3},
		})
		s.Require().NoError(err)

		s.Require().Len(s.signal.calls, 1)
		s.Equal([]models.FilterID{1, 3}, s.signal.calls[0])
	})

	s.Run("settings snapshot failure degrades instead of aborting", func() {
		s.settingsErr = errors.New("settings backend down")

		metas, err := s.orch.Run(s.ctx, []models.FilterUpdateTask{{FilterID: 2}})
		s.Require().NoError(err)
		s.Len(metas, 1)
		s.settingsErr = nil
	})

	s.Run("optimized flag reaches the executor", func() {
		s.settings.Optimized = true

		_, err := s.orch.Run(s.ctx, []models.FilterUpdateTask{{FilterID: 2}})
		s.Require().NoError(err)
		s.True(s.executor.lastOptimized)
		s.settings.Optimized = false
	})
}

// =============================================================================
// Periodic Entry Point Tests
// =============================================================================

func (s *OrchestratorSuite) TestUpdateEnabled() {
	s.Run("selects only due filters among the enabled set", func() {
		s.enable(2)
		s.enable(7)
		s.seed(2, 5*24*time.Hour) // past the 4 day ttl
		s.seed(7, time.Hour)      // fresh, no patch feed

		metas, err := s.orch.UpdateEnabled(s.ctx, false)
		s.Require().NoError(err)
		s.Equal([]models.FilterID{2}, metaIDs(metas))
		s.Equal([]models.FilterID{2}, s.executor.applied)
	})

	s.Run("force updates every enabled filter", func() {
		s.enable(2)
		s.enable(7)

		metas, err := s.orch.UpdateEnabled(s.ctx, true)
		s.Require().NoError(err)
		s.Equal([]models.FilterID{2, 7}, metaIDs(metas))
	})

	s.Run("no due filters runs no cycle at all", func() {
		s.enable(7)
		s.seed(7, time.Hour)
		s.executor.applied = nil
		s.signal.calls = nil

		metas, err := s.orch.UpdateEnabled(s.ctx, false)
		s.Require().NoError(err)
		s.Empty(metas)
		s.Empty(s.executor.applied)
		s.Empty(s.signal.calls)
	})

	s.Run("settings failure surfaces on the periodic path", func() {
		s.enable(2)
		s.settingsErr = errors.New("settings backend down")

		_, err := s.orch.UpdateEnabled(s.ctx, false)
		s.True(dErrors.Is(err, dErrors.CodeInternal))
		s.settingsErr = nil
	})
}

// =============================================================================
// Manual Check Entry Point Tests
// =============================================================================

func (s *OrchestratorSuite) TestCheckForUpdates() {
	s.Run("recency throttle applies and every candidate is stamped", func() {
		s.seed(2, 4*time.Minute)
		s.seed(3, 10*time.Minute)
		s.seed(1001, time.Minute)

		metas, err := s.orch.CheckForUpdates(s.ctx, []models.FilterID{2, 3, 1001})
		s.Require().NoError(err)
		s.Equal([]models.FilterID{3, 1001}, metaIDs(metas))

		// The throttled filter was not updated but its check instant moved,
		// so the next tick will not immediately re-trigger it.
		record, err := s.versions.Get(s.ctx, 2)
		s.Require().NoError(err)
		s.Equal("1.0", record.Version)
		s.Equal(s.now, record.LastCheckTime)
	})

	s.Run("empty input checks the whole enabled set", func() {
		s.enable(1001)
		s.executor.applied = nil

		metas, err := s.orch.CheckForUpdates(s.ctx, nil)
		s.Require().NoError(err)
		s.Equal([]models.FilterID{1001}, metaIDs(metas))
	})
}

// =============================================================================
// Check Instant Tests
// =============================================================================

func (s *OrchestratorSuite) TestCheckStamp() {
	s.Run("run stamps every task's filter", func() {
		s.seed(1, time.Hour)
		s.seed(2, time.Hour)
		s.executor.fail[2] = errors.New("boom")

		_, err := s.orch.Run(s.ctx, []models.FilterUpdateTask{
			{FilterID: 1}, {FilterID: 2},
		})
		s.Require().NoError(err)

		for _, id := range []models.FilterID{1, 2} {
			record, err := s.versions.Get(s.ctx, id)
			s.Require().NoError(err)
			s.Equal(s.now, record.LastCheckTime, "filter %s", id)
		}
	})

	s.Run("unknown filters are skipped by the stamp", func() {
		_, err := s.orch.Run(s.ctx, []models.FilterUpdateTask{{FilterID: 42}})
		s.Require().NoError(err)

		_, err = s.versions.Get(s.ctx, 42)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}
