package patch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sieve/internal/filters/models"
	"sieve/internal/filters/store/content"
	"sieve/internal/filters/store/subscription"
	"sieve/internal/filters/store/version"
	dErrors "sieve/pkg/domain-errors"
	"sieve/pkg/platform/sentinel"
)

const (
	baseListURL   = "https://cdn.example.org/lists/2.txt"
	basePatchURL  = "https://cdn.example.org/lists/patches/2.patch"
	customListURL = "https://filters.example.net/mine.txt"
)

type fakeFetcher struct {
	full       map[string][]string
	fullErr    error
	patches    map[string][]string
	patchErr   error
	fullCalls  []string
	patchCalls []string
}

func (f *fakeFetcher) DownloadFull(_ context.Context, url string) ([]string, error) {
	f.fullCalls = append(f.fullCalls, url)
	if f.fullErr != nil {
		return nil, f.fullErr
	}
	lines, ok := f.full[url]
	if !ok {
		return nil, fmt.Errorf("fetch %s: not found", url)
	}
	return lines, nil
}

func (f *fakeFetcher) ApplyPatch(_ context.Context, url string, _ []string) ([]string, bool, error) {
	f.patchCalls = append(f.patchCalls, url)
	if f.patchErr != nil {
		return nil, false, f.patchErr
	}
	lines, ok := f.patches[url]
	if !ok {
		return nil, false, nil
	}
	return lines, true, nil
}

type fakeCatalog struct {
	urls          map[models.FilterID]string
	lastOptimized bool
}

func (c *fakeCatalog) Refresh(_ context.Context) error { return nil }

func (c *fakeCatalog) DownloadURL(id models.FilterID, optimized bool) (string, error) {
	c.lastOptimized = optimized
	url, ok := c.urls[id]
	if !ok {
		return "", fmt.Errorf("catalog filter %s: %w", id, sentinel.ErrNotFound)
	}
	return url, nil
}

// fakeResolver drops directive lines so resolved output differs from raw.
type fakeResolver struct {
	err   error
	calls []string
}

func (r *fakeResolver) Resolve(_ context.Context, baseURL string, lines []string) ([]string, error) {
	r.calls = append(r.calls, baseURL)
	if r.err != nil {
		return nil, r.err
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if !strings.HasPrefix(line, "!#") {
			out = append(out, line)
		}
	}
	return out, nil
}

type ExecutorSuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	versions *version.InMemoryStore
	content  *content.InMemoryStore
	subs     *subscription.InMemoryStore
	catalog  *fakeCatalog
	fetcher  *fakeFetcher
	resolver *fakeResolver
	exec     *Executor
}

func (s *ExecutorSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.versions = version.NewInMemoryStore()
	s.content = content.NewInMemoryStore()
	s.subs = subscription.NewInMemoryStore()
	s.catalog = &fakeCatalog{urls: map[models.FilterID]string{2: baseListURL}}
	s.fetcher = &fakeFetcher{full: map[string][]string{}, patches: map[string][]string{}}
	s.resolver = &fakeResolver{}

	exec, err := New(s.versions, s.content, s.subs, s.catalog, s.fetcher, s.resolver,
		WithClock(func() time.Time { return s.now }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)
	s.exec = exec
}

func TestExecutorSuite(t *testing.T) {
	suite.Run(t, new(ExecutorSuite))
}

// list builds a minimal filter document with the given version header.
func list(version string, extra ...string) []string {
	lines := []string{
		"! Title: Base Rules",
		"! Version: " + version,
		"! Expires: 4 days",
	}
	lines = append(lines, extra...)
	return append(lines, "||ads.example.com^")
}

func (s *ExecutorSuite) task(id models.FilterID, force bool) models.FilterUpdateTask {
	return models.FilterUpdateTask{FilterID: id, Force: force}
}

// =============================================================================
// Full Download Tests
// =============================================================================

func (s *ExecutorSuite) TestApplyFullDownload() {
	s.Run("forced catalog update downloads and commits everything", func() {
		s.fetcher.full[baseListURL] = list("2.0.1", "!#include extra.txt")

		meta, err := s.exec.Apply(s.ctx, s.task(2, true), false)
		s.Require().NoError(err)
		s.Equal(models.FilterID(2), meta.FilterID)
		s.Equal("2.0.1", meta.Version)
		s.Equal(int64(4*86400), meta.Expires)
		s.Equal(1, meta.RuleCount)

		raw, err := s.content.GetRaw(s.ctx, 2)
		s.Require().NoError(err)
		s.Contains(raw, "!#include extra.txt")

		resolved, err := s.content.GetResolved(s.ctx, 2)
		s.Require().NoError(err)
		s.NotContains(resolved, "!#include extra.txt")
		s.Contains(resolved, "||ads.example.com^")

		record, err := s.versions.Get(s.ctx, 2)
		s.Require().NoError(err)
		s.Equal("2.0.1", record.Version)
		s.Equal(s.now, record.LastCheckTime)
	})

	s.Run("custom filter downloads from its subscription url", func() {
		s.Require().NoError(s.subs.Upsert(s.ctx, models.Subscription{
			FilterID: 1001, URL: customListURL, Enabled: true,
		}))
		s.fetcher.full[customListURL] = list("1.2.3")

		meta, err := s.exec.Apply(s.ctx, s.task(1001, true), false)
		s.Require().NoError(err)
		s.Equal("1.2.3", meta.Version)
		s.Contains(s.fetcher.fullCalls, customListURL)
	})

	s.Run("optimized flag reaches the catalog", func() {
		s.fetcher.full[baseListURL] = list("2.0.1")

		_, err := s.exec.Apply(s.ctx, s.task(2, true), true)
		s.Require().NoError(err)
		s.True(s.catalog.lastOptimized)
	})
}

// =============================================================================
// Source Resolution Failure Tests
// =============================================================================

func (s *ExecutorSuite) TestApplySourceFailures() {
	s.Run("missing subscription fails with metadata unavailable", func() {
		_, err := s.exec.Apply(s.ctx, s.task(1005, true), false)
		s.True(dErrors.Is(err, dErrors.CodeMetadataUnavailable))

		_, err = s.versions.Get(s.ctx, 1005)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("subscription without a url fails with metadata unavailable", func() {
		s.Require().NoError(s.subs.Upsert(s.ctx, models.Subscription{FilterID: 1006, Enabled: true}))

		_, err := s.exec.Apply(s.ctx, s.task(1006, true), false)
		s.True(dErrors.Is(err, dErrors.CodeMetadataUnavailable))
	})

	s.Run("unknown catalog filter fails with metadata unavailable", func() {
		_, err := s.exec.Apply(s.ctx, s.task(99, true), false)
		s.True(dErrors.Is(err, dErrors.CodeMetadataUnavailable))
	})

	s.Run("download failure fails with metadata unavailable", func() {
		s.fetcher.fullErr = errors.New("connection refused")

		_, err := s.exec.Apply(s.ctx, s.task(2, true), false)
		s.True(dErrors.Is(err, dErrors.CodeMetadataUnavailable))
		s.fetcher.fullErr = nil

		_, err = s.versions.Get(s.ctx, 2)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

// =============================================================================
// Patch Path Tests
// =============================================================================

// seedPatchable installs filter 2 with committed v1 content and a patch feed,
// and clears the fetcher call log for per-scenario assertions.
func (s *ExecutorSuite) seedPatchable() {
	s.fetcher.fullCalls = nil
	s.fetcher.patchCalls = nil
	s.Require().NoError(s.versions.Set(s.ctx, models.FilterVersionRecord{
		FilterID:       2,
		Version:        "1.0",
		Expires:        4 * 86400,
		LastUpdateTime: s.now.Add(-24 * time.Hour),
		LastCheckTime:  s.now.Add(-time.Hour),
		DiffPath:       "patches/2.patch",
	}))
	base := list("1.0", "!#include extra.txt")
	s.Require().NoError(s.content.SetRaw(s.ctx, 2, base))
	s.Require().NoError(s.content.SetResolved(s.ctx, 2, []string{"||ads.example.com^"}))
}

func (s *ExecutorSuite) TestApplyPatchPath() {
	s.Run("unforced task patches in place", func() {
		s.seedPatchable()
		s.fetcher.patches[basePatchURL] = list("1.1", "!#include extra.txt")

		meta, err := s.exec.Apply(s.ctx, s.task(2, false), false)
		s.Require().NoError(err)
		s.Equal("1.1", meta.Version)

		s.Equal([]string{basePatchURL}, s.fetcher.patchCalls)
		s.Empty(s.fetcher.fullCalls)

		record, err := s.versions.Get(s.ctx, 2)
		s.Require().NoError(err)
		s.Equal("1.1", record.Version)
	})

	s.Run("no published patch falls back to a full download", func() {
		s.seedPatchable()
		delete(s.fetcher.patches, basePatchURL)
		s.fetcher.full[baseListURL] = list("1.1")

		meta, err := s.exec.Apply(s.ctx, s.task(2, false), false)
		s.Require().NoError(err)
		s.Equal("1.1", meta.Version)
		s.NotEmpty(s.fetcher.patchCalls)
		s.Equal([]string{baseListURL}, s.fetcher.fullCalls)
	})

	s.Run("patch failure aborts the task without a commit", func() {
		s.seedPatchable()
		s.fetcher.patchErr = errors.New("hunk mismatch")

		_, err := s.exec.Apply(s.ctx, s.task(2, false), false)
		s.True(dErrors.Is(err, dErrors.CodePatchFailed))
		s.fetcher.patchErr = nil

		record, err := s.versions.Get(s.ctx, 2)
		s.Require().NoError(err)
		s.Equal("1.0", record.Version, "failed patch must not move the version")

		resolved, err := s.content.GetResolved(s.ctx, 2)
		s.Require().NoError(err)
		s.Equal([]string{"||ads.example.com^"}, resolved)
	})

	s.Run("forced task skips the patch feed", func() {
		s.seedPatchable()
		s.fetcher.full[baseListURL] = list("2.0")

		_, err := s.exec.Apply(s.ctx, s.task(2, true), false)
		s.Require().NoError(err)
		s.Empty(s.fetcher.patchCalls)
	})

	s.Run("missing cached base skips the patch path", func() {
		s.Require().NoError(s.versions.Set(s.ctx, models.FilterVersionRecord{
			FilterID: 3, Version: "1.0", DiffPath: "patches/3.patch",
		}))
		s.catalog.urls[3] = "https://cdn.example.org/lists/3.txt"
		s.fetcher.full["https://cdn.example.org/lists/3.txt"] = list("1.1")

		_, err := s.exec.Apply(s.ctx, s.task(3, false), false)
		s.Require().NoError(err)
		s.Empty(s.fetcher.patchCalls)
	})
}

// =============================================================================
// Validation Tests
// =============================================================================

func (s *ExecutorSuite) TestApplyValidation() {
	s.Run("header without a version fails the task", func() {
		s.fetcher.full[baseListURL] = []string{"! Title: no version here", "||ads.example.com^"}

		_, err := s.exec.Apply(s.ctx, s.task(2, true), false)
		s.True(dErrors.Is(err, dErrors.CodeParseFailure))

		_, err = s.versions.Get(s.ctx, 2)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("checksum mismatch fails the task", func() {
		s.fetcher.full[baseListURL] = []string{
			"! Checksum: bm90IGEgcmVhbCBzdW0",
			"! Version: 2.0.1",
			"||ads.example.com^",
		}

		_, err := s.exec.Apply(s.ctx, s.task(2, true), false)
		s.True(dErrors.Is(err, dErrors.CodeParseFailure))
	})

	s.Run("directive resolution failure fails the task", func() {
		s.fetcher.full[baseListURL] = list("2.0.1")
		s.resolver.err = errors.New("include cycle")

		_, err := s.exec.Apply(s.ctx, s.task(2, true), false)
		s.True(dErrors.Is(err, dErrors.CodeParseFailure))
		s.resolver.err = nil
	})
}

// =============================================================================
// Version Record Commit Tests
// =============================================================================

func (s *ExecutorSuite) TestCommitInstants() {
	s.Run("declared timeupdated is committed as the update instant", func() {
		s.fetcher.full[baseListURL] = list("2.0.1", "! TimeUpdated: 2025-05-30T10:00:00Z")

		_, err := s.exec.Apply(s.ctx, s.task(2, true), false)
		s.Require().NoError(err)

		record, err := s.versions.Get(s.ctx, 2)
		s.Require().NoError(err)
		s.Equal(time.Date(2025, 5, 30, 10, 0, 0, 0, time.UTC), record.LastUpdateTime.UTC())
		s.Equal(s.now, record.LastCheckTime)
	})

	s.Run("unchanged version keeps the previous update instant", func() {
		previous := s.now.Add(-72 * time.Hour)
		s.Require().NoError(s.versions.Set(s.ctx, models.FilterVersionRecord{
			FilterID:       2,
			Version:        "2.0.1",
			LastUpdateTime: previous,
			LastCheckTime:  s.now.Add(-time.Hour),
		}))
		s.fetcher.full[baseListURL] = list("2.0.1")

		_, err := s.exec.Apply(s.ctx, s.task(2, true), false)
		s.Require().NoError(err)

		record, err := s.versions.Get(s.ctx, 2)
		s.Require().NoError(err)
		s.Equal(previous, record.LastUpdateTime)
	})

	s.Run("version bump stamps now as the update instant", func() {
		s.Require().NoError(s.versions.Set(s.ctx, models.FilterVersionRecord{
			FilterID:       2,
			Version:        "1.0",
			LastUpdateTime: s.now.Add(-72 * time.Hour),
			LastCheckTime:  s.now.Add(-time.Hour),
		}))
		s.fetcher.full[baseListURL] = list("2.0")

		_, err := s.exec.Apply(s.ctx, s.task(2, true), false)
		s.Require().NoError(err)

		record, err := s.versions.Get(s.ctx, 2)
		s.Require().NoError(err)
		s.Equal(s.now, record.LastUpdateTime)
	})
}
