// Package patch executes the update pipeline for a single filter: resolve
// the source URL, obtain new content by incremental patch or full download,
// resolve composition directives, validate and parse the header, and commit
// content plus version metadata. Every failure is scoped to the one task and
// carries a domain error code for the orchestrator to log and count.
package patch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"sieve/internal/filters/fetch"
	"sieve/internal/filters/models"
	"sieve/internal/filters/parse"
	"sieve/internal/filters/ports"
	dErrors "sieve/pkg/domain-errors"
	"sieve/pkg/platform/sentinel"
)

// Executor updates one filter per Apply call. Safe for concurrent use across
// distinct filter identifiers; the orchestrator guarantees no two concurrent
// tasks share an identifier.
type Executor struct {
	versions ports.VersionStore
	content  ports.ContentStore
	subs     ports.SubscriptionStore
	catalog  ports.Catalog
	fetcher  ports.ListFetcher
	resolver ports.DirectiveResolver
	clock    ports.Clock
	logger   *slog.Logger
}

type Option func(*Executor)

// WithClock injects a time source for tests.
func WithClock(clock ports.Clock) Option {
	return func(e *Executor) {
		e.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

func New(
	versions ports.VersionStore,
	content ports.ContentStore,
	subs ports.SubscriptionStore,
	catalog ports.Catalog,
	fetcher ports.ListFetcher,
	resolver ports.DirectiveResolver,
	opts ...Option,
) (*Executor, error) {
	if versions == nil {
		return nil, errors.New("version store is required")
	}
	if content == nil {
		return nil, errors.New("content store is required")
	}
	if subs == nil {
		return nil, errors.New("subscription store is required")
	}
	if catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if resolver == nil {
		return nil, errors.New("directive resolver is required")
	}

	e := &Executor{
		versions: versions,
		content:  content,
		subs:     subs,
		catalog:  catalog,
		fetcher:  fetcher,
		resolver: resolver,
		clock:    time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Apply updates one filter and returns the parsed metadata of the new
// content. Unforced tasks try the patch path first and fall back to a full
// download when no patch is published; forced tasks always download in full.
// On success the resolved content, the raw pre-resolution snapshot and the
// version record have all been committed.
func (e *Executor) Apply(ctx context.Context, task models.FilterUpdateTask, optimized bool) (*models.FilterMetadata, error) {
	listURL, err := e.resolveURL(ctx, task.FilterID, optimized)
	if err != nil {
		return nil, err
	}

	var prev *models.FilterVersionRecord
	record, err := e.versions.Get(ctx, task.FilterID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "read version record")
	}
	if err == nil {
		prev = record
	}

	raw, patched, err := e.obtainContent(ctx, task, listURL, prev)
	if err != nil {
		return nil, err
	}

	resolved, err := e.resolver.Resolve(ctx, listURL, raw)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeParseFailure, "resolve directives")
	}

	// Checksum and header describe the document as published, so both are
	// checked against the raw text, not the resolved output.
	if err := parse.ValidateChecksum(raw); err != nil {
		return nil, err
	}
	meta, err := parse.Header(raw)
	if err != nil {
		return nil, err
	}
	meta.FilterID = task.FilterID
	meta.RuleCount = countRules(resolved)

	if err := e.commit(ctx, task.FilterID, raw, resolved, meta, prev); err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "filter updated",
		"filter_id", task.FilterID.String(),
		"version", meta.Version,
		"patched", patched,
	)
	return meta, nil
}

// resolveURL finds the canonical source for a filter: the stored subscription
// for custom filters, the catalog for built-ins.
func (e *Executor) resolveURL(ctx context.Context, id models.FilterID, optimized bool) (string, error) {
	if id.IsCustom() {
		sub, err := e.subs.Get(ctx, id)
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeMetadataUnavailable, "subscription metadata missing")
		}
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "read subscription")
		}
		if sub.URL == "" {
			return "", dErrors.New(dErrors.CodeMetadataUnavailable, "subscription has no source url")
		}
		return sub.URL, nil
	}

	url, err := e.catalog.DownloadURL(id, optimized)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeMetadataUnavailable, "resolve catalog download url")
	}
	return url, nil
}

// obtainContent returns the new raw document. patched reports whether the
// incremental path produced it.
func (e *Executor) obtainContent(ctx context.Context, task models.FilterUpdateTask, listURL string, prev *models.FilterVersionRecord) (lines []string, patched bool, err error) {
	if !task.Force && prev != nil && prev.SupportsPatching() {
		updated, ok, err := e.tryPatch(ctx, task.FilterID, listURL, prev.DiffPath)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return updated, true, nil
		}
	}

	lines, err = e.fetcher.DownloadFull(ctx, listURL)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeMetadataUnavailable, "download list")
	}
	return lines, false, nil
}

// tryPatch applies the published patch to the cached raw content. ok is false
// when the patch path cannot be taken at all: no cached base, or the feed has
// nothing published. Those cases fall back to a full download without error.
func (e *Executor) tryPatch(ctx context.Context, id models.FilterID, listURL, diffPath string) ([]string, bool, error) {
	current, err := e.content.GetRaw(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "read cached content")
	}

	patchURL, err := fetch.ResolveRelative(listURL, diffPath)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodePatchFailed, "resolve patch location")
	}

	updated, ok, err := e.fetcher.ApplyPatch(ctx, patchURL, current)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodePatchFailed, "apply patch")
	}
	if !ok {
		e.logger.DebugContext(ctx, "no patch published, falling back to full download",
			"filter_id", id.String(),
		)
		return nil, false, nil
	}
	return updated, true, nil
}

// commit is the single write point of the pipeline. A future multi-instance
// deployment would take a per-filter lock around this method.
func (e *Executor) commit(ctx context.Context, id models.FilterID, raw, resolved []string, meta *models.FilterMetadata, prev *models.FilterVersionRecord) error {
	if err := e.content.SetResolved(ctx, id, resolved); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "store resolved content")
	}
	if err := e.content.SetRaw(ctx, id, raw); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "store raw content")
	}

	now := e.clock()
	record := models.FilterVersionRecord{
		FilterID:       id,
		Version:        meta.Version,
		Expires:        meta.Expires,
		LastUpdateTime: updateInstant(meta, prev, now),
		LastCheckTime:  now,
		DiffPath:       meta.DiffPath,
	}
	if err := e.versions.Set(ctx, record); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "store version record")
	}
	return nil
}

// countRules counts effective rule lines, ignoring blanks and comments.
func countRules(lines []string) int {
	n := 0
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "!") {
			continue
		}
		n++
	}
	return n
}

// updateInstant pins LastUpdateTime: the list's own TimeUpdated when declared,
// the previous value when the version did not move, otherwise now. Never after
// LastCheckTime.
func updateInstant(meta *models.FilterMetadata, prev *models.FilterVersionRecord, now time.Time) time.Time {
	instant := meta.TimeUpdated
	if instant.IsZero() {
		instant = now
		if prev != nil && prev.Version == meta.Version && !prev.LastUpdateTime.IsZero() {
			instant = prev.LastUpdateTime
		}
	}
	if instant.After(now) {
		return now
	}
	return instant
}
