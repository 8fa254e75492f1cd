// Package ports defines shared interfaces for the filters module.
// Interfaces are placed here when consumed by multiple services to avoid duplication.
package ports

import (
	"context"
	"time"

	"sieve/internal/filters/models"
)

// Clock supplies the current time. Stores and services default to time.Now
// and take an injected Clock in tests.
type Clock func() time.Time

// VersionStore is the durable mapping from filter identifier to its last
// known version metadata. Implementations return sentinel.ErrNotFound for
// missing records.
type VersionStore interface {
	// Get retrieves the version record for one filter.
	Get(ctx context.Context, id models.FilterID) (*models.FilterVersionRecord, error)

	// Set writes the full version record for one filter.
	Set(ctx context.Context, record models.FilterVersionRecord) error

	// RefreshLastCheckTime stamps LastCheckTime on every given filter that
	// has a record. Filters without a record are skipped silently.
	RefreshLastCheckTime(ctx context.Context, ids []models.FilterID, checkedAt time.Time) error

	// GetAll returns every stored record keyed by filter identifier.
	GetAll(ctx context.Context) (map[models.FilterID]models.FilterVersionRecord, error)

	// Delete removes the record for one filter, if present.
	Delete(ctx context.Context, id models.FilterID) error
}

// ContentStore persists filter list content in two keyspaces: resolved
// (post directive resolution, consumed by the rule engine) and raw (the
// exact downloaded text, used as the base for incremental patches).
type ContentStore interface {
	// GetResolved returns the resolved content lines for one filter.
	GetResolved(ctx context.Context, id models.FilterID) ([]string, error)

	// SetResolved writes the resolved content lines for one filter.
	SetResolved(ctx context.Context, id models.FilterID, lines []string) error

	// GetRaw returns the raw pre-resolution content lines for one filter.
	GetRaw(ctx context.Context, id models.FilterID) ([]string, error)

	// SetRaw writes the raw content lines for one filter.
	SetRaw(ctx context.Context, id models.FilterID, lines []string) error

	// Delete removes both keyspaces' content for one filter.
	Delete(ctx context.Context, id models.FilterID) error
}

// SubscriptionStore holds the installed filter set: catalog filters with
// their enabled flags and custom filters with their source URLs.
type SubscriptionStore interface {
	// Get retrieves one subscription. sentinel.ErrNotFound when absent.
	Get(ctx context.Context, id models.FilterID) (*models.Subscription, error)

	// Upsert creates or replaces a subscription.
	Upsert(ctx context.Context, sub models.Subscription) error

	// Delete removes a subscription.
	Delete(ctx context.Context, id models.FilterID) error

	// List returns all subscriptions.
	List(ctx context.Context) ([]models.Subscription, error)
}

// ListFetcher performs the network side of an update: full downloads and
// incremental patch application.
type ListFetcher interface {
	// DownloadFull fetches the complete list at url.
	DownloadFull(ctx context.Context, url string) ([]string, error)

	// ApplyPatch fetches the patch feed for url and applies it to current.
	// ok is false when no patch is available (empty feed, 404); that is not
	// an error and the caller falls back to a full download.
	ApplyPatch(ctx context.Context, url string, current []string) (updated []string, ok bool, err error)
}

// DirectiveResolver expands list-composition directives (!#include, !#if)
// in raw content, producing the resolved variant.
type DirectiveResolver interface {
	Resolve(ctx context.Context, baseURL string, lines []string) ([]string, error)
}

// Catalog is the remote index of built-in filters.
type Catalog interface {
	// Refresh re-downloads the catalog. Stale data stays served on failure.
	Refresh(ctx context.Context) error

	// DownloadURL resolves the content URL for a built-in filter, honoring
	// the optimized flag. sentinel.ErrNotFound for unknown identifiers.
	DownloadURL(id models.FilterID, optimized bool) (string, error)
}

// InstalledFilters yields the filters that are installed and enabled, the
// candidate universe for an update cycle.
type InstalledFilters interface {
	EnabledFilterIDs(ctx context.Context) ([]models.FilterID, error)
}

// SettingsSource provides the read-only update settings for a cycle.
type SettingsSource interface {
	UpdateSettings(ctx context.Context) (models.UpdateSettings, error)
}

// SettingsFunc adapts a function to the SettingsSource interface.
type SettingsFunc func(ctx context.Context) (models.UpdateSettings, error)

// UpdateSettings calls f.
func (f SettingsFunc) UpdateSettings(ctx context.Context) (models.UpdateSettings, error) {
	return f(ctx)
}

// UpdateSignal receives the identifiers of freshly updated filters and
// coalesces them into downstream engine rebuild triggers.
type UpdateSignal interface {
	Signal(ids []models.FilterID)
}
