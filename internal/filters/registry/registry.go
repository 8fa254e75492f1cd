// Package registry maintains the built-in filter catalog: the remote index
// document that maps catalog filter identifiers to their download locations.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"sieve/internal/filters/models"
	"sieve/internal/filters/ports"
	"sieve/internal/platform/config"
	"sieve/pkg/platform/sentinel"
)

// Filter is one entry of the catalog index document.
type Filter struct {
	ID           models.FilterID `json:"filter_id"`
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	Homepage     string          `json:"homepage,omitempty"`
	DownloadURL  string          `json:"download_url"`
	OptimizedURL string          `json:"optimized_url,omitempty"`
	DiffPath     string          `json:"diff_path,omitempty"`
}

type indexDocument struct {
	Filters []Filter `json:"filters"`
}

// bodyFetcher is the fragment of the download client the registry needs.
type bodyFetcher interface {
	FetchBody(ctx context.Context, url string) (string, error)
}

// Registry caches the catalog index in memory and serves URL lookups from
// it. A failed refresh keeps the previous catalog in place.
type Registry struct {
	fetcher  bodyFetcher
	indexURL string
	ttl      time.Duration
	clock    ports.Clock
	logger   *slog.Logger

	mu        sync.RWMutex
	byID      map[models.FilterID]Filter
	refreshed time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(clock ports.Clock) Option {
	return func(r *Registry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// New creates a Registry over the configured index URL.
func New(fetcher bodyFetcher, cfg config.RegistryConfig, opts ...Option) (*Registry, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if cfg.IndexURL == "" {
		return nil, errors.New("registry index url is required")
	}

	r := &Registry{
		fetcher:  fetcher,
		indexURL: cfg.IndexURL,
		ttl:      cfg.TTL,
		clock:    time.Now,
		logger:   slog.Default(),
		byID:     map[models.FilterID]Filter{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Refresh re-downloads the index unless the cached copy is still inside the
// freshness window. The catalog is fetched collectively, never per filter.
func (r *Registry) Refresh(ctx context.Context) error {
	now := r.clock()

	r.mu.RLock()
	fresh := len(r.byID) > 0 && r.ttl > 0 && now.Sub(r.refreshed) < r.ttl
	r.mu.RUnlock()
	if fresh {
		r.logger.DebugContext(ctx, "catalog still fresh, skipping refresh")
		return nil
	}

	body, err := r.fetcher.FetchBody(ctx, r.indexURL)
	if err != nil {
		return fmt.Errorf("fetch catalog index: %w", err)
	}

	var doc indexDocument
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return fmt.Errorf("decode catalog index: %w", err)
	}

	byID := make(map[models.FilterID]Filter, len(doc.Filters))
	for _, f := range doc.Filters {
		if f.DownloadURL == "" {
			r.logger.WarnContext(ctx, "catalog entry has no download url, skipping",
				"filter_id", f.ID)
			continue
		}
		byID[f.ID] = f
	}

	r.mu.Lock()
	r.byID = byID
	r.refreshed = now
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "catalog refreshed", "filters", len(byID))
	return nil
}

// DownloadURL resolves the content URL for a built-in filter. When optimized
// is set and the index does not carry an optimized variant, the URL is
// derived by suffixing the filename with "_optimized".
func (r *Registry) DownloadURL(id models.FilterID, optimized bool) (string, error) {
	r.mu.RLock()
	f, ok := r.byID[id]
	r.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("catalog filter %s: %w", id, sentinel.ErrNotFound)
	}
	if !optimized {
		return f.DownloadURL, nil
	}
	if f.OptimizedURL != "" {
		return f.OptimizedURL, nil
	}
	return optimizedVariant(f.DownloadURL)
}

func optimizedVariant(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse download url: %w", err)
	}
	ext := path.Ext(u.Path)
	u.Path = strings.TrimSuffix(u.Path, ext) + "_optimized" + ext
	return u.String(), nil
}
