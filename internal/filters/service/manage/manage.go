// Package manage exposes the subscription lifecycle behind the API: listing,
// installing, reconfiguring and removing filters, plus the version inventory.
// Removal cascades to the filter's version record and stored content.
package manage

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"time"

	"sieve/internal/filters/models"
	"sieve/internal/filters/ports"
	dErrors "sieve/pkg/domain-errors"
	"sieve/pkg/platform/sentinel"
)

// Service implements subscription management on top of the filter stores.
type Service struct {
	subs     ports.SubscriptionStore
	versions ports.VersionStore
	content  ports.ContentStore
	clock    ports.Clock
	logger   *slog.Logger
}

type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock injects a time source for tests.
func WithClock(clock ports.Clock) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

func New(subs ports.SubscriptionStore, versions ports.VersionStore, content ports.ContentStore, opts ...Option) (*Service, error) {
	if subs == nil {
		return nil, errors.New("subscription store is required")
	}
	if versions == nil {
		return nil, errors.New("version store is required")
	}
	if content == nil {
		return nil, errors.New("content store is required")
	}

	s := &Service{
		subs:     subs,
		versions: versions,
		content:  content,
		clock:    time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Subscriptions returns all installed subscriptions ordered by identifier.
func (s *Service) Subscriptions(ctx context.Context) ([]models.Subscription, error) {
	subs, err := s.subs.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "list subscriptions")
	}
	return subs, nil
}

// Upsert installs or reconfigures one subscription and returns the saved
// state. Custom filters carry their own source URL; catalog filters must
// leave it empty since theirs comes from the catalog index. AddedAt survives
// reconfiguration.
func (s *Service) Upsert(ctx context.Context, sub models.Subscription) (*models.Subscription, error) {
	if err := validateSource(sub); err != nil {
		return nil, err
	}

	existing, err := s.subs.Get(ctx, sub.FilterID)
	switch {
	case err == nil:
		sub.AddedAt = existing.AddedAt
	case errors.Is(err, sentinel.ErrNotFound):
		sub.AddedAt = s.clock()
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "load subscription")
	}

	if err := s.subs.Upsert(ctx, sub); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "save subscription")
	}

	s.logger.InfoContext(ctx, "subscription saved",
		"filter_id", sub.FilterID.String(),
		"enabled", sub.Enabled,
	)
	return &sub, nil
}

// Remove uninstalls a subscription and drops its version record and stored
// content.
func (s *Service) Remove(ctx context.Context, id models.FilterID) error {
	if _, err := s.subs.Get(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "subscription not found")
		}
		return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "load subscription")
	}

	if err := s.subs.Delete(ctx, id); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "delete subscription")
	}
	if err := s.versions.Delete(ctx, id); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "delete version record")
	}
	if err := s.content.Delete(ctx, id); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "delete filter content")
	}

	s.logger.InfoContext(ctx, "subscription removed", "filter_id", id.String())
	return nil
}

// Versions returns the stored version records ordered by filter identifier.
func (s *Service) Versions(ctx context.Context) ([]models.FilterVersionRecord, error) {
	records, err := s.versions.GetAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "load version records")
	}

	out := make([]models.FilterVersionRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record)
	}
	slices.SortFunc(out, func(a, b models.FilterVersionRecord) int {
		return cmp.Compare(a.FilterID, b.FilterID)
	})
	return out, nil
}

func validateSource(sub models.Subscription) error {
	if !sub.FilterID.IsCustom() {
		if sub.URL != "" {
			return dErrors.New(dErrors.CodeBadRequest, "built-in filters take their source url from the catalog")
		}
		return nil
	}

	u, err := url.Parse(sub.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("custom filter url must be absolute http(s), got %q", sub.URL))
	}
	return nil
}
