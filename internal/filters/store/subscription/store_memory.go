// Package subscription stores the installed filter set: which filters are
// enabled, and where custom filters are fetched from.
package subscription

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"sieve/internal/filters/models"
	"sieve/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu   sync.RWMutex
	subs map[models.FilterID]models.Subscription
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		subs: make(map[models.FilterID]models.Subscription),
	}
}

func (s *InMemoryStore) Get(_ context.Context, id models.FilterID) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, exists := s.subs[id]
	if !exists {
		return nil, fmt.Errorf("subscription %s: %w", id, sentinel.ErrNotFound)
	}
	return &sub, nil
}

func (s *InMemoryStore) Upsert(_ context.Context, sub models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subs[sub.FilterID] = sub
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, id models.FilterID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.subs, id)
	return nil
}

// List returns all subscriptions ordered by filter identifier.
func (s *InMemoryStore) List(_ context.Context) ([]models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	slices.SortFunc(out, func(a, b models.Subscription) int {
		return cmp.Compare(a.FilterID, b.FilterID)
	})
	return out, nil
}

// EnabledFilterIDs returns the identifiers of all enabled subscriptions,
// ordered. This is the candidate universe for an update cycle.
func (s *InMemoryStore) EnabledFilterIDs(_ context.Context) ([]models.FilterID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.FilterID, 0, len(s.subs))
	for id, sub := range s.subs {
		if sub.Enabled {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out, nil
}
