// Package content persists filter list content in two keyspaces: resolved
// content consumed by the rule engine, and raw pre-resolution snapshots used
// as the base for incremental patches.
package content

import (
	"context"
	"fmt"
	"sync"

	"sieve/internal/filters/models"
	"sieve/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	resolved map[models.FilterID][]string
	raw      map[models.FilterID][]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		resolved: make(map[models.FilterID][]string),
		raw:      make(map[models.FilterID][]string),
	}
}

func (s *InMemoryStore) GetResolved(_ context.Context, id models.FilterID) ([]string, error) {
	return s.get(s.resolved, id)
}

func (s *InMemoryStore) SetResolved(_ context.Context, id models.FilterID, lines []string) error {
	s.set(s.resolved, id, lines)
	return nil
}

func (s *InMemoryStore) GetRaw(_ context.Context, id models.FilterID) ([]string, error) {
	return s.get(s.raw, id)
}

func (s *InMemoryStore) SetRaw(_ context.Context, id models.FilterID, lines []string) error {
	s.set(s.raw, id, lines)
	return nil
}

// Delete removes both keyspaces' content for one filter.
func (s *InMemoryStore) Delete(_ context.Context, id models.FilterID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.resolved, id)
	delete(s.raw, id)
	return nil
}

func (s *InMemoryStore) get(space map[models.FilterID][]string, id models.FilterID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines, exists := space[id]
	if !exists {
		return nil, fmt.Errorf("content for filter %s: %w", id, sentinel.ErrNotFound)
	}
	out := make([]string, len(lines))
	copy(out, lines)
	return out, nil
}

func (s *InMemoryStore) set(space map[models.FilterID][]string, id models.FilterID, lines []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]string, len(lines))
	copy(stored, lines)
	space[id] = stored
}
