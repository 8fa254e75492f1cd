// Package version persists per-filter version metadata.
package version

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sieve/internal/filters/models"
	"sieve/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	records map[models.FilterID]models.FilterVersionRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[models.FilterID]models.FilterVersionRecord),
	}
}

func (s *InMemoryStore) Get(_ context.Context, id models.FilterID) (*models.FilterVersionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[id]
	if !exists {
		return nil, fmt.Errorf("filter %s: %w", id, sentinel.ErrNotFound)
	}
	return &record, nil
}

func (s *InMemoryStore) Set(_ context.Context, record models.FilterVersionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.FilterID] = record
	return nil
}

// RefreshLastCheckTime stamps LastCheckTime on every given filter that has a
// record; filters without one are skipped.
func (s *InMemoryStore) RefreshLastCheckTime(_ context.Context, ids []models.FilterID, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		record, exists := s.records[id]
		if !exists {
			continue
		}
		record.LastCheckTime = checkedAt
		s.records[id] = record
	}
	return nil
}

func (s *InMemoryStore) GetAll(_ context.Context) (map[models.FilterID]models.FilterVersionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[models.FilterID]models.FilterVersionRecord, len(s.records))
	for id, record := range s.records {
		out[id] = record
	}
	return out, nil
}

func (s *InMemoryStore) Delete(_ context.Context, id models.FilterID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, id)
	return nil
}
