package consent

import (
	"context"
	"slices"
	"sync"

	"sieve/internal/filters/models"
)

type InMemoryStore struct {
	mu  sync.RWMutex
	ids []models.FilterID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Load(_ context.Context) ([]models.FilterID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.FilterID{}, s.ids...), nil
}

func (s *InMemoryStore) Save(_ context.Context, ids []models.FilterID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append([]models.FilterID{}, ids...)
	slices.Sort(s.ids)
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = nil
	return nil
}
