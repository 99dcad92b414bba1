package memory

import (
	"context"
	"fmt"
	"sync"

	"docqa/internal/domain"
)

// Store keeps ingestion statuses in process memory.
type Store struct {
	mu       sync.RWMutex
	statuses map[string]domain.IngestionStatus
}

func NewStore() *Store {
	return &Store{statuses: make(map[string]domain.IngestionStatus)}
}

func (s *Store) Save(_ context.Context, status domain.IngestionStatus) error {
	if status.Collection == "" {
		return domain.ErrCollectionRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[status.Collection] = status
	return nil
}

func (s *Store) Get(_ context.Context, collection string) (domain.IngestionStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statuses[collection]
	if !ok {
		return domain.IngestionStatus{}, fmt.Errorf("status for %s: %w", collection, domain.ErrNotFound)
	}
	return st, nil
}

// Delete removes the status of collection. Unknown collections are ignored.
func (s *Store) Delete(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.statuses, collection)
	return nil
}
