package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/diagram/pkg/domain"
)

// Store implements ports.SnapshotStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Snapshot
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Snapshot),
	}
}

// Save keeps a deep copy of the snapshot.
func (s *Store) Save(ctx context.Context, clientID string, snapshot *domain.Snapshot) error {
	copied := clone(snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[clientID] = copied
	return nil
}

// Load returns a copy so callers cannot mutate the stored snapshot.
func (s *Store) Load(ctx context.Context, clientID string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.data[clientID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return clone(snapshot), nil
}

// Delete removes the snapshot.
func (s *Store) Delete(ctx context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, clientID)
	return nil
}

// List returns the stored client ids, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func clone(snapshot *domain.Snapshot) *domain.Snapshot {
	ret := *snapshot
	ret.Model = snapshot.Model.Clone()
	if snapshot.Options != nil {
		ret.Options = make(map[string]string, len(snapshot.Options))
		for k, v := range snapshot.Options {
			ret.Options[k] = v
		}
	}
	return &ret
}
