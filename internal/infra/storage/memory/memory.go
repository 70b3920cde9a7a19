package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/domain"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/infra/storage"
)

// -----------------------------------------------------------------------------
// Arena
// -----------------------------------------------------------------------------

// Store is an in-memory storage.Repository.
type Store[T any] struct {
	items map[string]T
	mu    sync.RWMutex
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{items: make(map[string]T)}
}

func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[id]
	return v, ok
}

func (s *Store[T]) Put(id string, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = v
}

func (s *Store[T]) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}

func (s *Store[T]) List() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, 0, len(s.items))
	for _, v := range s.items {
		out = append(out, v)
	}
	return out
}

func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// NewJobStore returns an empty in-memory job arena.
func NewJobStore() storage.JobRepository { return NewStore[*domain.Job]() }

// NewWorkerStore returns an empty in-memory worker arena.
func NewWorkerStore() storage.WorkerRepository { return NewStore[*domain.WorkerNode]() }

// -----------------------------------------------------------------------------
// Snapshot Repository
// -----------------------------------------------------------------------------

// SnapshotRepo keeps the last checkpoint in memory, serialized so later
// mutation of the live records cannot leak into it.
type SnapshotRepo struct {
	data []byte
	mu   sync.RWMutex
}

func NewSnapshotRepo() *SnapshotRepo {
	return &SnapshotRepo{}
}

func (r *SnapshotRepo) Save(ctx context.Context, snap *domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = data
	return nil
}

func (r *SnapshotRepo) Load(ctx context.Context) (*domain.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.data == nil {
		return nil, storage.ErrSnapshotNotFound
	}
	var snap domain.Snapshot
	if err := storage.Decode(r.data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}
