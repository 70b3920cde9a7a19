package storage

import (
	"context"
	"errors"

	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/domain"
)

var (
	// ErrSnapshotNotFound is returned when no checkpoint has been written yet
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// Repository is an indexed arena of records keyed by id. Implementations
// must be safe for concurrent use; callers that need multi-record atomicity
// serialize access themselves.
type Repository[T any] interface {
	// Get returns the record with id
	Get(id string) (T, bool)

	// Put inserts or replaces the record with id
	Put(id string, v T)

	// Delete removes the record with id
	Delete(id string)

	// List returns all records in unspecified order
	List() []T

	// Len returns the number of records
	Len() int
}

// JobRepository holds job records.
type JobRepository = Repository[*domain.Job]

// WorkerRepository holds worker nodes.
type WorkerRepository = Repository[*domain.WorkerNode]

// SnapshotRepository persists scheduler checkpoints
type SnapshotRepository interface {
	// Save writes a full snapshot, replacing the previous one
	Save(ctx context.Context, snap *domain.Snapshot) error

	// Load returns the last saved snapshot or ErrSnapshotNotFound
	Load(ctx context.Context) (*domain.Snapshot, error)
}
