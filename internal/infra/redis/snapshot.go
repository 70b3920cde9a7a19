package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/domain"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/infra/storage"
)

// SnapshotRepo implements storage.SnapshotRepository using Redis. Records
// are JSON blobs in one hash per kind; job order is kept in a sorted set
// scored by enqueue time.
type SnapshotRepo struct {
	rdb    *redis.Client
	prefix string
}

// NewSnapshotRepo creates a new Redis-backed snapshot repository.
func NewSnapshotRepo(client *Client) *SnapshotRepo {
	return &SnapshotRepo{rdb: client.rdb, prefix: client.prefix}
}

var _ storage.SnapshotRepository = (*SnapshotRepo)(nil)

// Key helpers
func snapshotKey(prefix, part string) string {
	return fmt.Sprintf("%s:snapshot:%s", prefix, part)
}

func (r *SnapshotRepo) metaKey() string     { return snapshotKey(r.prefix, "meta") }
func (r *SnapshotRepo) jobsKey() string     { return snapshotKey(r.prefix, "jobs") }
func (r *SnapshotRepo) orderKey() string    { return snapshotKey(r.prefix, "job_order") }
func (r *SnapshotRepo) workersKey() string  { return snapshotKey(r.prefix, "workers") }
func (r *SnapshotRepo) sessionsKey() string { return snapshotKey(r.prefix, "sessions") }

// Save replaces the stored snapshot atomically.
func (r *SnapshotRepo) Save(ctx context.Context, snap *domain.Snapshot) error {
	jobs := make(map[string]any, len(snap.Jobs))
	order := make([]redis.Z, 0, len(snap.Jobs))
	for _, j := range snap.Jobs {
		data, err := json.Marshal(j)
		if err != nil {
			return fmt.Errorf("failed to marshal job %s: %w", j.ID, err)
		}
		jobs[j.ID] = data
		order = append(order, redis.Z{Score: float64(j.EnqueuedAt.UnixNano()), Member: j.ID})
	}
	workers, err := encodeAll(snap.Workers, func(w *domain.WorkerNode) string { return w.ID })
	if err != nil {
		return err
	}
	sessions, err := encodeAll(snap.Sessions, func(s *domain.RecoverySession) string { return s.ID })
	if err != nil {
		return err
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.jobsKey(), r.orderKey(), r.workersKey(), r.sessionsKey())
		if len(jobs) > 0 {
			pipe.HSet(ctx, r.jobsKey(), jobs)
			pipe.ZAdd(ctx, r.orderKey(), order...)
		}
		if len(workers) > 0 {
			pipe.HSet(ctx, r.workersKey(), workers)
		}
		if len(sessions) > 0 {
			pipe.HSet(ctx, r.sessionsKey(), sessions)
		}
		pipe.Set(ctx, r.metaKey(), snap.TakenAt.Format(time.RFC3339Nano), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Load reads the last saved snapshot.
func (r *SnapshotRepo) Load(ctx context.Context) (*domain.Snapshot, error) {
	takenAt, err := r.rdb.Get(ctx, r.metaKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}
	snap := &domain.Snapshot{}
	if snap.TakenAt, err = time.Parse(time.RFC3339Nano, takenAt); err != nil {
		return nil, fmt.Errorf("invalid snapshot time: %w", err)
	}

	ids, err := r.rdb.ZRange(ctx, r.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}
	if len(ids) > 0 {
		vals, err := r.rdb.HMGet(ctx, r.jobsKey(), ids...).Result()
		if err != nil {
			return nil, fmt.Errorf("hmget failed: %w", err)
		}
		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("job %s missing from snapshot", ids[i])
			}
			var j domain.Job
			if err := storage.Decode([]byte(s), &j); err != nil {
				return nil, fmt.Errorf("failed to unmarshal job %s: %w", ids[i], err)
			}
			snap.Jobs = append(snap.Jobs, &j)
		}
	}

	if snap.Workers, err = decodeAll[domain.WorkerNode](ctx, r.rdb, r.workersKey()); err != nil {
		return nil, err
	}
	slices.SortFunc(snap.Workers, func(a, b *domain.WorkerNode) int { return strings.Compare(a.ID, b.ID) })

	if snap.Sessions, err = decodeAll[domain.RecoverySession](ctx, r.rdb, r.sessionsKey()); err != nil {
		return nil, err
	}
	slices.SortFunc(snap.Sessions, func(a, b *domain.RecoverySession) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return snap, nil
}

func encodeAll[T any](items []*T, id func(*T) string) (map[string]any, error) {
	out := make(map[string]any, len(items))
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", id(item), err)
		}
		out[id(item)] = data
	}
	return out, nil
}

func decodeAll[T any](ctx context.Context, rdb *redis.Client, key string) ([]*T, error) {
	vals, err := rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s failed: %w", key, err)
	}
	out := make([]*T, 0, len(vals))
	for field, raw := range vals {
		v := new(T)
		if err := storage.Decode([]byte(raw), v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", field, err)
		}
		out = append(out, v)
	}
	return out, nil
}
