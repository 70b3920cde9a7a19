package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/domain"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/infra/storage"
)

// SnapshotRepo implements storage.SnapshotRepository using PostgreSQL.
// Every Save replaces the previous checkpoint in one transaction.
type SnapshotRepo struct {
	db *DB
}

// NewSnapshotRepo creates a new PostgreSQL snapshot repository.
func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

var _ storage.SnapshotRepository = (*SnapshotRepo)(nil)

type checkpointRow struct {
	TakenAt  sql.NullTime `db:"taken_at"`
	Jobs     int          `db:"jobs"`
	Workers  int          `db:"workers"`
	Sessions int          `db:"sessions"`
}

// Save writes the snapshot, replacing whatever was stored before.
func (r *SnapshotRepo) Save(ctx context.Context, snap *domain.Snapshot) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"delivery_jobs", "delivery_workers", "recovery_sessions"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, j := range snap.Jobs {
		payload, err := json.Marshal(j)
		if err != nil {
			return fmt.Errorf("failed to encode job %s: %w", j.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO delivery_jobs (id, project_id, status, priority, enqueued_at, payload)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, j.ID, j.ProjectID, string(j.Status), string(j.Priority), j.EnqueuedAt, payload)
		if err != nil {
			return fmt.Errorf("failed to save job %s: %w", j.ID, err)
		}
	}

	for _, w := range snap.Workers {
		payload, err := json.Marshal(w)
		if err != nil {
			return fmt.Errorf("failed to encode worker %s: %w", w.ID, err)
		}
		caps := w.Capabilities
		if caps == nil {
			caps = []string{}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO delivery_workers (id, status, capabilities, payload)
			VALUES ($1, $2, $3, $4)
		`, w.ID, string(w.Status), pq.Array(caps), payload)
		if err != nil {
			return fmt.Errorf("failed to save worker %s: %w", w.ID, err)
		}
	}

	for _, s := range snap.Sessions {
		payload, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to encode session %s: %w", s.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO recovery_sessions (id, job_id, status, category, started_at, payload)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, s.ID, s.JobID, string(s.Status), string(s.Category), s.StartedAt, payload)
		if err != nil {
			return fmt.Errorf("failed to save session %s: %w", s.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO delivery_checkpoints (id, taken_at, jobs, workers, sessions)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET taken_at = EXCLUDED.taken_at, jobs = EXCLUDED.jobs,
		    workers = EXCLUDED.workers, sessions = EXCLUDED.sessions
	`, snap.TakenAt, len(snap.Jobs), len(snap.Workers), len(snap.Sessions))
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Load reads the last saved snapshot.
func (r *SnapshotRepo) Load(ctx context.Context) (*domain.Snapshot, error) {
	var cp checkpointRow
	err := r.db.GetContext(ctx, &cp, `SELECT taken_at, jobs, workers, sessions FROM delivery_checkpoints WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	snap := &domain.Snapshot{TakenAt: cp.TakenAt.Time}
	if snap.Jobs, err = selectPayloads[domain.Job](ctx, r.db,
		`SELECT payload FROM delivery_jobs ORDER BY enqueued_at, id`); err != nil {
		return nil, err
	}
	if snap.Workers, err = selectPayloads[domain.WorkerNode](ctx, r.db,
		`SELECT payload FROM delivery_workers ORDER BY id`); err != nil {
		return nil, err
	}
	if snap.Sessions, err = selectPayloads[domain.RecoverySession](ctx, r.db,
		`SELECT payload FROM recovery_sessions ORDER BY started_at, id`); err != nil {
		return nil, err
	}
	return snap, nil
}

func selectPayloads[T any](ctx context.Context, db *DB, query string) ([]*T, error) {
	var rows [][]byte
	if err := db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to query snapshot rows: %w", err)
	}
	out := make([]*T, 0, len(rows))
	for _, payload := range rows {
		v := new(T)
		if err := storage.Decode(payload, v); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot row: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}
