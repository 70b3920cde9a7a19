package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/domain"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/infra/metrics"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/infra/storage"
)

// SnapshotFunc collects the current in-memory state.
type SnapshotFunc func() *domain.Snapshot

// Checkpointer periodically saves snapshots to a repository.
type Checkpointer struct {
	source   SnapshotFunc
	repo     storage.SnapshotRepository
	backend  string
	interval time.Duration
	retries  uint64
	backoff  time.Duration
	log      *slog.Logger
}

// NewCheckpointer creates a checkpointer. backend only labels metrics.
func NewCheckpointer(
	source SnapshotFunc,
	repo storage.SnapshotRepository,
	backend string,
	interval time.Duration,
) *Checkpointer {
	return &Checkpointer{
		source:   source,
		repo:     repo,
		backend:  backend,
		interval: interval,
		retries:  3,
		backoff:  200 * time.Millisecond,
		log:      slog.Default().With("component", "checkpoint", "backend", backend),
	}
}

// Start saves a snapshot every interval, and once more when ctx is done.
func (c *Checkpointer) Start(ctx context.Context) {
	if c.interval <= 0 {
		return
	}
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			if err := c.Save(final); err != nil {
				c.log.Error("Final checkpoint failed", "error", err)
			}
			cancel()
			return
		case <-ticker.C:
			if err := c.Save(ctx); err != nil && !errors.Is(err, context.Canceled) {
				c.log.Error("Checkpoint failed", "error", err)
			}
		}
	}
}

// Save writes one snapshot, retrying transient write errors.
func (c *Checkpointer) Save(ctx context.Context) error {
	snap := c.source()
	b := retry.WithMaxRetries(c.retries, retry.NewExponential(c.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := c.repo.Save(ctx, snap); err != nil {
			c.log.Warn("Checkpoint write failed", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		metrics.CheckpointsTotal.WithLabelValues(c.backend, "error").Inc()
		return fmt.Errorf("save checkpoint: %w", err)
	}
	metrics.CheckpointsTotal.WithLabelValues(c.backend, "ok").Inc()
	c.log.Debug("Checkpoint saved",
		"jobs", len(snap.Jobs),
		"workers", len(snap.Workers),
		"sessions", len(snap.Sessions),
	)
	return nil
}
