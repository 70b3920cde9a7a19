package worker

import (
	"context"
	"log/slog"
	"time"
)

// Cleaner removes final jobs older than a retention window.
type Cleaner interface {
	Cleanup(retention time.Duration) int
}

// Pruner deletes old jobs based on retention policy. Recovery sessions are
// never pruned.
type Pruner struct {
	retention time.Duration
	jobs      Cleaner
	log       *slog.Logger
}

// NewPruner creates a new Pruner worker.
func NewPruner(retention time.Duration, jobs Cleaner) *Pruner {
	return &Pruner{
		retention: retention,
		jobs:      jobs,
		log:       slog.Default().With("component", "pruner"),
	}
}

// Interval is how often the pruner runs: 10% of the retention period,
// clamped to [1m, 1h].
func (p *Pruner) Interval() time.Duration {
	interval := min(p.retention/10, 1*time.Hour)
	return max(interval, 1*time.Minute)
}

// Start runs the pruner loop.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	ticker := time.NewTicker(p.Interval())
	defer ticker.Stop()

	// Initial prune
	p.Prune()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Prune()
		}
	}
}

// Prune runs one cleanup pass and returns how many jobs were removed.
func (p *Pruner) Prune() int {
	n := p.jobs.Cleanup(p.retention)
	if n > 0 {
		p.log.Info("Pruned finished jobs", "count", n, "retention", p.retention)
	}
	return n
}
