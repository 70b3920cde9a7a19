package health

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/domain"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/delivery/queue"
)

// StatsSource reports queue statistics.
type StatsSource interface {
	GetStats() queue.Stats
}

// Checker is a backing service that can be pinged.
type Checker interface {
	Health(ctx context.Context) error
}

// Monitor aggregates health status from the queue and its backends.
type Monitor struct {
	stats      StatsSource
	backends   map[string]Checker
	ttl        time.Duration
	lastCheck  time.Time
	lastReport *HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor. backends are keyed by name.
func NewMonitor(stats StatsSource, backends map[string]Checker) *Monitor {
	return &Monitor{
		stats:    stats,
		backends: maps.Clone(backends),
		ttl:      5 * time.Second,
	}
}

// CheckHealth evaluates every component. Results are cached briefly so
// frequent polling does not hammer the backends.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && time.Since(m.lastCheck) < m.ttl {
		return *m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth),
	}

	q := queueHealth(m.stats.GetStats())
	report.Components[q.Name] = q
	report.SystemStatus = worst(report.SystemStatus, q.Status)

	for name, c := range m.backends {
		h := ComponentHealth{Name: name, Status: StatusHealthy}
		if err := c.Health(ctx); err != nil {
			h.Status = StatusCritical
			h.Error = err.Error()
		}
		report.Components[name] = h
		report.SystemStatus = worst(report.SystemStatus, h.Status)
	}

	m.lastCheck = time.Now()
	m.lastReport = &report
	return report
}

func queueHealth(s queue.Stats) ComponentHealth {
	h := ComponentHealth{
		Name:   "queue",
		Status: StatusHealthy,
		Detail: map[string]int{
			"queued":          s.ByStatus[domain.JobStatusQueued],
			"active":          s.Active,
			"retrying":        s.Retrying,
			"awaiting_human":  s.AwaitingHuman,
			"workers_idle":    s.WorkersIdle,
			"workers_busy":    s.WorkersBusy,
			"workers_offline": s.WorkersOffline,
		},
	}

	online := s.WorkersIdle + s.WorkersBusy
	backlog := s.ByStatus[domain.JobStatusQueued]

	// Evaluate Status
	if online == 0 {
		h.Status = StatusCritical
	} else if s.AwaitingHuman > 0 || s.WorkersOffline > 0 || backlog > 10*max(s.MaxConcurrent, 1) {
		h.Status = StatusDegraded
	}
	return h
}
