package queue

import (
	"time"

	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/domain"
)

// DefaultDuration is the estimate for work types missing from the table.
const DefaultDuration = 30 * time.Minute

// DefaultDurations are the stock per work type duration estimates.
var DefaultDurations = map[string]time.Duration{
	"landing-page":    15 * time.Minute,
	"web-app":         30 * time.Minute,
	"ecommerce":       45 * time.Minute,
	"admin-dashboard": 35 * time.Minute,
	"api-service":     25 * time.Minute,
	"mobile-app":      60 * time.Minute,
}

func (m *Manager) estimate(workType string) time.Duration {
	if d, ok := m.cfg.Durations[workType]; ok && d > 0 {
		return d
	}
	if d, ok := DefaultDurations[workType]; ok {
		return d
	}
	return DefaultDuration
}

// GetEstimatedWaitTime estimates how long a new job of priority p would wait
// before dispatch: the remaining work of queued jobs at or above its weight,
// spread over the concurrency cap. Jobs already holding a slot are not
// counted.
func (m *Manager) GetEstimatedWaitTime(p domain.Priority) time.Duration {
	weight := p.Weight()

	m.mu.Lock()
	defer m.mu.Unlock()

	var total time.Duration
	for _, j := range m.jobs.List() {
		if j.Status != domain.JobStatusQueued || j.Priority.Weight() < weight {
			continue
		}
		total += remaining(j)
	}
	return total / time.Duration(m.cfg.MaxConcurrent)
}

func remaining(j *domain.Job) time.Duration {
	left := 100 - min(max(j.Progress, 0), 100)
	return j.EstimatedDuration * time.Duration(left) / 100
}
