package queue

import (
	"time"

	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/domain"
)

// Stats is a point-in-time summary of the queue.
type Stats struct {
	Total         int                      `json:"total"`
	ByStatus      map[domain.JobStatus]int `json:"by_status"`
	ByPriority    map[domain.Priority]int  `json:"by_priority"`
	Active        int                      `json:"active"`
	Retrying      int                      `json:"retrying"`
	AwaitingHuman int                      `json:"awaiting_human"`
	MaxConcurrent int                      `json:"max_concurrent"`

	WorkersIdle    int `json:"workers_idle"`
	WorkersBusy    int `json:"workers_busy"`
	WorkersOffline int `json:"workers_offline"`

	AvgWaitTime     time.Duration `json:"avg_wait_time"`
	AvgDeliveryTime time.Duration `json:"avg_delivery_time"`
	SuccessRate     float64       `json:"success_rate"`
	CompletedToday  int           `json:"completed_today"`
	FailedToday     int           `json:"failed_today"`
}

// GetStats summarizes jobs and workers.
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	y, mo, d := now.Date()
	today := time.Date(y, mo, d, 0, 0, 0, 0, now.Location())

	s := Stats{
		ByStatus:      make(map[domain.JobStatus]int, len(domain.AllJobStatuses)),
		ByPriority:    make(map[domain.Priority]int, len(domain.PriorityWeights)),
		MaxConcurrent: m.cfg.MaxConcurrent,
	}
	for _, st := range domain.AllJobStatuses {
		s.ByStatus[st] = 0
	}

	var waitSum, deliverySum time.Duration
	var waited, delivered, completed, failed int
	for _, j := range m.jobs.List() {
		s.Total++
		s.ByStatus[j.Status]++
		s.ByPriority[j.Priority]++
		if j.Status.Active() {
			s.Active++
		}
		if j.Status == domain.JobStatusFailed && j.RetryScheduled {
			s.Retrying++
		}
		if j.AwaitingHuman {
			s.AwaitingHuman++
		}
		if !j.StartedAt.IsZero() {
			waitSum += j.StartedAt.Sub(j.EnqueuedAt)
			waited++
		}
		switch {
		case j.Status == domain.JobStatusCompleted:
			completed++
			deliverySum += j.ActualDuration
			delivered++
			if !j.CompletedAt.Before(today) {
				s.CompletedToday++
			}
		case j.Status == domain.JobStatusFailed && !j.RetryScheduled:
			failed++
			if !j.CompletedAt.Before(today) {
				s.FailedToday++
			}
		}
	}
	if waited > 0 {
		s.AvgWaitTime = waitSum / time.Duration(waited)
	}
	if delivered > 0 {
		s.AvgDeliveryTime = deliverySum / time.Duration(delivered)
	}
	if completed+failed > 0 {
		s.SuccessRate = float64(completed) * 100 / float64(completed+failed)
	}

	for _, w := range m.workers.List() {
		switch w.Status {
		case domain.WorkerStatusIdle:
			s.WorkersIdle++
		case domain.WorkerStatusBusy:
			s.WorkersBusy++
		default:
			s.WorkersOffline++
		}
	}
	return s
}
