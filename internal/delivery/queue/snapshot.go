package queue

import (
	"fmt"
	"time"

	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/domain"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/infra/metrics"
)

// Snapshot returns copies of every job and worker.
func (m *Manager) Snapshot() ([]*domain.Job, []*domain.WorkerNode) {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs := m.sortedLocked()
	outJobs := make([]*domain.Job, len(jobs))
	for i, j := range jobs {
		outJobs[i] = j.Clone()
	}
	workers := m.sortedWorkersLocked()
	outWorkers := make([]*domain.WorkerNode, len(workers))
	for i, w := range workers {
		outWorkers[i] = w.Clone()
	}
	return outJobs, outWorkers
}

// Restore loads a checkpoint into an empty manager. Work that held a slot
// and retries that were waiting on a timer go back to the queue, since no
// executor survives a restart. Workers come back idle unless offline.
func (m *Manager) Restore(jobs []*domain.Job, workers []*domain.WorkerNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.jobs.Len() > 0 || m.workers.Len() > 0 {
		return fmt.Errorf("%w: %d jobs, %d workers", ErrNotEmpty, m.jobs.Len(), m.workers.Len())
	}

	for _, w := range workers {
		w = w.Clone()
		w.JobID = ""
		if w.Status != domain.WorkerStatusOffline {
			w.Status = domain.WorkerStatusIdle
		}
		m.workers.Put(w.ID, w)
	}

	requeued := 0
	for _, j := range jobs {
		j = j.Clone()
		j.WorkerID = ""
		if j.Status.Active() || (j.Status == domain.JobStatusFailed && j.RetryScheduled) {
			j.Status = domain.JobStatusQueued
			j.RetryScheduled = false
			j.RetryAt = time.Time{}
			j.StartedAt = time.Time{}
			requeued++
		}
		m.seq = max(m.seq, j.Seq)
		m.runs = max(m.runs, j.Run)
		m.jobs.Put(j.ID, j)
		m.counts[j.Status]++
	}
	for _, st := range domain.AllJobStatuses {
		metrics.QueueJobs.WithLabelValues(string(st)).Set(float64(m.counts[st]))
	}
	m.busy = 0
	metrics.WorkersBusy.Set(0)
	m.log.Info("Queue restored", "jobs", len(jobs), "workers", len(workers), "requeued", requeued)

	m.dispatchLocked()
	return nil
}
