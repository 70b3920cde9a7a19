package queue

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/domain"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/infra/metrics"
)

var (
	// ErrWorkerNotFound is returned for unknown worker ids.
	ErrWorkerNotFound = errors.New("worker not found")

	// ErrWorkerExists is returned when registering a duplicate worker id.
	ErrWorkerExists = errors.New("worker already registered")

	// ErrWorkerBusy is returned when changing a worker that holds a job.
	ErrWorkerBusy = errors.New("worker is busy")

	// ErrWorkerMismatch is returned when a worker reports on a job it does not hold.
	ErrWorkerMismatch = errors.New("job is assigned to a different worker")
)

// RegisterWorker adds an idle worker to the pool.
func (m *Manager) RegisterWorker(id, name string, capabilities []string) (*domain.WorkerNode, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: empty id", ErrWorkerNotFound)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.workers.Get(id); exists {
		return nil, fmt.Errorf("%w: %s", ErrWorkerExists, id)
	}
	w := &domain.WorkerNode{
		ID:           id,
		Name:         name,
		Status:       domain.WorkerStatusIdle,
		Capabilities: slices.Clone(capabilities),
		LastActiveAt: m.clock.Now(),
	}
	m.workers.Put(id, w)
	m.log.Info("Worker registered", "worker", id, "capabilities", capabilities)

	m.dispatchLocked()
	return w.Clone(), nil
}

// SetWorkerOffline takes an idle worker out of rotation.
func (m *Manager) SetWorkerOffline(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.workers.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrWorkerNotFound, id)
	}
	if w.Status == domain.WorkerStatusBusy {
		return fmt.Errorf("%w: %s holds job %s", ErrWorkerBusy, id, w.JobID)
	}
	w.Status = domain.WorkerStatusOffline
	return nil
}

// SetWorkerOnline returns an offline worker to the idle pool.
func (m *Manager) SetWorkerOnline(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.workers.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrWorkerNotFound, id)
	}
	if w.Status == domain.WorkerStatusOffline {
		w.Status = domain.WorkerStatusIdle
		w.LastActiveAt = m.clock.Now()
		m.dispatchLocked()
	}
	return nil
}

// GetIdleWorker returns an idle worker that can run workType.
func (m *Manager) GetIdleWorker(workType string) (*domain.WorkerNode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.idleWorkerLocked(workType)
	if w == nil {
		return nil, false
	}
	return w.Clone(), true
}

// Workers returns copies of all workers ordered by id.
func (m *Manager) Workers() []*domain.WorkerNode {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.sortedWorkersLocked()
	out := make([]*domain.WorkerNode, len(list))
	for i, w := range list {
		out[i] = w.Clone()
	}
	return out
}

// idleWorkerLocked is the only place where work types are routed to workers.
func (m *Manager) idleWorkerLocked(workType string) *domain.WorkerNode {
	for _, w := range m.sortedWorkersLocked() {
		if w.Status == domain.WorkerStatusIdle && w.CanRun(workType) {
			return w
		}
	}
	return nil
}

func (m *Manager) sortedWorkersLocked() []*domain.WorkerNode {
	list := m.workers.List()
	slices.SortFunc(list, func(a, b *domain.WorkerNode) int { return strings.Compare(a.ID, b.ID) })
	return list
}

// assignLocked links job and worker. Both records change in the caller's
// critical section.
func (m *Manager) assignLocked(job *domain.Job, w *domain.WorkerNode) {
	job.WorkerID = w.ID
	w.JobID = job.ID
	w.Status = domain.WorkerStatusBusy
	w.LastActiveAt = m.clock.Now()
	m.busy++
	metrics.WorkersBusy.Set(float64(m.busy))
}

// outcome values for releaseLocked.
const (
	releaseNeutral = iota
	releaseCompleted
	releaseFailed
)

// releaseLocked unlinks the job from its worker, clearing the job id before
// the worker turns idle.
func (m *Manager) releaseLocked(job *domain.Job, outcome int) {
	if job.WorkerID == "" {
		return
	}
	if w, ok := m.workers.Get(job.WorkerID); ok && w.JobID == job.ID {
		w.JobID = ""
		switch outcome {
		case releaseCompleted:
			w.Completed++
		case releaseFailed:
			w.Failed++
		}
		w.LastActiveAt = m.clock.Now()
		w.Status = domain.WorkerStatusIdle
		m.busy--
		metrics.WorkersBusy.Set(float64(m.busy))
	}
	job.WorkerID = ""
}
