// Package queue holds the prioritized job queue and the worker slots that
// execute it. All job and worker mutations happen under one lock so that the
// concurrency cap and the job/worker linkage can never be observed broken.
package queue

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/clock"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/domain"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/events"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/delivery/recovery"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/infra/metrics"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/infra/storage"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/infra/storage/memory"
)

var (
	// ErrJobNotFound is returned for unknown job ids.
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidPriority is returned for priorities outside the known set.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrInvalidJob is returned when a job spec is missing required fields.
	ErrInvalidJob = errors.New("invalid job spec")

	// ErrNotEmpty is returned when restoring into a manager that already has jobs.
	ErrNotEmpty = errors.New("queue is not empty")
)

// Config controls admission and retry behaviour.
type Config struct {
	MaxConcurrent int
	MaxRetries    int
	// RetryDelay is the wait between an automatic retry decision and the job
	// re-entering the queue. Zero re-queues immediately.
	RetryDelay time.Duration
	// Durations overrides the per work type duration estimates.
	Durations map[string]time.Duration
}

// DefaultConfig returns the stock queue settings.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 3,
		MaxRetries:    2,
		RetryDelay:    5 * time.Second,
	}
}

// Dispatch announces that a job was bound to a worker and is ready to run.
type Dispatch struct {
	JobID    string
	WorkerID string
	Run      uint64
	At       time.Time
}

// Filter narrows GetQueue results. Zero fields match everything.
type Filter struct {
	Statuses  []domain.JobStatus
	Priority  domain.Priority
	WorkType  string
	ProjectID string
}

func (f Filter) match(j *domain.Job) bool {
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, j.Status) {
		return false
	}
	if f.Priority != "" && j.Priority != f.Priority {
		return false
	}
	if f.WorkType != "" && j.WorkType != f.WorkType {
		return false
	}
	if f.ProjectID != "" && j.ProjectID != f.ProjectID {
		return false
	}
	return true
}

// Manager owns the job queue and the worker registry.
type Manager struct {
	mu      sync.Mutex
	cfg     Config
	clock   clock.Clock
	jobs    storage.JobRepository
	workers storage.WorkerRepository
	log     *slog.Logger

	seq    uint64
	runs   uint64
	busy   int
	counts map[domain.JobStatus]int
	timers map[string]clock.Timer

	dispatches []Dispatch
	signal     chan struct{}
	events     *events.Broker[Transition]
}

// NewManager creates a manager. Nil repositories fall back to in-memory stores.
func NewManager(
	cfg Config,
	clk clock.Clock,
	jobs storage.JobRepository,
	workers storage.WorkerRepository,
) *Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if clk == nil {
		clk = clock.Real()
	}
	if jobs == nil {
		jobs = memory.NewJobStore()
	}
	if workers == nil {
		workers = memory.NewWorkerStore()
	}
	return &Manager{
		cfg:     cfg,
		clock:   clk,
		jobs:    jobs,
		workers: workers,
		log:     slog.Default().With("component", "queue"),
		counts:  make(map[domain.JobStatus]int),
		timers:  make(map[string]clock.Timer),
		signal:  make(chan struct{}, 1),
		events: events.NewBroker[Transition](func() {
			metrics.EventsDropped.WithLabelValues("queue").Inc()
		}),
	}
}

// MaxConcurrent returns the configured cap on preparing and running jobs.
func (m *Manager) MaxConcurrent() int {
	return m.cfg.MaxConcurrent
}

// Enqueue admits a new job and dispatches it when a slot is free.
func (m *Manager) Enqueue(spec domain.JobSpec) (*domain.Job, error) {
	if strings.TrimSpace(spec.ProjectID) == "" && strings.TrimSpace(spec.Name) == "" {
		return nil, fmt.Errorf("%w: project id or name is required", ErrInvalidJob)
	}
	if spec.Priority == "" {
		spec.Priority = domain.PriorityNormal
	}
	if !spec.Priority.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, spec.Priority)
	}
	maxRetries := m.cfg.MaxRetries
	if spec.MaxRetries != nil {
		maxRetries = max(*spec.MaxRetries, 0)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	job := &domain.Job{
		ID:                uuid.NewString(),
		ProjectID:         spec.ProjectID,
		Name:              spec.Name,
		TargetName:        spec.TargetName,
		TargetContact:     spec.TargetContact,
		Priority:          spec.Priority,
		WorkType:          spec.WorkType,
		Stages:            slices.Clone(spec.Stages),
		Status:            domain.JobStatusQueued,
		Seq:               m.seq,
		EnqueuedAt:        m.clock.Now(),
		EstimatedDuration: m.estimate(spec.WorkType),
		MaxRetries:        maxRetries,
		Options:           spec.Options,
	}
	m.jobs.Put(job.ID, job)
	m.setCount("", domain.JobStatusQueued)
	m.events.Publish(Transition{
		JobID:     job.ID,
		To:        domain.JobStatusQueued,
		Reason:    "enqueued",
		Timestamp: job.EnqueuedAt,
	})
	metrics.JobsEnqueued.WithLabelValues(string(job.Priority), job.WorkType).Inc()
	m.log.Info("Job enqueued",
		"job", job.ID,
		"name", job.Name,
		"priority", job.Priority,
		"work_type", job.WorkType,
	)

	m.dispatchLocked()
	return job.Clone(), nil
}

// Get returns a copy of the job.
func (m *Manager) Get(jobID string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, err := m.getLocked(jobID)
	if err != nil {
		return nil, err
	}
	return job.Clone(), nil
}

// GetQueue returns copies of matching jobs in dispatch order.
func (m *Manager) GetQueue(f Filter) []*domain.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Job
	for _, j := range m.sortedLocked() {
		if f.match(j) {
			out = append(out, j.Clone())
		}
	}
	return out
}

// Next returns the queued job that would be dispatched first, ignoring
// worker availability.
func (m *Manager) Next() (*domain.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.sortedLocked() {
		if j.Status == domain.JobStatusQueued {
			return j.Clone(), true
		}
	}
	return nil, false
}

// Dispatched is signalled whenever new dispatches are available via
// TakeDispatches. It is never closed.
func (m *Manager) Dispatched() <-chan struct{} {
	return m.signal
}

// TakeDispatches drains pending dispatch announcements.
func (m *Manager) TakeDispatches() []Dispatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.dispatches
	m.dispatches = nil
	return out
}

// Subscribe returns a channel of job transitions. Slow subscribers lose
// events instead of blocking the queue.
func (m *Manager) Subscribe(buffer int) (<-chan Transition, func()) {
	return m.events.Subscribe(buffer)
}

// MarkRunning confirms that the worker bound at dispatch has started the job.
func (m *Manager) MarkRunning(jobID, workerID string, run uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.getLocked(jobID)
	if err != nil {
		return err
	}
	if job.Status != domain.JobStatusPreparing {
		return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, jobID, job.Status)
	}
	if job.WorkerID != workerID {
		return fmt.Errorf("%w: %s is held by %q", ErrWorkerMismatch, jobID, job.WorkerID)
	}
	if err := checkRun(job, run); err != nil {
		return err
	}
	job.StartedAt = m.clock.Now()
	return m.transitionLocked(job, domain.JobStatusRunning, "started")
}

// UpdateProgress records the current stage and percent of a running job.
// Progress never moves backwards while the job runs.
func (m *Manager) UpdateProgress(jobID string, run uint64, stage string, percent int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.getLocked(jobID)
	if err != nil {
		return err
	}
	if job.Status != domain.JobStatusRunning {
		return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, jobID, job.Status)
	}
	if err := checkRun(job, run); err != nil {
		return err
	}
	if stage != "" {
		job.CurrentStage = stage
	}
	job.Progress = max(job.Progress, min(max(percent, 0), 100))
	if w, ok := m.workers.Get(job.WorkerID); ok {
		w.LastActiveAt = m.clock.Now()
	}
	return nil
}

// MarkCompleted finishes a running job with its outputs.
func (m *Manager) MarkCompleted(jobID string, run uint64, outputs map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.getLocked(jobID)
	if err != nil {
		return err
	}
	if job.Status != domain.JobStatusRunning {
		return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, jobID, job.Status)
	}
	if err := checkRun(job, run); err != nil {
		return err
	}
	now := m.clock.Now()
	job.CompletedAt = now
	job.ActualDuration = now.Sub(job.StartedAt)
	job.Progress = 100
	job.Outputs = outputs
	job.Failure = nil
	m.releaseLocked(job, releaseCompleted)
	if err := m.transitionLocked(job, domain.JobStatusCompleted, "completed"); err != nil {
		return err
	}
	metrics.JobsFinished.WithLabelValues(string(domain.JobStatusCompleted), "").Inc()
	metrics.JobDuration.WithLabelValues(job.WorkType).Observe(job.ActualDuration.Seconds())
	m.log.Info("Job completed", "job", job.ID, "duration", job.ActualDuration)

	m.dispatchLocked()
	return nil
}

// MarkFailed records a failure of a preparing or running job. Retryable
// failures with budget left schedule a retry; manual cancellations end as
// cancelled; everything else is terminal.
func (m *Manager) MarkFailed(jobID string, run uint64, f domain.Failure) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.getLocked(jobID)
	if err != nil {
		return nil, err
	}
	if !job.Status.Active() {
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, jobID, job.Status)
	}
	if err := checkRun(job, run); err != nil {
		return nil, err
	}
	if f.Category == "" {
		f.Category = domain.FailureUnknown
	}
	describeFailure(&f)
	job.Failure = &f
	m.releaseLocked(job, releaseFailed)

	switch {
	case f.Category == domain.FailureManualCancel:
		m.finishLocked(job)
		job.CancelReason = f.Message
		if err := m.transitionLocked(job, domain.JobStatusCancelled, string(f.Category)); err != nil {
			return nil, err
		}
		metrics.JobsFinished.WithLabelValues(string(domain.JobStatusCancelled), string(f.Category)).Inc()

	case f.Category.Retryable() && job.RetryCount < job.MaxRetries:
		job.RetryCount++
		job.RetryScheduled = true
		job.RetryAt = m.clock.Now().Add(m.cfg.RetryDelay)
		if err := m.transitionLocked(job, domain.JobStatusFailed, "retry scheduled"); err != nil {
			return nil, err
		}
		metrics.JobRetries.WithLabelValues("automatic").Inc()
		m.log.Warn("Job failed, retry scheduled",
			"job", job.ID,
			"category", f.Category,
			"cause", f.Cause,
			"attempt", job.RetryCount,
			"max_retries", job.MaxRetries,
			"delay", m.cfg.RetryDelay,
		)
		if m.cfg.RetryDelay <= 0 {
			m.requeueLocked(job, "retry")
		} else {
			m.scheduleRetryLocked(job)
		}

	default:
		m.finishLocked(job)
		if err := m.transitionLocked(job, domain.JobStatusFailed, string(f.Category)); err != nil {
			return nil, err
		}
		metrics.JobsFinished.WithLabelValues(string(domain.JobStatusFailed), string(f.Category)).Inc()
		m.log.Error("Job failed",
			"job", job.ID,
			"category", f.Category,
			"cause", f.Cause,
			"retries", job.RetryCount,
			"message", f.Message,
		)
	}

	m.dispatchLocked()
	return job.Clone(), nil
}

// FailPermanently ends a preparing, running or paused job as failed without
// consulting the retry budget.
func (m *Manager) FailPermanently(jobID string, f domain.Failure) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.getLocked(jobID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(job.Status, domain.JobStatusFailed) || job.Status == domain.JobStatusFailed {
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, jobID, job.Status)
	}
	if f.Category == "" {
		f.Category = domain.FailureUnknown
	}
	describeFailure(&f)
	job.Failure = &f
	job.AwaitingHuman = false
	m.releaseLocked(job, releaseFailed)
	m.finishLocked(job)
	if err := m.transitionLocked(job, domain.JobStatusFailed, "failed permanently"); err != nil {
		return nil, err
	}
	metrics.JobsFinished.WithLabelValues(string(domain.JobStatusFailed), string(f.Category)).Inc()
	m.log.Error("Job failed permanently", "job", job.ID, "category", f.Category, "message", f.Message)

	m.dispatchLocked()
	return job.Clone(), nil
}

// Cancel stops a job in any non-final state and frees its worker.
func (m *Manager) Cancel(jobID, reason string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.getLocked(jobID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(job.Status, domain.JobStatusCancelled) {
		return nil, fmt.Errorf("%w: %s is already %s", ErrInvalidTransition, jobID, job.Status)
	}
	m.stopRetryLocked(job.ID)
	m.releaseLocked(job, releaseNeutral)
	m.finishLocked(job)
	job.RetryScheduled = false
	job.RetryAt = time.Time{}
	job.AwaitingHuman = false
	job.CancelReason = reason
	if err := m.transitionLocked(job, domain.JobStatusCancelled, reason); err != nil {
		return nil, err
	}
	metrics.JobsFinished.WithLabelValues(string(domain.JobStatusCancelled), string(domain.FailureManualCancel)).Inc()
	m.log.Info("Job cancelled", "job", job.ID, "reason", reason)

	m.dispatchLocked()
	return job.Clone(), nil
}

// Pause suspends a running job and frees its worker.
func (m *Manager) Pause(jobID string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.getLocked(jobID)
	if err != nil {
		return nil, err
	}
	return m.pauseLocked(job, "", "paused")
}

// Escalate pauses a running job while a human looks at recovery session
// sessionID.
func (m *Manager) Escalate(jobID string, run uint64, sessionID string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.getLocked(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == domain.JobStatusRunning {
		if err := checkRun(job, run); err != nil {
			return nil, err
		}
	}
	return m.pauseLocked(job, sessionID, "awaiting human")
}

func (m *Manager) pauseLocked(job *domain.Job, sessionID, reason string) (*domain.Job, error) {
	if job.Status != domain.JobStatusRunning {
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, job.ID, job.Status)
	}
	m.releaseLocked(job, releaseNeutral)
	if sessionID != "" {
		job.RecoverySessionID = sessionID
		job.AwaitingHuman = true
	}
	if err := m.transitionLocked(job, domain.JobStatusPaused, reason); err != nil {
		return nil, err
	}
	m.log.Info("Job paused", "job", job.ID, "stage", job.CurrentStage, "reason", reason)

	m.dispatchLocked()
	return job.Clone(), nil
}

// Resume puts a paused job back into the queue. It keeps its original
// enqueue time and its current stage.
func (m *Manager) Resume(jobID string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.getLocked(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusPaused {
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, jobID, job.Status)
	}
	job.AwaitingHuman = false
	if err := m.transitionLocked(job, domain.JobStatusQueued, "resumed"); err != nil {
		return nil, err
	}
	m.log.Info("Job resumed", "job", job.ID, "stage", job.CurrentStage)

	m.dispatchLocked()
	return job.Clone(), nil
}

// ChangePriority reprioritizes a queued job.
func (m *Manager) ChangePriority(jobID string, p domain.Priority) (*domain.Job, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, p)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.getLocked(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusQueued {
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, jobID, job.Status)
	}
	job.Priority = p
	m.dispatchLocked()
	return job.Clone(), nil
}

// Retry re-queues a job that failed terminally. It counts against the retry
// counter but is not limited by it.
func (m *Manager) Retry(jobID string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.getLocked(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusFailed || job.RetryScheduled {
		return nil, fmt.Errorf("%w: %s is not terminally failed", ErrInvalidTransition, jobID)
	}
	job.RetryCount++
	job.CompletedAt = time.Time{}
	job.ActualDuration = 0
	metrics.JobRetries.WithLabelValues("manual").Inc()
	m.requeueLocked(job, "manual retry")

	m.dispatchLocked()
	return job.Clone(), nil
}

// Cleanup removes final jobs that finished more than retention ago.
func (m *Manager) Cleanup(retention time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.clock.Now().Add(-retention)
	removed := 0
	for _, j := range m.jobs.List() {
		if j.Terminal() && !j.CompletedAt.IsZero() && j.CompletedAt.Before(cutoff) {
			m.jobs.Delete(j.ID)
			m.counts[j.Status]--
			metrics.QueueJobs.WithLabelValues(string(j.Status)).Set(float64(m.counts[j.Status]))
			removed++
		}
	}
	return removed
}

// Close stops pending retry timers.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
}

// dispatchLocked binds the highest-weight queued jobs to idle capable
// workers while slots are free. The running count and the cap are read in
// the same critical section as every bind.
func (m *Manager) dispatchLocked() {
	now := m.clock.Now()
	for m.activeLocked() < m.cfg.MaxConcurrent {
		var picked *domain.Job
		var worker *domain.WorkerNode
		for _, j := range m.sortedLocked() {
			if j.Status != domain.JobStatusQueued {
				continue
			}
			if w := m.idleWorkerLocked(j.WorkType); w != nil {
				picked, worker = j, w
				break
			}
		}
		if picked == nil {
			return
		}
		m.assignLocked(picked, worker)
		m.runs++
		picked.Run = m.runs
		// queued -> preparing is always legal.
		_ = m.transitionLocked(picked, domain.JobStatusPreparing, "dispatched")
		m.dispatches = append(m.dispatches, Dispatch{
			JobID:    picked.ID,
			WorkerID: worker.ID,
			Run:      picked.Run,
			At:       now,
		})
		m.log.Debug("Job dispatched", "job", picked.ID, "worker", worker.ID)
		select {
		case m.signal <- struct{}{}:
		default:
		}
	}
}

func (m *Manager) activeLocked() int {
	return m.counts[domain.JobStatusPreparing] + m.counts[domain.JobStatusRunning]
}

// sortedLocked orders jobs by weight, then enqueue time, then sequence.
func (m *Manager) sortedLocked() []*domain.Job {
	list := m.jobs.List()
	slices.SortFunc(list, func(a, b *domain.Job) int {
		if c := cmp.Compare(b.Priority.Weight(), a.Priority.Weight()); c != 0 {
			return c
		}
		if c := a.EnqueuedAt.Compare(b.EnqueuedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})
	return list
}

func (m *Manager) getLocked(jobID string) (*domain.Job, error) {
	job, ok := m.jobs.Get(jobID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return job, nil
}

func (m *Manager) transitionLocked(job *domain.Job, to domain.JobStatus, reason string) error {
	from := job.Status
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	job.Status = to
	m.setCount(from, to)
	m.events.Publish(Transition{
		JobID:     job.ID,
		Run:       job.Run,
		From:      from,
		To:        to,
		Reason:    reason,
		Timestamp: m.clock.Now(),
	})
	return nil
}

func (m *Manager) setCount(from, to domain.JobStatus) {
	if from != "" {
		m.counts[from]--
		metrics.QueueJobs.WithLabelValues(string(from)).Set(float64(m.counts[from]))
	}
	m.counts[to]++
	metrics.QueueJobs.WithLabelValues(string(to)).Set(float64(m.counts[to]))
}

// finishLocked stamps completion time and duration on a job leaving for good.
func (m *Manager) finishLocked(job *domain.Job) {
	now := m.clock.Now()
	job.CompletedAt = now
	if !job.StartedAt.IsZero() {
		job.ActualDuration = now.Sub(job.StartedAt)
	}
}

// requeueLocked returns a failed job to the queue with its original enqueue
// time, so earlier work keeps its place among equal weights.
func (m *Manager) requeueLocked(job *domain.Job, reason string) {
	job.RetryScheduled = false
	job.RetryAt = time.Time{}
	job.Progress = 0
	job.CurrentStage = ""
	job.StartedAt = time.Time{}
	job.Outputs = nil
	job.Failure = nil
	// failed -> queued is always legal.
	_ = m.transitionLocked(job, domain.JobStatusQueued, reason)
}

func (m *Manager) scheduleRetryLocked(job *domain.Job) {
	id, attempt := job.ID, job.RetryCount
	m.timers[id] = m.clock.AfterFunc(m.cfg.RetryDelay, func() {
		m.fireRetry(id, attempt)
	})
}

func (m *Manager) fireRetry(jobID string, attempt int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.timers, jobID)
	job, ok := m.jobs.Get(jobID)
	if !ok || job.Status != domain.JobStatusFailed || !job.RetryScheduled || job.RetryCount != attempt {
		return
	}
	m.requeueLocked(job, "retry")
	m.dispatchLocked()
}

// checkRun rejects reports from a run that no longer owns the job.
func checkRun(job *domain.Job, run uint64) error {
	if job.Run != run {
		return fmt.Errorf("%w: %s is on run %d, report came from run %d", ErrWorkerMismatch, job.ID, job.Run, run)
	}
	return nil
}

func (m *Manager) stopRetryLocked(jobID string) {
	if t, ok := m.timers[jobID]; ok {
		t.Stop()
		delete(m.timers, jobID)
	}
}

func describeFailure(f *domain.Failure) {
	if f.Cause == "" {
		f.Cause = recovery.Classify("", f.Message, f.Detail)
	}
	desc := recovery.Describe(f.Cause)
	if f.Label == "" {
		f.Label = f.Category.Label()
	}
	if f.Remediation == "" {
		f.Remediation = desc.Remediation
	}
}
