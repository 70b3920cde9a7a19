package workerpool

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/clock"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/domain"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/delivery/queue"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/delivery/recovery"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/infra/notify"
)

// =============================================================================
// Fakes
// =============================================================================

// scriptedExecutor records every stage run and delegates the outcome to fn.
type scriptedExecutor struct {
	mu    sync.Mutex
	calls []StageRequest
	fn    func(ctx context.Context, req StageRequest) error
}

func (e *scriptedExecutor) RunStage(
	ctx context.Context,
	req StageRequest,
	progress func(int),
) (StageResult, error) {
	e.mu.Lock()
	e.calls = append(e.calls, req)
	e.mu.Unlock()

	if e.fn != nil {
		if err := e.fn(ctx, req); err != nil {
			return StageResult{}, err
		}
	}
	progress(100)
	return StageResult{Outputs: map[string]any{req.Stage: req.JobName}}, nil
}

func (e *scriptedExecutor) history() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.calls))
	for i, c := range e.calls {
		out[i] = fmt.Sprintf("%s/%s#%d", c.JobName, c.Stage, c.Attempt)
	}
	return out
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (n *recordingNotifier) Notify(ctx context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

// =============================================================================
// Helpers
// =============================================================================

type harness struct {
	queue    *queue.Manager
	recovery *recovery.Orchestrator
	notifier *recordingNotifier
	runner   *Runner
}

func newHarness(t *testing.T, cfg queue.Config, exec StageExecutor, withRecovery bool, stages ...string) *harness {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	q := queue.NewManager(cfg, clk, nil, nil)
	h := &harness{queue: q, notifier: &recordingNotifier{}}
	if withRecovery {
		h.recovery = recovery.NewOrchestrator(
			recovery.Config{Policy: recovery.DefaultPolicy(), Seed: 1},
			recovery.NewActionExecutor(h.notifier, "support"),
			clk,
		)
	}
	h.runner = NewRunner(q, h.recovery, exec, stages)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.runner.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("runner did not stop")
		}
		q.Close()
	})
	return h
}

func (h *harness) enqueue(t *testing.T, name string, p domain.Priority, opts map[string]any) *domain.Job {
	t.Helper()
	job, err := h.queue.Enqueue(domain.JobSpec{ProjectID: "p-" + name, Name: name, Priority: p, WorkType: "web-app", Options: opts})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return job
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitStatus(t *testing.T, q *queue.Manager, jobID string, want domain.JobStatus) *domain.Job {
	t.Helper()
	var job *domain.Job
	waitFor(t, fmt.Sprintf("job %s to be %s", jobID, want), func() bool {
		j, err := q.Get(jobID)
		if err != nil {
			return false
		}
		job = j
		return j.Status == want
	})
	return job
}

// =============================================================================
// Tests
// =============================================================================

func TestRunner_CompletesAllStages(t *testing.T) {
	exec := &scriptedExecutor{}
	h := newHarness(t, queue.Config{MaxConcurrent: 1}, exec, true, "build", "deploy")
	if _, err := h.queue.RegisterWorker("w1", "builder", nil); err != nil {
		t.Fatalf("register: %v", err)
	}

	job := h.enqueue(t, "site", domain.PriorityNormal, nil)
	done := waitStatus(t, h.queue, job.ID, domain.JobStatusCompleted)

	if done.Progress != 100 {
		t.Errorf("expected progress 100, got %d", done.Progress)
	}
	if done.Outputs["build"] != "site" || done.Outputs["deploy"] != "site" {
		t.Errorf("expected outputs from both stages, got %v", done.Outputs)
	}
	want := []string{"site/build#0", "site/deploy#0"}
	if got := exec.history(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	waitFor(t, "runner to forget the job", func() bool { return len(h.runner.Running()) == 0 })
}

func TestRunner_TimeoutRetriedBeforeNextJob(t *testing.T) {
	var once sync.Once
	exec := &scriptedExecutor{fn: func(ctx context.Context, req StageRequest) error {
		var err error
		if req.JobName == "A" {
			once.Do(func() {
				err = &StageError{Category: domain.FailureTimeout, Message: "build timed out after 600s"}
			})
		}
		return err
	}}
	h := newHarness(t, queue.Config{MaxConcurrent: 1, MaxRetries: 2}, exec, true, "build")
	a := h.enqueue(t, "A", domain.PriorityUrgent, nil)
	b := h.enqueue(t, "B", domain.PriorityNormal, nil)
	if _, err := h.queue.RegisterWorker("w1", "builder", nil); err != nil {
		t.Fatalf("register: %v", err)
	}

	waitStatus(t, h.queue, b.ID, domain.JobStatusCompleted)
	doneA := waitStatus(t, h.queue, a.ID, domain.JobStatusCompleted)

	want := []string{"A/build#0", "A/build#1", "B/build#0"}
	if got := exec.history(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if doneA.RetryCount != 0 {
		t.Errorf("expected the retry to stay inside recovery, got %d job retries", doneA.RetryCount)
	}

	sessions := h.recovery.ForJob(a.ID)
	if len(sessions) != 1 {
		t.Fatalf("expected one session, got %d", len(sessions))
	}
	s := sessions[0]
	if s.Category != domain.ErrorTimeout || s.Status != domain.SessionSuccess {
		t.Errorf("expected successful timeout session, got %s %s", s.Category, s.Status)
	}
	if len(s.Attempts) != 1 || s.Attempts[0].Strategy != domain.StrategyRetryWithBackoff {
		t.Errorf("expected one backoff attempt, got %+v", s.Attempts)
	}
}

func TestRunner_QueueRetryWithoutRecovery(t *testing.T) {
	var once sync.Once
	exec := &scriptedExecutor{fn: func(ctx context.Context, req StageRequest) error {
		var err error
		once.Do(func() { err = errors.New("connection reset by peer") })
		return err
	}}
	h := newHarness(t, queue.Config{MaxConcurrent: 1, MaxRetries: 1}, exec, false, "deploy")
	if _, err := h.queue.RegisterWorker("w1", "deployer", nil); err != nil {
		t.Fatalf("register: %v", err)
	}

	job := h.enqueue(t, "site", domain.PriorityNormal, nil)
	done := waitStatus(t, h.queue, job.ID, domain.JobStatusCompleted)
	if done.RetryCount != 1 {
		t.Errorf("expected one queue retry, got %d", done.RetryCount)
	}
	if got := len(exec.history()); got != 2 {
		t.Errorf("expected 2 runs, got %d", got)
	}
}

func TestRunner_GateBlockedIsNotRecovered(t *testing.T) {
	exec := &scriptedExecutor{fn: func(ctx context.Context, req StageRequest) error {
		return &StageError{Category: domain.FailureGateBlocked, Message: "coverage below threshold"}
	}}
	h := newHarness(t, queue.Config{MaxConcurrent: 1, MaxRetries: 3}, exec, true, "gate")
	if _, err := h.queue.RegisterWorker("w1", "checker", nil); err != nil {
		t.Fatalf("register: %v", err)
	}

	job := h.enqueue(t, "site", domain.PriorityNormal, nil)
	failed := waitStatus(t, h.queue, job.ID, domain.JobStatusFailed)
	if failed.RetryCount != 0 || failed.RetryScheduled {
		t.Errorf("expected no retries, got %d", failed.RetryCount)
	}
	if failed.Failure == nil || failed.Failure.Label == "" || failed.Failure.Remediation == "" {
		t.Errorf("expected labelled failure, got %+v", failed.Failure)
	}
	if n := len(h.recovery.ForJob(job.ID)); n != 0 {
		t.Errorf("expected no recovery sessions, got %d", n)
	}
}

func TestRunner_EscalationPausesAndResumesAtStage(t *testing.T) {
	var once sync.Once
	exec := &scriptedExecutor{fn: func(ctx context.Context, req StageRequest) error {
		var err error
		if req.Stage == "deploy" {
			once.Do(func() { err = &StageError{Message: "permission denied writing to registry"} })
		}
		return err
	}}
	h := newHarness(t, queue.Config{MaxConcurrent: 1}, exec, true, "build", "deploy")
	if _, err := h.queue.RegisterWorker("w1", "builder", nil); err != nil {
		t.Fatalf("register: %v", err)
	}

	job := h.enqueue(t, "site", domain.PriorityNormal, nil)
	paused := waitStatus(t, h.queue, job.ID, domain.JobStatusPaused)
	if !paused.AwaitingHuman || paused.RecoverySessionID == "" {
		t.Fatalf("expected job awaiting a human, got %+v", paused)
	}
	if paused.CurrentStage != "deploy" {
		t.Errorf("expected pause at deploy, got %q", paused.CurrentStage)
	}
	if h.notifier.count() != 1 {
		t.Errorf("expected one escalation notice, got %d", h.notifier.count())
	}
	s, err := h.recovery.Get(paused.RecoverySessionID)
	if err != nil || s.Status != domain.SessionEscalated || s.Category != domain.ErrorPermission {
		t.Fatalf("expected escalated permission session, got %+v (%v)", s, err)
	}

	if _, err := h.queue.Resume(job.ID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	waitStatus(t, h.queue, job.ID, domain.JobStatusCompleted)

	want := []string{"site/build#0", "site/deploy#0", "site/deploy#0"}
	if got := exec.history(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestRunner_CancelAbortsExecutor(t *testing.T) {
	started := make(chan struct{})
	stopped := make(chan struct{})
	exec := &scriptedExecutor{fn: func(ctx context.Context, req StageRequest) error {
		close(started)
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	}}
	h := newHarness(t, queue.Config{MaxConcurrent: 1}, exec, true, "build")
	if _, err := h.queue.RegisterWorker("w1", "builder", nil); err != nil {
		t.Fatalf("register: %v", err)
	}

	job := h.enqueue(t, "site", domain.PriorityNormal, nil)
	<-started
	if _, err := h.queue.Cancel(job.ID, "customer request"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("executor was not cancelled")
	}
	waitFor(t, "runner to release the job", func() bool { return len(h.runner.Running()) == 0 })
	cancelled := waitStatus(t, h.queue, job.ID, domain.JobStatusCancelled)
	if cancelled.Failure != nil {
		t.Errorf("expected no failure on a cancelled job, got %+v", cancelled.Failure)
	}
}

func TestRunner_PauseStopsExecutorBeforeResume(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		peak     int
		calls    int
	)
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	exec := &scriptedExecutor{fn: func(ctx context.Context, req StageRequest) error {
		mu.Lock()
		inFlight++
		peak = max(peak, inFlight)
		calls++
		first := calls == 1
		mu.Unlock()
		defer func() {
			mu.Lock()
			inFlight--
			mu.Unlock()
		}()

		started <- struct{}{}
		if first {
			<-ctx.Done()
			return ctx.Err()
		}
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}}
	executing := func() int {
		mu.Lock()
		defer mu.Unlock()
		return inFlight
	}

	h := newHarness(t, queue.Config{MaxConcurrent: 1}, exec, true, "build")
	if _, err := h.queue.RegisterWorker("w1", "builder", nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	job := h.enqueue(t, "site", domain.PriorityNormal, nil)
	<-started

	if _, err := h.queue.Pause(job.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}
	waitFor(t, "paused executor to stop", func() bool { return executing() == 0 })
	waitFor(t, "runner to release the job", func() bool { return len(h.runner.Running()) == 0 })
	waitStatus(t, h.queue, job.ID, domain.JobStatusPaused)

	if _, err := h.queue.Resume(job.ID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("resumed job was not executed")
	}
	close(release)
	waitStatus(t, h.queue, job.ID, domain.JobStatusCompleted)

	mu.Lock()
	defer mu.Unlock()
	if peak != 1 {
		t.Errorf("expected at most one executor per job, got %d", peak)
	}
	if got, want := exec.history(), []string{"site/build#0", "site/build#0"}; !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		stage string
		err   error
		want  domain.FailureCategory
	}{
		{"build", errors.New("exit status 1"), domain.FailureBuild},
		{"Deploy", errors.New("boom"), domain.FailureDeploy},
		{"package", errors.New("boom"), domain.FailureUnknown},
		{"build", context.DeadlineExceeded, domain.FailureTimeout},
		{"build", &StageError{Category: domain.FailureDependency, Message: "npm ERR!"}, domain.FailureDependency},
		{"test", fmt.Errorf("wrapped: %w", &StageError{Message: "assertion"}), domain.FailureTest},
	}
	for _, tt := range tests {
		got, _, _, _ := describe(tt.stage, tt.err)
		if got != tt.want {
			t.Errorf("describe(%s, %v) = %s, want %s", tt.stage, tt.err, got, tt.want)
		}
	}
}
