// Package workerpool runs dispatched jobs through their stages on the
// worker slots owned by the queue, handing stage failures to recovery.
package workerpool

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/domain"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/delivery/queue"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/delivery/recovery"
)

// DefaultStages is used for jobs that do not list their own stages.
var DefaultStages = []string{"prepare", "build", "test", "deploy"}

// Runner executes dispatched jobs until its context is cancelled.
type Runner struct {
	queue    *queue.Manager
	recovery *recovery.Orchestrator
	executor StageExecutor
	stages   []string
	log      *slog.Logger

	mu      sync.Mutex
	running map[string]*run
}

type run struct {
	workerID string
	run      uint64
	cancel   context.CancelFunc
}

// NewRunner creates a runner. A nil orchestrator reports every stage
// failure straight to the queue.
func NewRunner(q *queue.Manager, orch *recovery.Orchestrator, exec StageExecutor, stages []string) *Runner {
	if len(stages) == 0 {
		stages = DefaultStages
	}
	return &Runner{
		queue:    q,
		recovery: orch,
		executor: exec,
		stages:   slices.Clone(stages),
		log:      slog.Default().With("component", "workerpool"),
		running:  make(map[string]*run),
	}
}

// Run consumes dispatches and blocks until ctx is done and every started
// job has returned.
func (r *Runner) Run(ctx context.Context) error {
	transitions, unsubscribe := r.queue.Subscribe(256)
	defer unsubscribe()

	g, gctx := errgroup.WithContext(ctx)
	r.launch(gctx, g, r.queue.TakeDispatches())

	for {
		select {
		case <-ctx.Done():
			err := g.Wait()
			r.log.Info("Worker pool stopped")
			return err
		case <-r.queue.Dispatched():
			r.launch(gctx, g, r.queue.TakeDispatches())
		case t := <-transitions:
			// A paused job is re-dispatched on resume, so its old run must stop.
			if t.To == domain.JobStatusCancelled || t.To == domain.JobStatusPaused {
				r.abort(t.JobID, t.Run, t.To)
			}
		}
	}
}

// Running returns the ids of jobs currently executing.
func (r *Runner) Running() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := slices.Collect(maps.Keys(r.running))
	slices.Sort(ids)
	return ids
}

func (r *Runner) launch(ctx context.Context, g *errgroup.Group, dispatches []queue.Dispatch) {
	for _, d := range dispatches {
		runCtx, cancel := context.WithCancel(ctx)
		entry := &run{workerID: d.WorkerID, run: d.Run, cancel: cancel}

		r.mu.Lock()
		if prev, ok := r.running[d.JobID]; ok {
			// A newer dispatch supersedes whatever run is still unwinding.
			prev.cancel()
		}
		r.running[d.JobID] = entry
		r.mu.Unlock()

		g.Go(func() error {
			defer r.forget(d.JobID, entry)
			r.process(runCtx, d, cancel)
			return nil
		})
	}
}

func (r *Runner) forget(jobID string, entry *run) {
	entry.cancel()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[jobID] == entry {
		delete(r.running, jobID)
	}
}

// abort stops the given run of a job. Events for an older run are ignored
// so a late pause cannot kill the dispatch that followed a resume.
func (r *Runner) abort(jobID string, runID uint64, status domain.JobStatus) {
	r.mu.Lock()
	entry, ok := r.running[jobID]
	r.mu.Unlock()
	if ok && entry.run == runID {
		r.log.Info("Aborting job", "job", jobID, "worker", entry.workerID, "run", runID, "status", status)
		entry.cancel()
	}
}

// process walks the job's stages from its current stage onward.
func (r *Runner) process(ctx context.Context, d queue.Dispatch, cancel context.CancelFunc) {
	log := r.log.With("job", d.JobID, "worker", d.WorkerID, "run", d.Run)

	if err := r.queue.MarkRunning(d.JobID, d.WorkerID, d.Run); err != nil {
		log.Warn("Dispatch no longer valid", "error", err)
		return
	}
	job, err := r.queue.Get(d.JobID)
	if err != nil {
		log.Warn("Job vanished", "error", err)
		return
	}

	stages := job.Stages
	if len(stages) == 0 {
		stages = r.stages
	}
	first := max(slices.Index(stages, job.CurrentStage), 0)
	outputs := make(map[string]any)

	for i := first; i < len(stages); i++ {
		req := StageRequest{
			JobID:      job.ID,
			JobName:    job.Name,
			ProjectID:  job.ProjectID,
			WorkType:   job.WorkType,
			Stage:      stages[i],
			StageIndex: i,
			StageCount: len(stages),
			Options:    job.Options,
		}
		progress := r.progress(req, d.Run, cancel)
		progress(0)
		if ctx.Err() != nil {
			return
		}

		log.Debug("Stage started", "stage", req.Stage)
		res, err := r.executor.RunStage(ctx, req, progress)
		if err == nil {
			maps.Copy(outputs, res.Outputs)
			continue
		}
		if ctx.Err() != nil {
			log.Info("Stage interrupted", "stage", req.Stage)
			return
		}
		if !r.recoverStage(ctx, job, d.Run, req, err, outputs, cancel) {
			return
		}
	}

	if err := r.queue.MarkCompleted(job.ID, d.Run, outputs); err != nil {
		log.Warn("Could not complete job", "error", err)
	}
}

// progress reports overall job progress. A rejected report means the job
// left running or moved to another run, so this run is cancelled.
func (r *Runner) progress(req StageRequest, runID uint64, cancel context.CancelFunc) func(int) {
	return func(percent int) {
		percent = min(max(percent, 0), 100)
		overall := (req.StageIndex*100 + percent) / req.StageCount
		if err := r.queue.UpdateProgress(req.JobID, runID, req.Stage, overall); err != nil {
			if errors.Is(err, queue.ErrInvalidTransition) ||
				errors.Is(err, queue.ErrJobNotFound) ||
				errors.Is(err, queue.ErrWorkerMismatch) {
				cancel()
				return
			}
			r.log.Warn("Progress update failed", "job", req.JobID, "error", err)
		}
	}
}

// recoverStage runs a recovery session for a failed stage and applies its
// verdict. It reports whether the stage walk should continue.
func (r *Runner) recoverStage(
	ctx context.Context,
	job *domain.Job,
	runID uint64,
	req StageRequest,
	stageErr error,
	outputs map[string]any,
	cancel context.CancelFunc,
) bool {
	category, code, message, detail := describe(req.Stage, stageErr)
	failure := domain.Failure{Category: category, Message: message, Detail: detail}
	log := r.log.With("job", job.ID, "stage", req.Stage)

	if r.recovery == nil || !category.Retryable() {
		r.fail(job.ID, runID, failure)
		return false
	}

	attempt := 0
	fc := &recovery.FaultContext{
		JobID:   job.ID,
		JobName: job.Name,
		Stage:   req.Stage,
		Code:    code,
		Message: message,
		Detail:  detail,
		RetryStage: func(ctx context.Context, overrides map[string]any) error {
			attempt++
			retry := req
			retry.Attempt = attempt
			retry.Options = mergeOptions(req.Options, overrides)
			res, err := r.executor.RunStage(ctx, retry, r.progress(retry, runID, cancel))
			if err == nil {
				maps.Copy(outputs, res.Outputs)
			}
			return err
		},
	}
	if rb, ok := r.executor.(Rollbacker); ok {
		fc.Rollback = func(ctx context.Context) error { return rb.Rollback(ctx, req) }
	}

	session, err := r.recovery.StartRecovery(ctx, fc)
	if err != nil {
		log.Error("Recovery could not run", "error", err)
		r.fail(job.ID, runID, failure)
		return false
	}
	failure.Cause = session.Category
	failure.SessionID = session.ID

	switch session.Status {
	case domain.SessionSuccess:
		log.Info("Stage recovered", "session", session.ID, "attempts", len(session.Attempts))
		return true
	case domain.SessionEscalated:
		if _, err := r.queue.Escalate(job.ID, runID, session.ID); err != nil {
			log.Warn("Could not pause job for escalation", "error", err)
		}
		return false
	case domain.SessionCancelled:
		return false
	}

	if session.Result != nil {
		failure.Remediation = session.Result.NextAction
	}
	r.fail(job.ID, runID, failure)
	return false
}

func (r *Runner) fail(jobID string, runID uint64, f domain.Failure) {
	if _, err := r.queue.MarkFailed(jobID, runID, f); err != nil {
		r.log.Warn("Could not record failure", "job", jobID, "error", err)
	}
}
