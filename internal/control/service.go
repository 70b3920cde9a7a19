package control

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/domain"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/delivery/queue"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/delivery/recovery"
)

// Service bridges the queue and the recovery orchestrator for callers of
// the control surface.
type Service struct {
	queue    *queue.Manager
	recovery *recovery.Orchestrator
	log      *slog.Logger
}

// NewService creates a delivery service.
func NewService(q *queue.Manager, orch *recovery.Orchestrator) *Service {
	return &Service{
		queue:    q,
		recovery: orch,
		log:      slog.Default().With("component", "service"),
	}
}

func (s *Service) Enqueue(spec domain.JobSpec) (*domain.Job, error) {
	return s.queue.Enqueue(spec)
}

func (s *Service) Job(id string) (*domain.Job, error) {
	return s.queue.Get(id)
}

func (s *Service) Jobs(f queue.Filter) []*domain.Job {
	return s.queue.GetQueue(f)
}

func (s *Service) Stats() queue.Stats {
	return s.queue.GetStats()
}

func (s *Service) EstimatedWait(p domain.Priority) time.Duration {
	return s.queue.GetEstimatedWaitTime(p)
}

func (s *Service) Session(id string) (*domain.RecoverySession, error) {
	return s.recovery.Get(id)
}

// Cancel cancels a job and every open recovery session attached to it.
func (s *Service) Cancel(jobID, reason string) (*domain.Job, error) {
	job, err := s.queue.Cancel(jobID, reason)
	if err != nil {
		return nil, err
	}
	if n := s.recovery.CancelForJob(jobID); n > 0 {
		s.log.Info("Cancelled recovery sessions", "job", jobID, "sessions", n)
	}
	return job, nil
}

// Decide applies a human decision to an escalated session and moves the
// paused job accordingly: fixed resumes it at the paused stage, anything
// else fails it for good.
func (s *Service) Decide(sessionID string, decision recovery.HumanDecision) (*domain.Job, error) {
	sess, err := s.recovery.ContinueAfterHumanIntervention(sessionID, decision)
	if err != nil {
		return nil, err
	}

	if decision.Fixed {
		job, err := s.queue.Resume(sess.JobID)
		if err != nil {
			return nil, fmt.Errorf("resume job %s: %w", sess.JobID, err)
		}
		return job, nil
	}

	f := domain.Failure{
		Category:  domain.FailureUnknown,
		Cause:     sess.Category,
		Message:   sess.Message,
		Detail:    sess.Detail,
		SessionID: sess.ID,
	}
	if sess.Result != nil {
		f.Remediation = sess.Result.NextAction
	}
	if decision.Notes != "" {
		f.Detail = decision.Notes
	}
	job, err := s.queue.FailPermanently(sess.JobID, f)
	if err != nil {
		return nil, fmt.Errorf("fail job %s: %w", sess.JobID, err)
	}
	return job, nil
}

// Snapshot collects the state a checkpoint persists.
func (s *Service) Snapshot() *domain.Snapshot {
	jobs, workers := s.queue.Snapshot()
	return &domain.Snapshot{
		TakenAt:  time.Now().UTC(),
		Jobs:     jobs,
		Workers:  workers,
		Sessions: s.recovery.Sessions(),
	}
}

// Restore rehydrates the queue and the orchestrator from a snapshot.
func (s *Service) Restore(snap *domain.Snapshot) error {
	if err := s.queue.Restore(snap.Jobs, snap.Workers); err != nil {
		return fmt.Errorf("restore queue: %w", err)
	}
	s.recovery.Restore(snap.Sessions)
	return nil
}
