// Package recovery classifies delivery faults and walks a strategy catalog
// to recover from them.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/clock"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/domain"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/events"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/infra/metrics"
)

var (
	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("recovery session not found")

	// ErrSessionNotEscalated is returned when a human decision targets a
	// session that is not waiting for one.
	ErrSessionNotEscalated = errors.New("recovery session is not awaiting a human")

	// ErrSessionClosed is returned when cancelling a finished session.
	ErrSessionClosed = errors.New("recovery session already finished")
)

// Policy bounds the automated part of recovery.
type Policy struct {
	// MaxTotalAttempts caps attempts across all strategies in one session.
	MaxTotalAttempts int
	// AutoFallback allows actions that require confirmation to run unattended.
	AutoFallback bool
}

// DefaultPolicy returns the production policy.
func DefaultPolicy() Policy {
	return Policy{MaxTotalAttempts: 5, AutoFallback: true}
}

// Config holds orchestrator dependencies that have defaults.
type Config struct {
	Policy  Policy
	Catalog Catalog
	Rules   []Rule
	// Seed drives backoff jitter. Zero seeds from the clock.
	Seed uint64
}

// HumanDecision is the outcome of a human looking at an escalated session.
type HumanDecision struct {
	Fixed bool   `json:"fixed"`
	Notes string `json:"notes,omitempty"`
}

// EventType names a recovery event.
type EventType string

const (
	EventSessionStarted  EventType = "session_started"
	EventAttemptFinished EventType = "attempt_finished"
	EventHumanRequested  EventType = "human_requested"
	EventSessionFinished EventType = "session_finished"
)

// Event is published on every observable step of a session.
type Event struct {
	Type      EventType
	SessionID string
	JobID     string
	Category  domain.ErrorCategory
	Status    domain.SessionStatus
	Attempt   *domain.RecoveryAttempt
	At        time.Time
}

// Orchestrator drives recovery sessions.
type Orchestrator struct {
	mu       sync.Mutex
	sessions map[string]*domain.RecoverySession

	classifier *Classifier
	catalog    Catalog
	policy     Policy
	executor   Executor
	backoff    *Backoff
	clock      clock.Clock
	events     *events.Broker[Event]
	log        *slog.Logger
}

// NewOrchestrator creates an orchestrator. A nil clock uses the wall clock.
func NewOrchestrator(cfg Config, executor Executor, clk clock.Clock) *Orchestrator {
	if clk == nil {
		clk = clock.Real()
	}
	if cfg.Catalog == nil {
		cfg.Catalog = DefaultCatalog()
	}
	if cfg.Policy.MaxTotalAttempts <= 0 {
		cfg.Policy.MaxTotalAttempts = DefaultPolicy().MaxTotalAttempts
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(clk.Now().UnixNano())
	}
	return &Orchestrator{
		sessions:   make(map[string]*domain.RecoverySession),
		classifier: NewClassifier(cfg.Rules),
		catalog:    cfg.Catalog,
		policy:     cfg.Policy,
		executor:   executor,
		backoff:    NewBackoff(seed),
		clock:      clk,
		events:     events.NewBroker[Event](func() { metrics.EventsDropped.WithLabelValues("recovery").Inc() }),
		log:        slog.Default().With("component", "recovery"),
	}
}

// Classify exposes the orchestrator's classifier.
func (o *Orchestrator) Classify(code, message, detail string) domain.ErrorCategory {
	return o.classifier.Classify(code, message, detail)
}

// Subscribe returns a bounded stream of recovery events and its cancel func.
func (o *Orchestrator) Subscribe(buffer int) (<-chan Event, func()) {
	return o.events.Subscribe(buffer)
}

// StartRecovery opens a session for the fault and runs the catalog until an
// action succeeds, a human is needed, or candidates run out. It blocks for
// the duration of the attempts and their delays; ctx cancellation cancels
// the session.
func (o *Orchestrator) StartRecovery(ctx context.Context, fc *FaultContext) (*domain.RecoverySession, error) {
	fc.Category = o.classifier.Classify(fc.Code, fc.Message, fc.Detail)
	now := o.clock.Now()
	session := &domain.RecoverySession{
		ID:        uuid.New().String(),
		JobID:     fc.JobID,
		Stage:     fc.Stage,
		Category:  fc.Category,
		ErrorCode: fc.Code,
		Message:   fc.Message,
		Detail:    fc.Detail,
		Status:    domain.SessionActive,
		StartedAt: now,
	}

	o.mu.Lock()
	o.sessions[session.ID] = session
	o.mu.Unlock()

	log := o.log.With("session", session.ID, "job", fc.JobID, "category", fc.Category)
	log.Info("Recovery started", "stage", fc.Stage, "error", fc.Message)
	o.publish(EventSessionStarted, session, nil)

	for _, action := range o.catalog.Candidates(fc.Category) {
		if action.RequiresConfirmation && !o.policy.AutoFallback {
			log.Debug("Skipping action that needs confirmation", "action", action.Name)
			continue
		}
		maxAttempts := max(action.MaxAttempts, 1)

		// Each catalog entry has its own budget, even when kinds repeat.
		for tries := 0; tries < maxAttempts; tries++ {
			done, budgetLeft := o.budget(session.ID)
			if done {
				return o.Get(session.ID)
			}
			if !budgetLeft {
				log.Debug("Global attempt budget exhausted")
				return o.exhaust(session.ID, fc)
			}

			attempt := o.execute(ctx, session.ID, action, fc)
			switch {
			case attempt.Success:
				log.Info("Recovery succeeded", "action", action.Name, "attempt", attempt.Number)
				return o.finish(session.ID, domain.SessionSuccess, attempt.Result)
			case attempt.Result.NeedsHuman:
				log.Warn("Recovery escalated", "action", action.Name)
				return o.escalateSession(session.ID, attempt.Result)
			case attempt.Result.Abort:
				log.Warn("Recovery aborted", "action", action.Name)
				return o.finish(session.ID, domain.SessionFailed, attempt.Result)
			}

			log.Debug("Recovery attempt failed", "action", action.Name, "error", attempt.Error)
			if err := o.wait(ctx, action, tries); err != nil {
				return o.cancelFromContext(session.ID)
			}
		}
	}

	return o.exhaust(session.ID, fc)
}

// budget reports whether the session was closed externally and whether the
// global budget allows another attempt.
func (o *Orchestrator) budget(id string) (bool, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.sessions[id]
	if s == nil || s.Status != domain.SessionActive {
		return true, false
	}
	return false, len(s.Attempts) < o.policy.MaxTotalAttempts
}

func (o *Orchestrator) execute(
	ctx context.Context,
	id string,
	action Action,
	fc *FaultContext,
) domain.RecoveryAttempt {
	started := o.clock.Now()
	result, err := o.executor.Execute(ctx, action, fc)
	attempt := domain.RecoveryAttempt{
		Strategy:    action.Kind,
		Action:      action.Name,
		StartedAt:   started,
		CompletedAt: o.clock.Now(),
		Success:     err == nil && result.Success,
		Result:      result,
	}
	if err != nil {
		attempt.Error = err.Error()
	}

	o.mu.Lock()
	s := o.sessions[id]
	if s != nil {
		attempt.Number = len(s.Attempts) + 1
		s.Attempts = append(s.Attempts, attempt)
	}
	o.mu.Unlock()

	outcome := "failure"
	switch {
	case attempt.Success:
		outcome = "success"
	case result.NeedsHuman:
		outcome = "escalated"
	}
	metrics.RecoveryAttempts.WithLabelValues(string(action.Kind), outcome).Inc()
	if s != nil {
		o.publishAttempt(id, attempt)
	}
	return attempt
}

func (o *Orchestrator) wait(ctx context.Context, action Action, tries int) error {
	var d time.Duration
	switch action.Kind {
	case domain.StrategyRetryWithBackoff:
		d = o.backoff.Delay(action.Delay, tries)
	default:
		d = action.Delay
	}
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-o.clock.After(d):
		return nil
	}
}

func (o *Orchestrator) exhaust(id string, fc *FaultContext) (*domain.RecoverySession, error) {
	return o.finish(id, domain.SessionFailed, domain.ActionResult{
		Message:    "automatic recovery exhausted",
		NextAction: "Contact support: " + Describe(fc.Category).Remediation,
	})
}

func (o *Orchestrator) cancelFromContext(id string) (*domain.RecoverySession, error) {
	return o.finish(id, domain.SessionCancelled, domain.ActionResult{Message: "recovery interrupted"})
}

// finish closes an active session. A session closed concurrently keeps its
// status.
func (o *Orchestrator) finish(
	id string,
	status domain.SessionStatus,
	result domain.ActionResult,
) (*domain.RecoverySession, error) {
	o.mu.Lock()
	s, ok := o.sessions[id]
	if !ok {
		o.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	if s.Status == domain.SessionActive {
		s.Status = status
		s.CompletedAt = o.clock.Now()
		r := result
		s.Result = &r
	}
	c := s.Clone()
	o.mu.Unlock()

	metrics.RecoverySessions.WithLabelValues(string(c.Category), string(c.Status)).Inc()
	o.publish(EventSessionFinished, c, nil)
	return c, nil
}

func (o *Orchestrator) escalateSession(id string, result domain.ActionResult) (*domain.RecoverySession, error) {
	o.mu.Lock()
	s, ok := o.sessions[id]
	if !ok {
		o.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	if s.Status == domain.SessionActive {
		s.Status = domain.SessionEscalated
		s.HumanRequested = true
		s.HumanRequestedAt = o.clock.Now()
		r := result
		s.Result = &r
	}
	c := s.Clone()
	o.mu.Unlock()

	metrics.RecoverySessions.WithLabelValues(string(c.Category), string(c.Status)).Inc()
	o.publish(EventHumanRequested, c, nil)
	return c, nil
}

// ContinueAfterHumanIntervention applies a human decision to an escalated
// session. The decision overrides the catalog: fixed means the stage should
// be retried, otherwise the session fails.
func (o *Orchestrator) ContinueAfterHumanIntervention(
	id string,
	decision HumanDecision,
) (*domain.RecoverySession, error) {
	o.mu.Lock()
	s, ok := o.sessions[id]
	if !ok {
		o.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	if s.Status != domain.SessionEscalated {
		status := s.Status
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: session %s is %s", ErrSessionNotEscalated, id, status)
	}

	s.HumanNotes = decision.Notes
	s.CompletedAt = o.clock.Now()
	if decision.Fixed {
		s.Status = domain.SessionSuccess
		s.Result = &domain.ActionResult{
			Success:    true,
			RetryStage: true,
			Message:    "resolved by human intervention",
		}
	} else {
		s.Status = domain.SessionFailed
		s.Result = &domain.ActionResult{
			Message:    "human intervention could not resolve the fault",
			NextAction: Describe(s.Category).Remediation,
		}
	}
	c := s.Clone()
	o.mu.Unlock()

	o.log.Info("Human decision applied", "session", id, "job", c.JobID, "fixed", decision.Fixed)
	metrics.RecoverySessions.WithLabelValues(string(c.Category), string(c.Status)).Inc()
	o.publish(EventSessionFinished, c, nil)
	return c, nil
}

// Cancel stops an open session. A running StartRecovery notices before its
// next attempt.
func (o *Orchestrator) Cancel(id string) error {
	o.mu.Lock()
	s, ok := o.sessions[id]
	if !ok {
		o.mu.Unlock()
		return ErrSessionNotFound
	}
	if !s.Open() {
		o.mu.Unlock()
		return ErrSessionClosed
	}
	s.Status = domain.SessionCancelled
	s.CompletedAt = o.clock.Now()
	c := s.Clone()
	o.mu.Unlock()

	o.publish(EventSessionFinished, c, nil)
	return nil
}

// CancelForJob cancels every open session of a job and returns how many
// were cancelled.
func (o *Orchestrator) CancelForJob(jobID string) int {
	o.mu.Lock()
	var ids []string
	for id, s := range o.sessions {
		if s.JobID == jobID && s.Open() {
			ids = append(ids, id)
		}
	}
	o.mu.Unlock()

	n := 0
	for _, id := range ids {
		if o.Cancel(id) == nil {
			n++
		}
	}
	return n
}

// Get returns a copy of a session.
func (o *Orchestrator) Get(id string) (*domain.RecoverySession, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Clone(), nil
}

// Sessions returns copies of all sessions ordered by start time.
func (o *Orchestrator) Sessions() []*domain.RecoverySession {
	o.mu.Lock()
	out := make([]*domain.RecoverySession, 0, len(o.sessions))
	for _, s := range o.sessions {
		out = append(out, s.Clone())
	}
	o.mu.Unlock()

	slices.SortFunc(out, func(a, b *domain.RecoverySession) int { return a.StartedAt.Compare(b.StartedAt) })
	return out
}

// ForJob returns the sessions of one job ordered by start time.
func (o *Orchestrator) ForJob(jobID string) []*domain.RecoverySession {
	var out []*domain.RecoverySession
	for _, s := range o.Sessions() {
		if s.JobID == jobID {
			out = append(out, s)
		}
	}
	return out
}

// Discard removes a session. Sessions are kept until discarded explicitly.
func (o *Orchestrator) Discard(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(o.sessions, id)
	return nil
}

// Restore loads sessions from a checkpoint. Sessions that were active when
// the checkpoint was taken lost their driver and are marked cancelled.
func (o *Orchestrator) Restore(sessions []*domain.RecoverySession) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, s := range sessions {
		c := s.Clone()
		if c.Status == domain.SessionActive {
			c.Status = domain.SessionCancelled
			c.CompletedAt = o.clock.Now()
		}
		o.sessions[c.ID] = c
	}
}

func (o *Orchestrator) publish(t EventType, s *domain.RecoverySession, attempt *domain.RecoveryAttempt) {
	o.events.Publish(Event{
		Type:      t,
		SessionID: s.ID,
		JobID:     s.JobID,
		Category:  s.Category,
		Status:    s.Status,
		Attempt:   attempt,
		At:        o.clock.Now(),
	})
}

func (o *Orchestrator) publishAttempt(id string, attempt domain.RecoveryAttempt) {
	s, err := o.Get(id)
	if err != nil {
		return
	}
	o.publish(EventAttemptFinished, s, &attempt)
}
