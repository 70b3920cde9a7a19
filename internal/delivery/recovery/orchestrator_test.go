package recovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/clock"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/domain"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/infra/notify"
)

// =============================================================================
// Fakes
// =============================================================================

// scriptedExecutor returns queued outcomes per strategy kind.
type scriptedExecutor struct {
	mu       sync.Mutex
	outcomes map[domain.StrategyKind][]outcome
	calls    []domain.StrategyKind
}

type outcome struct {
	result domain.ActionResult
	err    error
}

func newScripted() *scriptedExecutor {
	return &scriptedExecutor{outcomes: make(map[domain.StrategyKind][]outcome)}
}

func (e *scriptedExecutor) on(kind domain.StrategyKind, results ...outcome) *scriptedExecutor {
	e.outcomes[kind] = append(e.outcomes[kind], results...)
	return e
}

func (e *scriptedExecutor) Execute(ctx context.Context, a Action, fc *FaultContext) (domain.ActionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, a.Kind)
	queue := e.outcomes[a.Kind]
	if len(queue) == 0 {
		return domain.ActionResult{}, errors.New("still failing")
	}
	next := queue[0]
	e.outcomes[a.Kind] = queue[1:]
	return next.result, next.err
}

func (e *scriptedExecutor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

var (
	succeed   = outcome{result: domain.ActionResult{Success: true, RetryStage: true}}
	fail      = outcome{err: errors.New("boom")}
	needHuman = outcome{result: domain.ActionResult{NeedsHuman: true}}
)

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

func newTestOrchestrator(catalog Catalog, policy Policy, exec Executor) *Orchestrator {
	clk := clock.NewFake(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	return NewOrchestrator(Config{Policy: policy, Catalog: catalog, Seed: 1}, exec, clk)
}

func networkFault() *FaultContext {
	return &FaultContext{JobID: "job-1", Stage: "deploy", Message: "connection refused"}
}

// =============================================================================
// Tests
// =============================================================================

func TestStartRecovery_SucceedsOnFirstAction(t *testing.T) {
	exec := newScripted().on(domain.StrategyRetry, succeed)
	o := newTestOrchestrator(Catalog{
		domain.ErrorNetwork: {{Kind: domain.StrategyRetry, Name: "retry", Priority: 1, MaxAttempts: 1}},
	}, DefaultPolicy(), exec)

	s, err := o.StartRecovery(context.Background(), networkFault())
	if err != nil {
		t.Fatalf("StartRecovery failed: %v", err)
	}
	if s.Status != domain.SessionSuccess {
		t.Errorf("expected success, got %s", s.Status)
	}
	if s.Category != domain.ErrorNetwork {
		t.Errorf("expected network category, got %s", s.Category)
	}
	if len(s.Attempts) != 1 || !s.Attempts[0].Success || s.Attempts[0].Number != 1 {
		t.Errorf("unexpected attempts: %+v", s.Attempts)
	}
	if s.Result == nil || !s.Result.RetryStage {
		t.Errorf("expected retry-stage result, got %+v", s.Result)
	}
}

func TestStartRecovery_WalksCandidatesByPriority(t *testing.T) {
	exec := newScripted().on(domain.StrategyFallback, succeed)
	o := newTestOrchestrator(Catalog{
		domain.ErrorNetwork: {
			{Kind: domain.StrategyFallback, Priority: 2, MaxAttempts: 1},
			{Kind: domain.StrategyRetryWithBackoff, Priority: 1, MaxAttempts: 2, Delay: time.Second},
		},
	}, DefaultPolicy(), exec)

	s, _ := o.StartRecovery(context.Background(), networkFault())

	if s.Status != domain.SessionSuccess {
		t.Fatalf("expected success, got %s", s.Status)
	}
	want := []domain.StrategyKind{
		domain.StrategyRetryWithBackoff,
		domain.StrategyRetryWithBackoff,
		domain.StrategyFallback,
	}
	if len(exec.calls) != len(want) {
		t.Fatalf("expected %v, got %v", want, exec.calls)
	}
	for i := range want {
		if exec.calls[i] != want[i] {
			t.Errorf("call %d: expected %s, got %s", i, want[i], exec.calls[i])
		}
	}
}

func TestStartRecovery_SameKindEntriesBudgetedSeparately(t *testing.T) {
	exec := newScripted().on(domain.StrategyFallback, fail, fail, succeed)
	o := newTestOrchestrator(Catalog{
		domain.ErrorNetwork: {
			{Kind: domain.StrategyFallback, Name: "primary mirror", Priority: 1, MaxAttempts: 2},
			{Kind: domain.StrategyFallback, Name: "secondary mirror", Priority: 2, MaxAttempts: 1},
		},
	}, DefaultPolicy(), exec)

	s, err := o.StartRecovery(context.Background(), networkFault())
	if err != nil {
		t.Fatalf("StartRecovery failed: %v", err)
	}
	if s.Status != domain.SessionSuccess {
		t.Fatalf("expected success, got %s", s.Status)
	}
	want := []string{"primary mirror", "primary mirror", "secondary mirror"}
	if len(s.Attempts) != len(want) {
		t.Fatalf("expected %d attempts, got %+v", len(want), s.Attempts)
	}
	for i, name := range want {
		if s.Attempts[i].Action != name {
			t.Errorf("attempt %d: expected %q, got %q", i+1, name, s.Attempts[i].Action)
		}
	}
}

func TestStartRecovery_StopsOnEscalation(t *testing.T) {
	exec := newScripted().on(domain.StrategyEscalate, needHuman)
	o := newTestOrchestrator(Catalog{
		domain.ErrorNetwork: {
			{Kind: domain.StrategyEscalate, Priority: 1, MaxAttempts: 1},
			{Kind: domain.StrategyRetry, Priority: 2, MaxAttempts: 1},
		},
	}, DefaultPolicy(), exec)

	s, _ := o.StartRecovery(context.Background(), networkFault())

	if s.Status != domain.SessionEscalated {
		t.Fatalf("expected escalated, got %s", s.Status)
	}
	if !s.HumanRequested || s.HumanRequestedAt.IsZero() {
		t.Error("expected human request to be flagged")
	}
	if exec.callCount() != 1 {
		t.Errorf("expected no candidates after escalation, got %d calls", exec.callCount())
	}
}

func TestStartRecovery_ConfirmationRequiredWithoutAutoFallback(t *testing.T) {
	exec := newScripted().on(domain.StrategyRollback, succeed)
	o := newTestOrchestrator(Catalog{
		domain.ErrorCode: {
			{Kind: domain.StrategyRollback, Priority: 1, MaxAttempts: 3, RequiresConfirmation: true},
		},
	}, Policy{MaxTotalAttempts: 5, AutoFallback: false}, exec)

	s, _ := o.StartRecovery(context.Background(), &FaultContext{JobID: "job-2", Message: "compile error"})

	if s.Status != domain.SessionFailed {
		t.Fatalf("expected failed, got %s", s.Status)
	}
	if exec.callCount() != 0 {
		t.Errorf("expected candidate not to execute, got %d calls", exec.callCount())
	}
	if len(s.Attempts) != 0 {
		t.Errorf("expected no attempts, got %d", len(s.Attempts))
	}
	if s.Result == nil || s.Result.NextAction == "" {
		t.Error("expected a contact-support next action")
	}
}

func TestStartRecovery_RespectsGlobalBudget(t *testing.T) {
	exec := newScripted()
	o := newTestOrchestrator(Catalog{
		domain.ErrorNetwork: {
			{Kind: domain.StrategyRetry, Priority: 1, MaxAttempts: 10},
			{Kind: domain.StrategyFallback, Priority: 2, MaxAttempts: 10},
		},
	}, Policy{MaxTotalAttempts: 3, AutoFallback: true}, exec)

	s, _ := o.StartRecovery(context.Background(), networkFault())

	if s.Status != domain.SessionFailed {
		t.Fatalf("expected failed, got %s", s.Status)
	}
	if len(s.Attempts) != 3 {
		t.Errorf("expected 3 attempts, got %d", len(s.Attempts))
	}
	for _, a := range s.Attempts {
		if a.Strategy != domain.StrategyRetry {
			t.Errorf("expected only retry attempts, got %s", a.Strategy)
		}
		if a.Error == "" {
			t.Error("expected failure text on attempt")
		}
	}
}

func TestStartRecovery_AbortStops(t *testing.T) {
	exec := newScripted().on(domain.StrategyAbort, outcome{result: domain.ActionResult{Abort: true}})
	o := newTestOrchestrator(Catalog{
		domain.ErrorNetwork: {
			{Kind: domain.StrategyAbort, Priority: 1, MaxAttempts: 1},
			{Kind: domain.StrategyRetry, Priority: 2, MaxAttempts: 1},
		},
	}, DefaultPolicy(), exec)

	s, _ := o.StartRecovery(context.Background(), networkFault())
	if s.Status != domain.SessionFailed || exec.callCount() != 1 {
		t.Errorf("expected failed after one call, got %s after %d", s.Status, exec.callCount())
	}
}

func TestStartRecovery_ContextCancelled(t *testing.T) {
	exec := newScripted()
	o := newTestOrchestrator(Catalog{
		domain.ErrorNetwork: {{Kind: domain.StrategyRetry, Priority: 1, MaxAttempts: 3}},
	}, DefaultPolicy(), exec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, _ := o.StartRecovery(ctx, networkFault())

	if s.Status != domain.SessionCancelled {
		t.Errorf("expected cancelled, got %s", s.Status)
	}
}

func TestContinueAfterHumanIntervention(t *testing.T) {
	newEscalated := func(o *Orchestrator) string {
		s, _ := o.StartRecovery(context.Background(), &FaultContext{JobID: "job-3", Message: "permission denied"})
		if s.Status != domain.SessionEscalated {
			t.Fatalf("expected escalated, got %s", s.Status)
		}
		return s.ID
	}
	exec := newScripted().on(domain.StrategyEscalate, needHuman, needHuman)
	o := newTestOrchestrator(DefaultCatalog(), DefaultPolicy(), exec)

	fixedID := newEscalated(o)
	s, err := o.ContinueAfterHumanIntervention(fixedID, HumanDecision{Fixed: true, Notes: "granted IAM role"})
	if err != nil {
		t.Fatalf("ContinueAfterHumanIntervention failed: %v", err)
	}
	if s.Status != domain.SessionSuccess || !s.Result.RetryStage || s.HumanNotes != "granted IAM role" {
		t.Errorf("unexpected session: %+v", s)
	}

	if _, err := o.ContinueAfterHumanIntervention(fixedID, HumanDecision{Fixed: true}); !errors.Is(err, ErrSessionNotEscalated) {
		t.Errorf("expected ErrSessionNotEscalated, got %v", err)
	}

	failedID := newEscalated(o)
	s, _ = o.ContinueAfterHumanIntervention(failedID, HumanDecision{Fixed: false})
	if s.Status != domain.SessionFailed {
		t.Errorf("expected failed, got %s", s.Status)
	}

	if _, err := o.ContinueAfterHumanIntervention("missing", HumanDecision{}); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestCancelForJob(t *testing.T) {
	exec := newScripted().on(domain.StrategyEscalate, needHuman)
	o := newTestOrchestrator(DefaultCatalog(), DefaultPolicy(), exec)

	s, _ := o.StartRecovery(context.Background(), &FaultContext{JobID: "job-4", Message: "403 forbidden"})

	if n := o.CancelForJob("job-4"); n != 1 {
		t.Fatalf("expected 1 cancelled session, got %d", n)
	}
	got, _ := o.Get(s.ID)
	if got.Status != domain.SessionCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}
	if err := o.Cancel(s.ID); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}

func TestSessionsRetainedUntilDiscarded(t *testing.T) {
	exec := newScripted().on(domain.StrategyRetry, succeed)
	o := newTestOrchestrator(DefaultCatalog(), DefaultPolicy(), exec)

	s, _ := o.StartRecovery(context.Background(), &FaultContext{JobID: "job-5", Message: "weird"})
	if len(o.ForJob("job-5")) != 1 {
		t.Fatal("expected session to be retained after completion")
	}
	if err := o.Discard(s.ID); err != nil {
		t.Fatalf("Discard failed: %v", err)
	}
	if len(o.Sessions()) != 0 {
		t.Error("expected no sessions after discard")
	}
}

func TestSubscribe_ReceivesLifecycle(t *testing.T) {
	exec := newScripted().on(domain.StrategyRetry, succeed)
	o := newTestOrchestrator(DefaultCatalog(), DefaultPolicy(), exec)
	ch, unsubscribe := o.Subscribe(8)
	defer unsubscribe()

	o.StartRecovery(context.Background(), &FaultContext{JobID: "job-6", Message: "weird"})

	want := []EventType{EventSessionStarted, EventAttemptFinished, EventSessionFinished}
	for _, w := range want {
		select {
		case ev := <-ch:
			if ev.Type != w {
				t.Errorf("expected %s, got %s", w, ev.Type)
			}
		default:
			t.Fatalf("missing event %s", w)
		}
	}
}

func TestActionExecutor_EscalateNotifies(t *testing.T) {
	n := &recordingNotifier{}
	o := newTestOrchestrator(DefaultCatalog(), DefaultPolicy(), NewActionExecutor(n, "support"))

	s, _ := o.StartRecovery(context.Background(), &FaultContext{
		JobID:   "job-7",
		JobName: "Acme storefront",
		Stage:   "deploy",
		Message: "permission denied",
	})

	if s.Status != domain.SessionEscalated {
		t.Fatalf("expected escalated, got %s", s.Status)
	}
	if len(n.msgs) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(n.msgs))
	}
	if n.msgs[0].Actor != "support" || n.msgs[0].JobID != "job-7" || n.msgs[0].Subject == "" {
		t.Errorf("unexpected notification: %+v", n.msgs[0])
	}
	if s.Result.NextAction != Describe(domain.ErrorPermission).Remediation {
		t.Errorf("expected permission remediation, got %q", s.Result.NextAction)
	}
}

func TestActionExecutor_RetryUsesStageHook(t *testing.T) {
	var overrides []map[string]any
	fc := &FaultContext{
		JobID: "job-8",
		RetryStage: func(ctx context.Context, o map[string]any) error {
			overrides = append(overrides, o)
			return nil
		},
	}
	e := NewActionExecutor(nil, "")

	res, err := e.Execute(context.Background(), Action{Kind: domain.StrategyFallback}, fc)
	if err != nil || !res.Success {
		t.Fatalf("expected fallback success, got %+v %v", res, err)
	}
	if overrides[0]["fallback"] != true {
		t.Errorf("expected fallback override, got %v", overrides[0])
	}

	if _, err := e.Execute(context.Background(), Action{Kind: domain.StrategyRollback}, fc); !errors.Is(err, ErrNoRollback) {
		t.Errorf("expected ErrNoRollback, got %v", err)
	}

	res, _ = e.Execute(context.Background(), Action{Kind: domain.StrategySkip}, fc)
	if !res.SkipToNext || !res.Success {
		t.Errorf("expected skip result, got %+v", res)
	}
}
