package recovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/domain"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/infra/notify"
)

// ErrNoRollback is returned by the rollback action when the stage has no
// rollback hook.
var ErrNoRollback = errors.New("rollback not available")

// FaultContext describes the failure being recovered and the hooks an
// action may use to act on it.
type FaultContext struct {
	JobID    string
	JobName  string
	Stage    string
	Code     string
	Message  string
	Detail   string
	Category domain.ErrorCategory

	// RetryStage re-runs the failed stage with extra executor options.
	RetryStage func(ctx context.Context, overrides map[string]any) error
	// Rollback reverts the stage's side effects. Optional.
	Rollback func(ctx context.Context) error
}

// Executor runs a single recovery action.
type Executor interface {
	Execute(ctx context.Context, action Action, fc *FaultContext) (domain.ActionResult, error)
}

// ActionFunc implements one strategy kind.
type ActionFunc func(ctx context.Context, action Action, fc *FaultContext) (domain.ActionResult, error)

// ActionExecutor dispatches actions to per-kind handlers.
type ActionExecutor struct {
	handlers map[domain.StrategyKind]ActionFunc
	notifier notify.Notifier
	support  string
}

// NewActionExecutor wires the built-in handlers. Escalations are sent to
// supportActor through notifier.
func NewActionExecutor(notifier notify.Notifier, supportActor string) *ActionExecutor {
	e := &ActionExecutor{
		handlers: make(map[domain.StrategyKind]ActionFunc),
		notifier: notifier,
		support:  supportActor,
	}
	e.handlers[domain.StrategyRetry] = retryStage(nil)
	e.handlers[domain.StrategyRetryWithDelay] = retryStage(nil)
	e.handlers[domain.StrategyRetryWithBackoff] = retryStage(nil)
	e.handlers[domain.StrategyRestart] = retryStage(map[string]any{"restart": true})
	e.handlers[domain.StrategyFallback] = retryStage(map[string]any{"fallback": true})
	e.handlers[domain.StrategySkip] = skipStage
	e.handlers[domain.StrategyRollback] = rollbackStage
	e.handlers[domain.StrategyEscalate] = e.escalate
	e.handlers[domain.StrategyAbort] = abort
	return e
}

// Register replaces the handler for kind.
func (e *ActionExecutor) Register(kind domain.StrategyKind, fn ActionFunc) {
	e.handlers[kind] = fn
}

func (e *ActionExecutor) Execute(
	ctx context.Context,
	action Action,
	fc *FaultContext,
) (domain.ActionResult, error) {
	fn, ok := e.handlers[action.Kind]
	if !ok {
		return domain.ActionResult{}, fmt.Errorf("no handler for strategy %s", action.Kind)
	}
	return fn(ctx, action, fc)
}

func retryStage(overrides map[string]any) ActionFunc {
	return func(ctx context.Context, action Action, fc *FaultContext) (domain.ActionResult, error) {
		if fc.RetryStage == nil {
			return domain.ActionResult{}, errors.New("stage cannot be retried")
		}
		if err := fc.RetryStage(ctx, overrides); err != nil {
			return domain.ActionResult{Message: err.Error()}, err
		}
		return domain.ActionResult{
			Success:    true,
			RetryStage: true,
			Message:    fmt.Sprintf("%s succeeded", action.Name),
		}, nil
	}
}

func skipStage(ctx context.Context, action Action, fc *FaultContext) (domain.ActionResult, error) {
	return domain.ActionResult{
		Success:    true,
		SkipToNext: true,
		Message:    fmt.Sprintf("stage %s skipped", fc.Stage),
	}, nil
}

func rollbackStage(ctx context.Context, action Action, fc *FaultContext) (domain.ActionResult, error) {
	if fc.Rollback == nil {
		return domain.ActionResult{}, ErrNoRollback
	}
	if err := fc.Rollback(ctx); err != nil {
		return domain.ActionResult{Message: err.Error()}, fmt.Errorf("rollback: %w", err)
	}
	return retryStage(nil)(ctx, action, fc)
}

func abort(ctx context.Context, action Action, fc *FaultContext) (domain.ActionResult, error) {
	return domain.ActionResult{
		Abort:      true,
		Message:    "recovery aborted",
		NextAction: Describe(fc.Category).Remediation,
	}, nil
}

func (e *ActionExecutor) escalate(
	ctx context.Context,
	action Action,
	fc *FaultContext,
) (domain.ActionResult, error) {
	desc := Describe(fc.Category)
	result := domain.ActionResult{
		NeedsHuman: true,
		Message:    "human assistance requested",
		NextAction: desc.Remediation,
	}
	if e.notifier == nil {
		return result, nil
	}

	msg := notify.Message{
		Actor:   e.support,
		Channel: notify.ChannelEmail,
		Subject: fmt.Sprintf("[delivery] %s: %s needs attention", desc.Label, jobLabel(fc)),
		Body: fmt.Sprintf(
			"Job %s failed at stage %q.\nCategory: %s\nError: %s\nSuggested action: %s",
			fc.JobID, fc.Stage, desc.Label, fc.Message, desc.Remediation,
		),
		JobID: fc.JobID,
	}
	// The escalation stands even if the message could not be delivered.
	if err := e.notifier.Notify(ctx, msg); err != nil {
		result.Message = fmt.Sprintf("human assistance requested (notification failed: %v)", err)
	}
	return result, nil
}

func jobLabel(fc *FaultContext) string {
	if fc.JobName != "" {
		return fc.JobName
	}
	return fc.JobID
}
