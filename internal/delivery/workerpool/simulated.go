package workerpool

import (
	"context"
	"log/slog"
	"time"

	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/clock"
)

// SimulatedExecutor stands in for real build and deploy tooling. Each stage
// advances in four steps of StepDelay. A job whose options set "fail_stage"
// fails that stage on its first run with "fail_message", which lets the
// recovery path be exercised end to end.
type SimulatedExecutor struct {
	StepDelay time.Duration
	Clock     clock.Clock
	log       *slog.Logger
}

// NewSimulatedExecutor returns an executor that waits step between progress
// reports.
func NewSimulatedExecutor(step time.Duration, clk clock.Clock) *SimulatedExecutor {
	if clk == nil {
		clk = clock.Real()
	}
	return &SimulatedExecutor{
		StepDelay: step,
		Clock:     clk,
		log:       slog.Default().With("component", "executor"),
	}
}

func (e *SimulatedExecutor) RunStage(
	ctx context.Context,
	req StageRequest,
	progress func(int),
) (StageResult, error) {
	for step := 1; step <= 4; step++ {
		if e.StepDelay > 0 {
			select {
			case <-ctx.Done():
				return StageResult{}, ctx.Err()
			case <-e.Clock.After(e.StepDelay):
			}
		}
		if step == 2 && req.Attempt == 0 && req.Options["fail_stage"] == req.Stage {
			msg, _ := req.Options["fail_message"].(string)
			if msg == "" {
				msg = "simulated failure"
			}
			return StageResult{}, &StageError{Message: msg}
		}
		progress(step * 25)
	}
	e.log.Debug("Stage finished", "job", req.JobID, "stage", req.Stage, "attempt", req.Attempt)
	return StageResult{Outputs: map[string]any{req.Stage: "ok"}}, nil
}

// Rollback has nothing to revert for simulated stages.
func (e *SimulatedExecutor) Rollback(ctx context.Context, req StageRequest) error {
	e.log.Info("Stage rolled back", "job", req.JobID, "stage", req.Stage)
	return nil
}
