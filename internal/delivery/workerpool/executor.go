package workerpool

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/domain"
)

// StageRequest is everything an executor learns about the stage it runs.
type StageRequest struct {
	JobID      string
	JobName    string
	ProjectID  string
	WorkType   string
	Stage      string
	StageIndex int
	StageCount int
	// Attempt counts recovery re-runs of this stage; zero is the first run.
	Attempt int
	// Options are the job options plus any recovery overrides such as
	// "restart" or "fallback".
	Options map[string]any
}

// StageResult is the opaque output of a successful stage.
type StageResult struct {
	Outputs map[string]any
}

// StageExecutor runs one stage of a job. Implementations report progress as
// a percentage of the stage and must return promptly once ctx is done.
type StageExecutor interface {
	RunStage(ctx context.Context, req StageRequest, progress func(percent int)) (StageResult, error)
}

// Rollbacker is implemented by executors that can revert a stage.
type Rollbacker interface {
	Rollback(ctx context.Context, req StageRequest) error
}

// StageError is a stage failure with an optional category hint.
type StageError struct {
	Category domain.FailureCategory
	Code     string
	Message  string
	Detail   string
}

func (e *StageError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// stageFailures maps conventional stage names to job-level categories.
var stageFailures = map[string]domain.FailureCategory{
	"build":  domain.FailureBuild,
	"test":   domain.FailureTest,
	"deploy": domain.FailureDeploy,
	"gate":   domain.FailureGateBlocked,
}

// describe turns any executor error into the parts recovery needs.
func describe(stage string, err error) (domain.FailureCategory, string, string, string) {
	var se *StageError
	if errors.As(err, &se) {
		category := se.Category
		if category == "" {
			category = stageCategory(stage)
		}
		return category, se.Code, se.Message, se.Detail
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.FailureTimeout, "", err.Error(), ""
	}
	return stageCategory(stage), "", err.Error(), ""
}

func stageCategory(stage string) domain.FailureCategory {
	if c, ok := stageFailures[strings.ToLower(stage)]; ok {
		return c
	}
	return domain.FailureUnknown
}

func mergeOptions(base, overrides map[string]any) map[string]any {
	out := maps.Clone(base)
	if out == nil && len(overrides) > 0 {
		out = make(map[string]any, len(overrides))
	}
	maps.Copy(out, overrides)
	return out
}
