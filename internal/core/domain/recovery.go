package domain

import "time"

// StrategyKind is the kind of recovery action.
type StrategyKind string

const (
	StrategyRetry            StrategyKind = "retry"
	StrategyRetryWithDelay   StrategyKind = "retry_with_delay"
	StrategyRetryWithBackoff StrategyKind = "retry_with_backoff"
	StrategyFallback         StrategyKind = "fallback"
	StrategySkip             StrategyKind = "skip"
	StrategyRollback         StrategyKind = "rollback"
	StrategyRestart          StrategyKind = "restart"
	StrategyEscalate         StrategyKind = "escalate"
	StrategyAbort            StrategyKind = "abort"
)

// SessionStatus is the state of a recovery session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionSuccess   SessionStatus = "success"
	SessionFailed    SessionStatus = "failed"
	SessionEscalated SessionStatus = "escalated"
	SessionCancelled SessionStatus = "cancelled"
)

// ActionResult is what a recovery action tells the caller to do next.
type ActionResult struct {
	Success    bool   `json:"success"`
	RetryStage bool   `json:"retry_stage,omitempty"`
	SkipToNext bool   `json:"skip_to_next,omitempty"`
	NeedsHuman bool   `json:"needs_human,omitempty"`
	Abort      bool   `json:"abort,omitempty"`
	Message    string `json:"message,omitempty"`
	NextAction string `json:"next_action,omitempty"`
}

// RecoveryAttempt is one executed recovery action.
type RecoveryAttempt struct {
	Number      int          `json:"number"`
	Strategy    StrategyKind `json:"strategy"`
	Action      string       `json:"action"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
	Success     bool         `json:"success"`
	Error       string       `json:"error,omitempty"`
	Result      ActionResult `json:"result"`
}

// RecoverySession is one fault-handling episode for a job stage.
type RecoverySession struct {
	ID          string            `json:"id"`
	JobID       string            `json:"job_id"`
	Stage       string            `json:"stage"`
	Category    ErrorCategory     `json:"category"`
	ErrorCode   string            `json:"error_code,omitempty"`
	Message     string            `json:"message"`
	Detail      string            `json:"detail,omitempty"`
	Status      SessionStatus     `json:"status"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at,omitzero"`
	Attempts    []RecoveryAttempt `json:"attempts"`
	Result      *ActionResult     `json:"result,omitempty"`

	HumanRequested   bool      `json:"human_requested,omitempty"`
	HumanRequestedAt time.Time `json:"human_requested_at,omitzero"`
	HumanNotes       string    `json:"human_notes,omitempty"`
}

// Clone returns a copy of s.
func (s *RecoverySession) Clone() *RecoverySession {
	c := *s
	c.Attempts = append([]RecoveryAttempt(nil), s.Attempts...)
	if s.Result != nil {
		r := *s.Result
		c.Result = &r
	}
	return &c
}

// Open reports whether the session can still change without a human.
func (s *RecoverySession) Open() bool {
	return s.Status == SessionActive || s.Status == SessionEscalated
}
