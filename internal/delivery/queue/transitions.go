package queue

import (
	"errors"
	"slices"
	"time"

	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/domain"
)

// ErrInvalidTransition is returned when an operation is not legal from the
// job's current status.
var ErrInvalidTransition = errors.New("invalid job transition")

// ValidTransitions defines allowed job status changes.
// Key is the current status, value is the list of valid next statuses.
var ValidTransitions = map[domain.JobStatus][]domain.JobStatus{
	domain.JobStatusQueued: {domain.JobStatusPreparing, domain.JobStatusCancelled},
	domain.JobStatusPreparing: {
		domain.JobStatusRunning,
		domain.JobStatusFailed,
		domain.JobStatusCancelled,
	},
	domain.JobStatusRunning: {
		domain.JobStatusCompleted,
		domain.JobStatusFailed,
		domain.JobStatusPaused,
		domain.JobStatusCancelled,
	},
	domain.JobStatusPaused: {
		domain.JobStatusQueued,
		domain.JobStatusFailed,
		domain.JobStatusCancelled,
	},
	// failed -> queued covers both scheduled and manual retries.
	domain.JobStatusFailed:    {domain.JobStatusQueued, domain.JobStatusCancelled},
	domain.JobStatusCompleted: {},
	domain.JobStatusCancelled: {},
}

// CanTransition checks if a job may move from one status to another.
func CanTransition(from, to domain.JobStatus) bool {
	return slices.Contains(ValidTransitions[from], to)
}

// Transition is a job status change, published to subscribers.
type Transition struct {
	JobID     string
	// Run is the job's dispatch number when the change happened.
	Run       uint64
	From      domain.JobStatus
	To        domain.JobStatus
	Reason    string
	Timestamp time.Time
}
