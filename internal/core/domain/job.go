package domain

import (
	"maps"
	"time"
)

// Priority is the scheduling class of a job.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// PriorityWeights orders pending jobs. Higher weight is dispatched first.
var PriorityWeights = map[Priority]int{
	PriorityUrgent: 100,
	PriorityHigh:   50,
	PriorityNormal: 10,
	PriorityLow:    1,
}

// Weight returns the dispatch weight of p, or 0 when p is unknown.
func (p Priority) Weight() int {
	return PriorityWeights[p]
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	_, ok := PriorityWeights[p]
	return ok
}

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusPreparing JobStatus = "preparing"
	JobStatusRunning   JobStatus = "running"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// AllJobStatuses lists every status, in lifecycle order.
var AllJobStatuses = []JobStatus{
	JobStatusQueued,
	JobStatusPreparing,
	JobStatusRunning,
	JobStatusPaused,
	JobStatusCompleted,
	JobStatusFailed,
	JobStatusCancelled,
}

// Active reports whether the status holds a worker slot.
func (s JobStatus) Active() bool {
	return s == JobStatusPreparing || s == JobStatusRunning
}

// Job is one unit of delivery work.
type Job struct {
	ID            string   `json:"id"`
	ProjectID     string   `json:"project_id"`
	Name          string   `json:"name"`
	TargetName    string   `json:"target_name,omitempty"`
	TargetContact string   `json:"target_contact,omitempty"`
	Priority      Priority `json:"priority"`
	WorkType      string   `json:"work_type"`
	Stages        []string `json:"stages,omitempty"`

	Status JobStatus `json:"status"`
	// Seq breaks ties between jobs enqueued at the same instant.
	Seq uint64 `json:"seq"`

	EnqueuedAt        time.Time     `json:"enqueued_at"`
	StartedAt         time.Time     `json:"started_at,omitzero"`
	CompletedAt       time.Time     `json:"completed_at,omitzero"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
	ActualDuration    time.Duration `json:"actual_duration,omitempty"`

	CurrentStage string `json:"current_stage,omitempty"`
	Progress     int    `json:"progress"`

	RetryCount     int       `json:"retry_count"`
	MaxRetries     int       `json:"max_retries"`
	RetryScheduled bool      `json:"retry_scheduled,omitempty"`
	RetryAt        time.Time `json:"retry_at,omitzero"`

	Failure *Failure `json:"failure,omitempty"`

	WorkerID string `json:"worker_id,omitempty"`
	// Run numbers each dispatch. Worker reports must carry the current one.
	Run uint64 `json:"run,omitempty"`

	// Options is handed to the stage executor untouched. After a restore,
	// numbers in it are json.Number.
	Options map[string]any `json:"options,omitempty"`
	// Outputs is populated only on success.
	Outputs map[string]any `json:"outputs,omitempty"`

	RecoverySessionID string `json:"recovery_session_id,omitempty"`
	AwaitingHuman     bool   `json:"awaiting_human,omitempty"`
	CancelReason      string `json:"cancel_reason,omitempty"`
}

// Clone returns a copy that shares no mutable state with j.
func (j *Job) Clone() *Job {
	c := *j
	c.Stages = append([]string(nil), j.Stages...)
	c.Options = maps.Clone(j.Options)
	c.Outputs = maps.Clone(j.Outputs)
	if j.Failure != nil {
		f := *j.Failure
		c.Failure = &f
	}
	return &c
}

// Terminal reports whether no further automatic transitions will happen.
func (j *Job) Terminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusCancelled:
		return true
	case JobStatusFailed:
		return !j.RetryScheduled
	}
	return false
}

// JobSpec is the caller input for enqueueing.
type JobSpec struct {
	ProjectID     string         `json:"project_id"`
	Name          string         `json:"name"`
	TargetName    string         `json:"target_name,omitempty"`
	TargetContact string         `json:"target_contact,omitempty"`
	Priority      Priority       `json:"priority,omitempty"`
	WorkType      string         `json:"work_type"`
	Stages        []string       `json:"stages,omitempty"`
	MaxRetries    *int           `json:"max_retries,omitempty"`
	Options       map[string]any `json:"options,omitempty"`
}
