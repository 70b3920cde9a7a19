package domain

import (
	"slices"
	"time"
)

// WorkerStatus is the availability of a worker node.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusOffline WorkerStatus = "offline"
)

// WorkerNode is one executor slot of the worker pool.
type WorkerNode struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Status       WorkerStatus `json:"status"`
	JobID        string       `json:"job_id,omitempty"`
	Completed    int          `json:"completed"`
	Failed       int          `json:"failed"`
	LastActiveAt time.Time    `json:"last_active_at,omitzero"`
	// Capabilities lists the work types this worker runs. Empty means any.
	Capabilities []string `json:"capabilities,omitempty"`
}

// CanRun reports whether the worker accepts the given work type.
func (w *WorkerNode) CanRun(workType string) bool {
	return len(w.Capabilities) == 0 || slices.Contains(w.Capabilities, workType)
}

// Clone returns a copy of w.
func (w *WorkerNode) Clone() *WorkerNode {
	c := *w
	c.Capabilities = append([]string(nil), w.Capabilities...)
	return &c
}
