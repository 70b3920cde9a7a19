package domain

import "time"

// Snapshot is a point-in-time export of all scheduler state.
type Snapshot struct {
	TakenAt  time.Time          `json:"taken_at"`
	Jobs     []*Job             `json:"jobs"`
	Workers  []*WorkerNode      `json:"workers"`
	Sessions []*RecoverySession `json:"sessions"`
}
