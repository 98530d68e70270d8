package queue

import (
	"context"
	"time"
)

// Task names one unit of pipeline work: advance a drift candidate one stage.
type Task struct {
	WorkspaceID string `json:"workspace_id"`
	DriftID     string `json:"drift_id"`
}

// Options control delivery of an enqueued task
type Options struct {
	DelaySeconds int
}

// Queue is the scheduling port. The pipeline enqueues itself whenever a
// stage defers work (next stage, backoff retry, snooze expiry).
type Queue interface {
	// Enqueue schedules a task and returns a message ID
	Enqueue(ctx context.Context, task Task, opts Options) (string, error)
	// Dequeue blocks up to wait for a due task; returns nil when none
	Dequeue(ctx context.Context, wait time.Duration) (*Task, error)
	Close() error
}
