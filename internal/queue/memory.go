package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memEntry struct {
	id        string
	task      Task
	deliverAt time.Time
}

// MemoryQueue is an in-process Queue for tests and local mode
type MemoryQueue struct {
	mu      sync.Mutex
	entries []memEntry
}

// NewMemoryQueue creates an empty in-memory queue
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, task Task, opts Options) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := memEntry{
		id:        uuid.NewString(),
		task:      task,
		deliverAt: time.Now().Add(time.Duration(opts.DelaySeconds) * time.Second),
	}
	q.entries = append(q.entries, e)
	sort.Slice(q.entries, func(i, j int) bool { return q.entries[i].deliverAt.Before(q.entries[j].deliverAt) })
	return e.id, nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context, wait time.Duration) (*Task, error) {
	deadline := time.Now().Add(wait)
	for {
		q.mu.Lock()
		if len(q.entries) > 0 && !q.entries[0].deliverAt.After(time.Now()) {
			task := q.entries[0].task
			q.entries = q.entries[1:]
			q.mu.Unlock()
			return &task, nil
		}
		q.mu.Unlock()

		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Len returns the number of pending entries (due or not)
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *MemoryQueue) Close() error { return nil }
