package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("tasks")

// BoltQueue is a single-process durable queue for local mode. Tasks are keyed
// by delivery time so a restart picks up exactly where the process left off.
type BoltQueue struct {
	db *bolt.DB
}

func NewBoltQueue(path string) (*BoltQueue, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create queue dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open queue db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltQueue{db: db}, nil
}

// boltKey sorts tasks by delivery time; the id suffix keeps keys unique for
// tasks due in the same nanosecond.
func boltKey(deliverAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%020d:%s", deliverAt.UnixNano(), id))
}

func (q *BoltQueue) Enqueue(ctx context.Context, task Task, opts Options) (string, error) {
	id := uuid.NewString()
	deliverAt := time.Now().Add(time.Duration(opts.DelaySeconds) * time.Second)
	payload, err := json.Marshal(task)
	if err != nil {
		return "", err
	}
	err = q.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put(boltKey(deliverAt, id), payload)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (q *BoltQueue) Dequeue(ctx context.Context, wait time.Duration) (*Task, error) {
	deadline := time.Now().Add(wait)
	for {
		var task *Task
		err := q.db.Update(func(tx *bolt.Tx) error {
			c := tx.Bucket(boltBucket).Cursor()
			k, v := c.First()
			if k == nil {
				return nil
			}
			due := boltKey(time.Now(), "")
			if string(k[:20]) > string(due[:20]) {
				return nil
			}
			var t Task
			if err := json.Unmarshal(v, &t); err != nil {
				// Unreadable rows are dropped rather than wedging the queue
				return c.Delete()
			}
			task = &t
			return c.Delete()
		})
		if err != nil {
			return nil, err
		}
		if task != nil {
			return task, nil
		}

		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Len counts pending tasks, due or not
func (q *BoltQueue) Len() (int, error) {
	n := 0
	err := q.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(boltBucket).Stats().KeyN
		return nil
	})
	return n, err
}

func (q *BoltQueue) Close() error { return q.db.Close() }
