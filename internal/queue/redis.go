package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	queueKey = "docdrift:queue"
)

// RedisQueue implements Queue on a Redis sorted set scored by delivery time.
// Delayed tasks simply carry a future score; Dequeue only pops due members.
type RedisQueue struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisQueue connects to Redis and verifies connectivity
func NewRedisQueue(ctx context.Context, host string, port int, password string) (*RedisQueue, error) {
	if host == "" {
		return nil, fmt.Errorf("redis host missing")
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	logger := slog.Default().With("component", "queue")
	logger.Info("redis queue connected", "addr", addr)

	return &RedisQueue{client: client, logger: logger}, nil
}

type envelope struct {
	MessageID string `json:"message_id"`
	Task      Task   `json:"task"`
}

// Enqueue schedules a task, optionally delayed
func (q *RedisQueue) Enqueue(ctx context.Context, task Task, opts Options) (string, error) {
	deliverAt := time.Now()
	if opts.DelaySeconds > 0 {
		deliverAt = deliverAt.Add(time.Duration(opts.DelaySeconds) * time.Second)
	}

	env := envelope{MessageID: uuid.NewString(), Task: task}
	payload, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal task: %w", err)
	}

	err = q.client.ZAdd(ctx, queueKey, redis.Z{
		Score:  float64(deliverAt.UnixMilli()),
		Member: payload,
	}).Err()
	if err != nil {
		return "", fmt.Errorf("enqueue task: %w", err)
	}

	q.logger.Debug("task enqueued",
		"workspace_id", task.WorkspaceID,
		"drift_id", task.DriftID,
		"delay_seconds", opts.DelaySeconds,
	)
	return env.MessageID, nil
}

// popDueScript atomically pops the earliest member whose score is due.
// Check and remove must be one operation or two workers would double-claim.
var popDueScript = redis.NewScript(`
	local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
	if #due == 0 then
		return false
	end
	redis.call('ZREM', KEYS[1], due[1])
	return due[1]
`)

// Dequeue polls for a due task, blocking up to wait
func (q *RedisQueue) Dequeue(ctx context.Context, wait time.Duration) (*Task, error) {
	deadline := time.Now().Add(wait)
	for {
		now := time.Now()
		res, err := popDueScript.Run(ctx, q.client, []string{queueKey}, now.UnixMilli()).Result()
		if err != nil && err != redis.Nil {
			return nil, fmt.Errorf("dequeue task: %w", err)
		}
		if err == nil {
			payload, ok := res.(string)
			if !ok {
				return nil, fmt.Errorf("dequeue task: unexpected payload type %T", res)
			}
			var env envelope
			if err := json.Unmarshal([]byte(payload), &env); err != nil {
				return nil, fmt.Errorf("unmarshal task: %w", err)
			}
			return &env.Task, nil
		}

		if now.After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

// Close closes the Redis client
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
