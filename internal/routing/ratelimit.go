package routing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimiter caps notifications per workspace per rolling hour
type RateLimiter interface {
	// Allow reserves one notification slot; false means the cap is hit
	Allow(ctx context.Context, workspaceID string) (bool, error)
}

// slideScript trims expired entries, checks the cap, and records the new
// notification in one atomic step so concurrent workers cannot overshoot.
// The member is timestamp plus a caller-supplied nonce; the script touches
// only KEYS[1] so it stays valid under redis cluster.
var slideScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local cap = tonumber(ARGV[3])
	redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
	local count = redis.call('ZCARD', key)
	if count >= cap then
		return 0
	end
	redis.call('ZADD', key, now, now .. '-' .. ARGV[4])
	redis.call('EXPIRE', key, math.ceil(window / 1000) + 60)
	return 1
`)

// RedisRateLimiter implements the rolling window on a Redis sorted set
type RedisRateLimiter struct {
	client *redis.Client
	cap    int
	window time.Duration
}

func NewRedisRateLimiter(client *redis.Client, cap int) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, cap: cap, window: time.Hour}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, workspaceID string) (bool, error) {
	key := fmt.Sprintf("docdrift:notify_rate:%s", workspaceID)
	res, err := slideScript.Run(ctx, l.client, []string{key},
		time.Now().UnixMilli(), l.window.Milliseconds(), l.cap, uuid.NewString()).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check: %w", err)
	}
	return res == 1, nil
}

// MemoryRateLimiter is the in-process fallback for local mode and tests
type MemoryRateLimiter struct {
	mu     sync.Mutex
	cap    int
	window time.Duration
	sent   map[string][]time.Time
}

func NewMemoryRateLimiter(cap int) *MemoryRateLimiter {
	return &MemoryRateLimiter{cap: cap, window: time.Hour, sent: make(map[string][]time.Time)}
}

func (l *MemoryRateLimiter) Allow(ctx context.Context, workspaceID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-l.window)
	kept := l.sent[workspaceID][:0]
	for _, t := range l.sent[workspaceID] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= l.cap {
		l.sent[workspaceID] = kept
		return false, nil
	}
	l.sent[workspaceID] = append(kept, now)
	return true, nil
}
