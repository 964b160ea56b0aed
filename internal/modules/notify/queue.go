// README: Notification job queue: Redis list (LPUSH/BRPOP) with SETNX dedupe, plus an in-memory variant.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"workshop/internal/types"
)

// Job is one pending customer notification.
type Job struct {
	OrderID    types.ID          `json:"order_id"`
	Kind       string            `json:"kind"`
	Payload    map[string]string `json:"payload"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
}

type Queue interface {
	// Claim reserves key for ttl and reports whether this caller got it.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release drops a claim so the key can be claimed again.
	Release(ctx context.Context, key string) error
	Push(ctx context.Context, job Job) error
	// Pop waits up to timeout and returns nil, nil when nothing arrived.
	Pop(ctx context.Context, timeout time.Duration) (*Job, error)
}

type RedisQueue struct {
	rdb *redis.Client
	key string
}

func NewRedisQueue(rdb *redis.Client, key string) *RedisQueue {
	return &RedisQueue{rdb: rdb, key: key}
}

func (q *RedisQueue) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return q.rdb.SetNX(ctx, q.key+":dedupe:"+key, 1, ttl).Result()
}

func (q *RedisQueue) Release(ctx context.Context, key string) error {
	return q.rdb.Del(ctx, q.key+":dedupe:"+key).Err()
}

func (q *RedisQueue) Push(ctx context.Context, job Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, q.key, raw).Err()
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// BRPOP answers [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of %d elements", len(res))
	}
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("decode notification job: %w", err)
	}
	return &job, nil
}

type MemQueue struct {
	mu      sync.Mutex
	claimed map[string]time.Time
	jobs    chan Job
}

func NewMemQueue(size int) *MemQueue {
	return &MemQueue{claimed: make(map[string]time.Time), jobs: make(chan Job, size)}
}

func (q *MemQueue) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now()
	if exp, ok := q.claimed[key]; ok && now.Before(exp) {
		return false, nil
	}
	for k, exp := range q.claimed {
		if !now.Before(exp) {
			delete(q.claimed, k)
		}
	}
	q.claimed[key] = now.Add(ttl)
	return true, nil
}

func (q *MemQueue) Release(_ context.Context, key string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.claimed, key)
	return nil
}

func (q *MemQueue) Push(ctx context.Context, job Job) error {
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.New("notification queue full")
	}
}

func (q *MemQueue) Pop(ctx context.Context, timeout time.Duration) (*Job, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case job := <-q.jobs:
		return &job, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
