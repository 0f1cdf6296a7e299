package outbox

import (
	"context"
	"errors"
	"time"

	"kwikflow/internal/cache"
)

// ErrQueueFull is returned when the in-process buffer cannot take another job.
var ErrQueueFull = errors.New("outbox queue full")

// Queue stores jobs until a worker picks them up.
type Queue interface {
	Push(ctx context.Context, job Job) error
	// Pop blocks until a job is available or ctx is done.
	Pop(ctx context.Context) (Job, error)
}

// MemoryQueue is a bounded in-process queue. Pending jobs are lost on restart.
type MemoryQueue struct {
	ch chan Job
}

// NewMemoryQueue returns a queue holding up to size jobs.
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1
	}
	return &MemoryQueue{ch: make(chan Job, size)}
}

func (q *MemoryQueue) Push(_ context.Context, job Job) error {
	select {
	case q.ch <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Pop(ctx context.Context) (Job, error) {
	select {
	case job := <-q.ch:
		return job, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// RedisQueue keeps jobs in a Redis list so they survive restarts and can be
// shared by several instances.
type RedisQueue struct {
	redis   *cache.Redis
	key     string
	timeout time.Duration
}

// NewRedisQueue returns a queue backed by the Redis list at key.
func NewRedisQueue(redis *cache.Redis, key string) *RedisQueue {
	return &RedisQueue{redis: redis, key: key, timeout: time.Second}
}

func (q *RedisQueue) Push(ctx context.Context, job Job) error {
	return q.redis.PushJSON(ctx, q.key, job)
}

func (q *RedisQueue) Pop(ctx context.Context) (Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Job{}, err
		}
		var job Job
		err := q.redis.PopJSON(ctx, q.key, q.timeout, &job)
		if errors.Is(err, cache.ErrEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return Job{}, ctx.Err()
			}
			return Job{}, err
		}
		return job, nil
	}
}
