package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"kwikflow/internal/metrics"
)

// HandlerFunc executes one job. Returning an error schedules a retry unless the
// error is Permanent.
type HandlerFunc func(ctx context.Context, job Job) error

// Options tunes the worker pool.
type Options struct {
	Workers     int
	MaxAttempts int
	Backoff     time.Duration
	// JobTimeout bounds a single handler invocation. Zero means no limit.
	JobTimeout time.Duration
}

// Dispatcher accepts jobs from request handlers and runs them on a worker pool.
type Dispatcher struct {
	queue   Queue
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewDispatcher builds a dispatcher over queue.
func NewDispatcher(queue Queue, opts Options, logger *slog.Logger, metricRegistry *metrics.Metrics) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	return &Dispatcher{
		queue:    queue,
		opts:     opts,
		logger:   logger.With("component", "outbox"),
		metrics:  metricRegistry,
		now:      time.Now,
		handlers: make(map[string]HandlerFunc),
	}
}

// Register binds a handler to a job kind, replacing any previous one.
func (d *Dispatcher) Register(kind string, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = h
}

// Enqueue serialises payload and queues a new job of the given kind.
func (d *Dispatcher) Enqueue(ctx context.Context, kind string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	job := Job{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    data,
		EnqueuedAt: d.now().UTC(),
	}
	if err := d.queue.Push(ctx, job); err != nil {
		d.count(kind, "enqueue_failed")
		return fmt.Errorf("enqueue %s: %w", kind, err)
	}
	d.count(kind, "enqueued")
	d.logger.Debug("job enqueued", "job_id", job.ID, "kind", kind)
	return nil
}

// Run starts the workers and blocks until ctx is cancelled and all workers have returned.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("outbox workers starting", "workers", d.opts.Workers, "max_attempts", d.opts.MaxAttempts)
	var wg sync.WaitGroup
	for i := 0; i < d.opts.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			d.work(ctx, worker)
		}(i)
	}
	wg.Wait()
	d.logger.Info("outbox workers stopped")
}

func (d *Dispatcher) work(ctx context.Context, worker int) {
	logger := d.logger.With("worker", worker)
	for {
		job, err := d.queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("pop job", "error", err)
			if !sleep(ctx, d.opts.Backoff) {
				return
			}
			continue
		}
		d.process(ctx, logger, job)
	}
}

// process runs the job until it succeeds, fails permanently or exhausts its attempts.
func (d *Dispatcher) process(ctx context.Context, logger *slog.Logger, job Job) {
	d.mu.RLock()
	handler, ok := d.handlers[job.Kind]
	d.mu.RUnlock()

	logger = logger.With("job_id", job.ID, "kind", job.Kind)
	if !ok {
		logger.Error("no handler registered for job kind")
		d.count(job.Kind, "dropped")
		return
	}

	for {
		job.Attempt++
		start := time.Now()
		err := d.invoke(ctx, handler, job)
		if d.metrics != nil {
			d.metrics.OutboxLatency.WithLabelValues(job.Kind).Observe(time.Since(start).Seconds())
		}

		switch {
		case err == nil:
			d.count(job.Kind, "succeeded")
			logger.Info("job completed", "attempt", job.Attempt)
			return
		case IsPermanent(err):
			d.count(job.Kind, "failed")
			logger.Warn("job failed permanently", "attempt", job.Attempt, "error", err)
			return
		case job.Attempt >= d.opts.MaxAttempts:
			d.count(job.Kind, "failed")
			logger.Error("job failed after max attempts", "attempt", job.Attempt, "error", err)
			return
		}

		delay := d.backoff(job.Attempt)
		d.count(job.Kind, "retried")
		logger.Warn("job failed, retrying", "attempt", job.Attempt, "retry_in", delay, "error", err)
		if !sleep(ctx, delay) {
			logger.Warn("shutdown interrupted job retries", "attempt", job.Attempt)
			return
		}
	}
}

func (d *Dispatcher) invoke(ctx context.Context, handler HandlerFunc, job Job) (err error) {
	if d.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.JobTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("handler panic: %v", r))
		}
	}()
	return handler(ctx, job)
}

// backoff doubles the base delay per attempt, capped at one minute.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	delay := d.opts.Backoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= time.Minute {
			return time.Minute
		}
	}
	return delay
}

func (d *Dispatcher) count(kind, status string) {
	if d.metrics != nil {
		d.metrics.OutboxJobs.WithLabelValues(kind, status).Inc()
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
