package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one queued background task.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Enqueued time.Time
}

// Handler processes a job. Returned errors are logged; jobs are not retried
// because a failed generation run is simply re-requested by the operator.
type Handler func(context.Context, Job) error

// Config tunes the worker pool.
type Config struct {
	Workers    int
	BufferSize int
	Logger     *zap.Logger
}

// Queue is an in-memory dispatcher backed by a fixed worker pool. Generation
// runs are CPU-bound computations, so one or two workers is usually enough.
type Queue struct {
	name    string
	handler Handler
	logger  *zap.Logger

	jobs    chan Job
	workers int

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New builds a queue for the given handler.
func New(name string, handler Handler, cfg Config) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue{
		name:    name,
		handler: handler,
		logger:  cfg.Logger,
		jobs:    make(chan Job, cfg.BufferSize),
		workers: cfg.Workers,
	}
}

// Start spins up the worker pool. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Info("job queue started", zap.String("queue", q.name), zap.Int("workers", q.workers))
}

// Stop cancels workers and waits for in-flight jobs to finish.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Info("job queue stopped", zap.String("queue", q.name))
}

// Submit enqueues a job without blocking; a full buffer is an error so the
// caller can tell the operator to retry rather than silently queueing forever.
func (q *Queue) Submit(job Job) error {
	q.mu.Lock()
	started := q.started
	ctx := q.ctx
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("queue %s not started", q.name)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case q.jobs <- job:
		return nil
	default:
		return fmt.Errorf("queue %s full", q.name)
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			start := time.Now()
			if err := q.handler(q.ctx, job); err != nil {
				q.logger.Error("job failed",
					zap.String("queue", q.name),
					zap.String("job_id", job.ID),
					zap.String("type", job.Type),
					zap.Error(err),
				)
				continue
			}
			q.logger.Debug("job done",
				zap.String("queue", q.name),
				zap.String("job_id", job.ID),
				zap.Duration("took", time.Since(start)),
			)
		}
	}
}
