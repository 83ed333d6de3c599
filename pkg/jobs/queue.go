package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned when the buffer has no room; the job is dropped.
	ErrQueueFull = errors.New("queue full")
	// ErrQueueStopped is returned when enqueueing into a queue that is not running.
	ErrQueueStopped = errors.New("queue not running")
)

// Job represents a queued background task.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	Logger     *zap.Logger
	// OnDone is invoked after every handled job with the handler result.
	OnDone func(job Job, err error, took time.Duration)
	// OnDrop is invoked when a job is rejected because the buffer is full.
	OnDrop func(job Job)
}

// Queue is a bounded, fire-and-forget job dispatcher backed by goroutines.
// Enqueue never blocks; a full buffer drops the job. Failed jobs are logged
// and discarded, handlers own their retry policy.
type Queue struct {
	name    string
	handler Handler

	workers int
	logger  *zap.Logger
	onDone  func(Job, error, time.Duration)
	onDrop  func(Job)

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	seq     atomic.Uint64
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
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
		workers: cfg.Workers,
		logger:  cfg.Logger,
		onDone:  cfg.OnDone,
		onDrop:  cfg.OnDrop,
		jobs:    make(chan Job, cfg.BufferSize),
	}
}

// Start begins worker consumption. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i + 1)
	}
	q.started = true
	q.logger.Sugar().Infow("queue started", "queue", q.name, "workers", q.workers, "buffer", cap(q.jobs))
}

// Stop cancels workers and waits for in-flight jobs to return. Jobs still
// buffered are abandoned.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Sugar().Infow("queue stopped", "queue", q.name, "abandoned", len(q.jobs))
}

// Enqueue offers a job to the pool without blocking.
func (q *Queue) Enqueue(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.started {
		return fmt.Errorf("%s: %w", q.name, ErrQueueStopped)
	}
	if job.ID == "" {
		job.ID = fmt.Sprintf("%s-%d", q.name, q.seq.Add(1))
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case q.jobs <- job:
		return nil
	default:
		if q.onDrop != nil {
			q.onDrop(job)
		}
		q.logger.Sugar().Warnw("queue full, job dropped", "queue", q.name, "job_id", job.ID, "type", job.Type)
		return fmt.Errorf("%s: %w", q.name, ErrQueueFull)
	}
}

// Len reports how many jobs are waiting for a worker.
func (q *Queue) Len() int {
	return len(q.jobs)
}

func (q *Queue) worker(workerID int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			q.run(workerID, job)
		}
	}
}

func (q *Queue) run(workerID int, job Job) {
	start := time.Now()
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
		if err != nil {
			q.logger.Sugar().Errorw("job failed", "queue", q.name, "worker", workerID, "job_id", job.ID, "type", job.Type, "error", err)
		}
		if q.onDone != nil {
			q.onDone(job, err, time.Since(start))
		}
	}()
	err = q.handler(q.ctx, job)
}
