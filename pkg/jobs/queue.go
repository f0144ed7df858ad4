package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNoHandler is returned when a task kind has no registered handler.
var ErrNoHandler = errors.New("no handler registered")

// Task is a unit of background work. Tasks sharing a non-empty Key coalesce
// while one of them is still waiting in the queue.
type Task struct {
	ID       string
	Kind     string
	Key      string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a task.
type Handler func(context.Context, Task) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue dispatches tasks by kind to a fixed pool of workers.
type Queue struct {
	name string

	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	tasks chan Task
	ctx   context.Context
	stop  context.CancelFunc
	wg    sync.WaitGroup

	mu       sync.Mutex
	handlers map[string]Handler
	pending  map[string]struct{}
	started  bool
}

// NewQueue builds a queue. Handlers are registered with Handle before Start.
func NewQueue(name string, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:       name,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger.With(zap.String("queue", name)),
		tasks:      make(chan Task, cfg.BufferSize),
		handlers:   make(map[string]Handler),
		pending:    make(map[string]struct{}),
	}
}

// Handle registers the handler for a task kind.
func (q *Queue) Handle(kind string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = h
}

// Start launches the workers. Calling it twice has no effect.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.stop = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Info("queue started", zap.Int("workers", q.workers))
}

// Stop cancels the workers and waits for them to exit. Queued tasks are dropped.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.stop()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Info("queue stopped")
}

// Submit queues a task. A task whose Key is already waiting is absorbed by
// the waiting one and Submit returns nil.
func (q *Queue) Submit(task Task) error {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return fmt.Errorf("queue %s not started", q.name)
	}
	if _, ok := q.handlers[task.Kind]; !ok {
		q.mu.Unlock()
		return fmt.Errorf("queue %s: %w for %q", q.name, ErrNoHandler, task.Kind)
	}
	if task.Key != "" {
		if _, waiting := q.pending[task.Key]; waiting {
			q.mu.Unlock()
			return nil
		}
		q.pending[task.Key] = struct{}{}
	}
	ctx := q.ctx
	q.mu.Unlock()

	if task.Enqueued.IsZero() {
		task.Enqueued = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		q.release(task)
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case q.tasks <- task:
		return nil
	}
}

// Pending reports how many keyed tasks are waiting.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case task := <-q.tasks:
			q.release(task)
			q.mu.Lock()
			h := q.handlers[task.Kind]
			q.mu.Unlock()
			if err := h(q.ctx, task); err != nil {
				q.retry(task, err)
			}
		}
	}
}

func (q *Queue) release(task Task) {
	if task.Key == "" {
		return
	}
	q.mu.Lock()
	delete(q.pending, task.Key)
	q.mu.Unlock()
}

func (q *Queue) retry(task Task, err error) {
	task.Attempt++
	fields := []zap.Field{zap.String("task_id", task.ID), zap.String("kind", task.Kind), zap.Int("attempt", task.Attempt), zap.Error(err)}
	if task.Attempt > q.maxRetries {
		q.logger.Error("task exceeded retries", fields...)
		return
	}
	q.logger.Warn("task failed, retrying", fields...)

	delay := q.retryDelay << (task.Attempt - 1)
	go func(t Task) {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
		case <-timer.C:
			if err := q.Submit(t); err != nil {
				q.logger.Error("failed to requeue task", zap.String("task_id", t.ID), zap.Error(err))
			}
		}
	}(task)
}
