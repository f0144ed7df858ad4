package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-portal-api/pkg/jobs"
)

// TaskInvalidateCache purges cached portal views.
const TaskInvalidateCache = "cache.invalidate"

type taskQueue interface {
	Handle(kind string, h jobs.Handler)
	Submit(task jobs.Task) error
}

// Invalidator drops cached portal views after writes. With a queue the purge
// runs in the background and repeated requests coalesce; without one it runs
// inline.
type Invalidator struct {
	cache   *CacheService
	queue   taskQueue
	logger  *zap.Logger
	timeout time.Duration
}

// NewInvalidator wires the purge handler into queue when one is given.
func NewInvalidator(cache *CacheService, queue taskQueue, logger *zap.Logger) *Invalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	inv := &Invalidator{cache: cache, queue: queue, logger: logger, timeout: 10 * time.Second}
	if queue != nil {
		queue.Handle(TaskInvalidateCache, func(ctx context.Context, task jobs.Task) error {
			pattern, _ := task.Payload.(string)
			return inv.purge(ctx, pattern)
		})
	}
	return inv
}

// Invalidate schedules a purge of every cached portal view.
func (i *Invalidator) Invalidate(ctx context.Context) {
	if i == nil || !i.cache.Enabled() {
		return
	}
	pattern := AllViews()
	if i.queue != nil {
		err := i.queue.Submit(jobs.Task{ID: uuid.NewString(), Kind: TaskInvalidateCache, Key: pattern, Payload: pattern})
		if err == nil {
			return
		}
		i.logger.Warn("queue cache purge failed, purging inline", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.timeout)
	defer cancel()
	if err := i.purge(ctx, pattern); err != nil {
		i.logger.Warn("cache purge failed", zap.Error(err))
	}
}

func (i *Invalidator) purge(ctx context.Context, pattern string) error {
	if pattern == "" {
		pattern = AllViews()
	}
	return i.cache.Invalidate(ctx, pattern)
}
