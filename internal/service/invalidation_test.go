package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-portal-api/pkg/jobs"
)

func (m *memoryCacheRepo) purges() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

func TestInvalidatorPurgesThroughQueue(t *testing.T) {
	repo := &memoryCacheRepo{}
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	queue := jobs.NewQueue("test", jobs.QueueConfig{Workers: 1, RetryDelay: time.Millisecond})
	inv := NewInvalidator(cache, queue, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()

	inv.Invalidate(context.Background())
	require.Eventually(t, func() bool { return len(repo.purges()) >= 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "portal:*", repo.purges()[0])
}

func TestInvalidatorFallsBackInlineWhenQueueIdle(t *testing.T) {
	repo := &memoryCacheRepo{}
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	queue := jobs.NewQueue("idle", jobs.QueueConfig{})
	inv := NewInvalidator(cache, queue, zap.NewNop())

	inv.Invalidate(context.Background())
	assert.Equal(t, []string{"portal:*"}, repo.purges())
}

func TestInvalidatorSkipsDisabledCache(t *testing.T) {
	repo := &memoryCacheRepo{}
	inv := NewInvalidator(NewCacheService(repo, nil, time.Minute, zap.NewNop(), false), nil, zap.NewNop())

	inv.Invalidate(context.Background())
	assert.Empty(t, repo.purges())

	var nilInv *Invalidator
	assert.NotPanics(t, func() { nilInv.Invalidate(context.Background()) })
}
