package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/clinic-portal-api/pkg/errors"
)

// stubRedis implements the string commands the repository uses. Calling any
// other command panics through the nil embedded interface.
type stubRedis struct {
	redis.Cmdable
	values map[string]string
	getErr error
}

func (s *stubRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if s.getErr != nil {
		return redis.NewStringResult("", s.getErr)
	}
	v, ok := s.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (s *stubRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	if s.values == nil {
		s.values = map[string]string{}
	}
	s.values[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func TestCacheRepositoryRoundTrip(t *testing.T) {
	stub := &stubRedis{}
	repo := NewCacheRepository(stub, nil)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "portal:weekly:a", map[string]int{"hours": 12}, time.Minute))
	assert.Contains(t, stub.values["portal:weekly:a"], `"v":1`)

	var got map[string]int
	require.NoError(t, repo.Get(ctx, "portal:weekly:a", &got))
	assert.Equal(t, 12, got["hours"])

	err := repo.Get(ctx, "portal:weekly:b", &got)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestCacheRepositoryTreatsOldEntriesAsMisses(t *testing.T) {
	stub := &stubRedis{values: map[string]string{
		"legacy":  `{"hours":12}`,
		"garbage": `not json`,
	}}
	repo := NewCacheRepository(stub, nil)

	var got map[string]int
	assert.ErrorIs(t, repo.Get(context.Background(), "legacy", &got), appErrors.ErrCacheMiss)
	assert.ErrorIs(t, repo.Get(context.Background(), "garbage", &got), appErrors.ErrCacheMiss)
}

func TestCacheRepositoryWrapsBackendErrors(t *testing.T) {
	repo := NewCacheRepository(&stubRedis{getErr: errors.New("connection reset")}, nil)

	var got map[string]int
	err := repo.Get(context.Background(), "portal:x", &got)
	require.Error(t, err)
	assert.False(t, errors.Is(err, appErrors.ErrCacheMiss))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var got map[string]int
	assert.ErrorIs(t, repo.Get(ctx, "k", &got), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "k", 1, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "portal:*"))
}
