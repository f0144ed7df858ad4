package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerDropsStaleResolution(t *testing.T) {
	tr := NewTracker[string]()

	first, firstCtx := tr.Begin(context.Background(), "week-1")
	second, _ := tr.Begin(context.Background(), "week-2")

	assert.Error(t, firstCtx.Err(), "older load must be cancelled")
	assert.False(t, tr.Current(first))
	assert.True(t, tr.Resolve(second, "B"))
	assert.False(t, tr.Resolve(first, "A"))

	snap := tr.Latest()
	assert.Equal(t, "B", snap.Value)
	assert.Equal(t, "week-2", snap.Key)
	assert.Equal(t, second.Generation, snap.Generation)
	assert.False(t, snap.Pending)
	assert.True(t, snap.HasValue)
}

func TestTrackerOutOfOrderCompletion(t *testing.T) {
	tr := NewTracker[int]()
	a, _ := tr.Begin(context.Background(), "a")
	b, _ := tr.Begin(context.Background(), "b")
	c, _ := tr.Begin(context.Background(), "c")

	assert.True(t, tr.Resolve(c, 3))
	assert.False(t, tr.Resolve(a, 1))
	assert.False(t, tr.Resolve(b, 2))
	assert.Equal(t, 3, tr.Latest().Value)
}

func TestTrackerPendingAndAbandon(t *testing.T) {
	tr := NewTracker[int]()
	assert.False(t, tr.Latest().HasValue)

	ticket, ctx := tr.Begin(context.Background(), "x")
	assert.True(t, tr.Latest().Pending)
	assert.True(t, tr.Abandon(ticket))
	assert.Error(t, ctx.Err())
	assert.False(t, tr.Latest().Pending)
	assert.False(t, tr.Latest().HasValue)
}

func TestTrackerCloseInvalidatesTickets(t *testing.T) {
	tr := NewTracker[int]()
	ticket, ctx := tr.Begin(context.Background(), "x")
	tr.Close()
	assert.Error(t, ctx.Err())
	assert.False(t, tr.Resolve(ticket, 1))
}

func TestTrackerConcurrentBegin(t *testing.T) {
	tr := NewTracker[int]()
	var wg sync.WaitGroup
	tickets := make([]Ticket, 20)
	for i := range tickets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tickets[i], _ = tr.Begin(context.Background(), "k")
		}(i)
	}
	wg.Wait()

	resolved := 0
	for i, tk := range tickets {
		if tr.Resolve(tk, i) {
			resolved++
		}
	}
	assert.Equal(t, 1, resolved)
	assert.Equal(t, uint64(20), tr.Latest().Generation)
}

func TestStoreEvictsIdleSessions(t *testing.T) {
	now := time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)
	store := NewStore[int](time.Minute)
	store.now = func() time.Time { return now }

	tr := store.Acquire("s1")
	require.NotNil(t, tr)
	assert.Same(t, tr, store.Acquire("s1"))
	store.Acquire("s2")
	assert.Equal(t, 2, store.Len())

	now = now.Add(45 * time.Second)
	_, ok := store.Get("s1")
	assert.True(t, ok)

	now = now.Add(30 * time.Second)
	assert.Equal(t, 1, store.Evict())
	_, ok = store.Get("s2")
	assert.False(t, ok)
	_, ok = store.Get("s1")
	assert.True(t, ok)

	store.Delete("s1")
	assert.Zero(t, store.Len())
}
