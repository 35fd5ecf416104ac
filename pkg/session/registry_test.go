package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/otpgate/pkg/browser/browsertest"
	"github.com/entrhq/otpgate/pkg/login"
	"github.com/entrhq/otpgate/pkg/site"
)

func newSeq(t *testing.T) (*login.Sequencer, *browsertest.FakePage) {
	t.Helper()
	page := browsertest.NewLoginFlow(site.Damancom())
	seq, err := login.New(page, site.Damancom(), login.WithTimings(login.NoDelay()))
	require.NoError(t, err)
	return seq, page
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRegistry_CreateGetEvict(t *testing.T) {
	r := NewRegistry()
	seq, page := newSeq(t)

	e, err := r.Create(seq)
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, "Session started", e.Status())

	got, err := r.Get(e.ID)
	require.NoError(t, err)
	assert.Same(t, e, got)

	require.NoError(t, r.Evict(e.ID))
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 1, page.CloseCount())

	_, err = r.Get(e.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_EvictIsIdempotent(t *testing.T) {
	r := NewRegistry()
	seq, page := newSeq(t)
	e, err := r.Create(seq)
	require.NoError(t, err)

	assert.NoError(t, r.Evict(e.ID))
	assert.NoError(t, r.Evict(e.ID))
	assert.NoError(t, r.Evict("never-existed"))
	assert.Equal(t, 1, page.CloseCount())
}

func TestRegistry_TokensAreUnique(t *testing.T) {
	r := NewRegistry(WithMaxSessions(0))
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		seq, _ := newSeq(t)
		e, err := r.Create(seq)
		require.NoError(t, err)
		assert.False(t, seen[e.ID])
		seen[e.ID] = true
	}
	assert.Equal(t, 20, r.Len())
}

func TestRegistry_MaxSessions(t *testing.T) {
	r := NewRegistry(WithMaxSessions(2))
	for i := 0; i < 2; i++ {
		seq, _ := newSeq(t)
		_, err := r.Create(seq)
		require.NoError(t, err)
	}

	seq, _ := newSeq(t)
	_, err := r.Create(seq)
	assert.ErrorIs(t, err, ErrLimit)

	_, err = r.Create(nil)
	assert.Error(t, err)
}

func TestRegistry_CleanupIdle(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	r := NewRegistry(WithIdleTimeout(time.Minute), WithClock(clock.Now))

	staleSeq, stalePage := newSeq(t)
	stale, err := r.Create(staleSeq)
	require.NoError(t, err)

	busySeq, busyPage := newSeq(t)
	busy, err := r.Create(busySeq)
	require.NoError(t, err)
	require.True(t, busy.TryLock())

	clock.Advance(50 * time.Second)
	freshSeq, _ := newSeq(t)
	fresh, err := r.Create(freshSeq)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	ids := r.CleanupIdle()

	assert.Equal(t, []string{stale.ID}, ids)
	assert.Equal(t, 1, stalePage.CloseCount())
	assert.Equal(t, 0, busyPage.CloseCount())

	_, err = r.Get(fresh.ID)
	assert.NoError(t, err)
	_, err = r.Get(busy.ID)
	assert.NoError(t, err)

	busy.Unlock()
}

func TestRegistry_GetTouches(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	r := NewRegistry(WithIdleTimeout(time.Minute), WithClock(clock.Now))

	seq, _ := newSeq(t)
	e, err := r.Create(seq)
	require.NoError(t, err)

	clock.Advance(45 * time.Second)
	_, err = r.Get(e.ID)
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), e.LastUsedAt())

	clock.Advance(45 * time.Second)
	assert.Empty(t, r.CleanupIdle())
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_CloseAll(t *testing.T) {
	r := NewRegistry()
	var pages []*browsertest.FakePage
	for i := 0; i < 3; i++ {
		seq, page := newSeq(t)
		_, err := r.Create(seq)
		require.NoError(t, err)
		pages = append(pages, page)
	}

	r.CloseAll()
	assert.Equal(t, 0, r.Len())
	for _, p := range pages {
		assert.Equal(t, 1, p.CloseCount())
	}
}

func TestEntry_TryLock(t *testing.T) {
	r := NewRegistry()
	seq, _ := newSeq(t)
	e, err := r.Create(seq)
	require.NoError(t, err)

	require.True(t, e.TryLock())
	assert.False(t, e.TryLock())
	e.Unlock()
	assert.True(t, e.TryLock())
	e.Unlock()
}

func TestRegistry_Sweep(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	r := NewRegistry(WithIdleTimeout(time.Second), WithClock(clock.Now))

	seq, page := newSeq(t)
	e, err := r.Create(seq)
	require.NoError(t, err)
	clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	evicted := make(chan []string, 1)
	go r.Sweep(ctx, 5*time.Millisecond, func(ids []string) {
		evicted <- ids
	})

	select {
	case ids := <-evicted:
		assert.Equal(t, []string{e.ID}, ids)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not evict the idle session")
	}
	assert.Equal(t, 1, page.CloseCount())
}
