package prompt

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

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
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryStoreTakeOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	id, err := store.Put(ctx, Prompt{Kind: KindSuspiciousResolution, ReportID: 7, Outcome: "denied"}, time.Minute)
	require.NoError(t, err)
	require.True(t, IsID(id))

	got, err := store.Take(ctx, id)
	require.NoError(t, err)
	require.EqualValues(t, 7, got.ReportID)
	require.Equal(t, "denied", got.Outcome)

	_, err = store.Take(ctx, id)
	require.ErrorIs(t, err, ErrExpired)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	store := NewMemoryStore()
	store.WithClock(clock.Now)

	expired, err := store.Put(ctx, Prompt{Kind: KindPlaceholder, Name: "discord"}, time.Minute)
	require.NoError(t, err)
	_, err = store.Put(ctx, Prompt{Kind: KindPlaceholder, Name: "rules"}, 10*time.Minute)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = store.Take(ctx, expired)
	require.ErrorIs(t, err, ErrExpired)
	require.Equal(t, 1, store.Len())

	clock.Advance(10 * time.Minute)
	require.Equal(t, 1, store.Sweep())
	require.Zero(t, store.Len())
}

func TestMemoryStoreUnknownID(t *testing.T) {
	_, err := NewMemoryStore().Take(context.Background(), "prompt:missing")
	require.ErrorIs(t, err, ErrExpired)
	require.False(t, IsID("suspicious_user.1.approved"))
}
