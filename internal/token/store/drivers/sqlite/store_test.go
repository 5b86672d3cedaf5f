package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/medisched/tokend/internal/token/domain"
	"github.com/medisched/tokend/internal/token/store"
	"github.com/medisched/tokend/internal/token/store/storetest"
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
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, now func() time.Time) *Store {
	t.Helper()

	s, err := NewStore(":memory:", storetest.MaxPerSubject, now)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return newTestStore(t, nil)
	})
}

func TestLazyExpiryOnRead(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	s := newTestStore(t, clock.Now)

	require.NoError(t, s.RefreshSessions().Put(ctx, storetest.Record("u1", "t1", clock.Now())))

	clock.Advance(8 * 24 * time.Hour)

	_, err := s.RefreshSessions().Get(ctx, "u1", "t1")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.RefreshSessions().Consume(ctx, "u1", "t1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	s := newTestStore(t, clock.Now)

	short := storetest.Record("u1", "short", clock.Now())
	short.ExpiresAt = clock.Now().Add(time.Hour)
	require.NoError(t, s.RefreshSessions().Put(ctx, short))
	require.NoError(t, s.RefreshSessions().Put(ctx, storetest.Record("u1", "long", clock.Now().Add(time.Second))))

	clock.Advance(2 * time.Hour)

	require.NoError(t, s.RefreshSessions().DeleteExpired(ctx))

	live, err := s.RefreshSessions().ListActive(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, live, 1)
	require.Equal(t, "long", live[0].TokenID)

	// Running the sweep again changes nothing.
	require.NoError(t, s.RefreshSessions().DeleteExpired(ctx))
	live, err = s.RefreshSessions().ListActive(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, live, 1)
}

func TestBlacklistExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	s := newTestStore(t, clock.Now)

	require.NoError(t, s.Blacklist().Add(ctx, domain.BlacklistEntry{
		Fingerprint:   "fp-1",
		BlacklistedAt: clock.Now(),
		ExpiresAt:     clock.Now().Add(15 * time.Minute),
	}))

	ok, err := s.Blacklist().Contains(ctx, "fp-1")
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(16 * time.Minute)

	ok, err = s.Blacklist().Contains(ctx, "fp-1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Blacklist().DeleteExpired(ctx))
}

func TestPayloadSurvivesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	rec := storetest.Record("u1", "t1", time.Now())
	rec.Payload.BranchID = "branch-7"
	require.NoError(t, s.RefreshSessions().Put(ctx, rec))

	got, err := s.RefreshSessions().Get(ctx, "u1", "t1")
	require.NoError(t, err)
	require.Equal(t, rec.Payload, got.Payload)
}
