// Package storetest runs the behavioral contract of store.Store against any
// driver. Time-dependent behavior (lazy expiry, sweeps) stays in per-driver
// tests because each backend keeps time differently.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/medisched/tokend/internal/token/domain"
	"github.com/medisched/tokend/internal/token/store"
	"github.com/medisched/tokend/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

// MaxPerSubject is the session bound every driver under test is built with.
const MaxPerSubject = 5

// Factory builds a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Record builds a live refresh record expiring well in the future.
func Record(subjectID, tokenID string, createdAt time.Time) domain.RefreshRecord {
	return domain.RefreshRecord{
		SubjectID: subjectID,
		TokenID:   tokenID,
		Payload: jwtx.Payload{
			SubjectID:   subjectID,
			SubjectKind: jwtx.SubjectPatient,
			Role:        "patient",
			Email:       subjectID + "@example.com",
			ClinicID:    "clinic-1",
		},
		DeviceLabel: "test-device",
		CreatedAt:   createdAt,
		ExpiresAt:   createdAt.Add(7 * 24 * time.Hour),
	}
}

// Run exercises the driver-independent store contract.
func Run(t *testing.T, factory Factory) {
	t.Helper()
	ctx := context.Background()

	t.Run("put then get round-trips", func(t *testing.T) {
		s := factory(t)
		rec := Record("u1", "t1", time.Now())
		require.NoError(t, s.RefreshSessions().Put(ctx, rec))

		got, err := s.RefreshSessions().Get(ctx, "u1", "t1")
		require.NoError(t, err)
		require.Equal(t, rec.TokenID, got.TokenID)
		require.Equal(t, rec.Payload, got.Payload)
		require.Equal(t, rec.DeviceLabel, got.DeviceLabel)
	})

	t.Run("get unknown returns not found", func(t *testing.T) {
		s := factory(t)
		_, err := s.RefreshSessions().Get(ctx, "u1", "missing")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("consume is single-use", func(t *testing.T) {
		s := factory(t)
		require.NoError(t, s.RefreshSessions().Put(ctx, Record("u1", "t1", time.Now())))

		_, err := s.RefreshSessions().Consume(ctx, "u1", "t1")
		require.NoError(t, err)

		_, err = s.RefreshSessions().Consume(ctx, "u1", "t1")
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.RefreshSessions().Get(ctx, "u1", "t1")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("concurrent consume admits exactly one winner", func(t *testing.T) {
		s := factory(t)
		require.NoError(t, s.RefreshSessions().Put(ctx, Record("u1", "t1", time.Now())))

		const racers = 16
		var wg sync.WaitGroup
		results := make(chan error, racers)
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.RefreshSessions().Consume(ctx, "u1", "t1")
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		var wins int
		for err := range results {
			if err == nil {
				wins++
			} else {
				require.ErrorIs(t, err, store.ErrNotFound)
			}
		}
		require.Equal(t, 1, wins)
	})

	t.Run("eviction drops oldest at capacity", func(t *testing.T) {
		s := factory(t)
		base := time.Now()
		for i := 0; i < MaxPerSubject+1; i++ {
			rec := Record("u1", fmt.Sprintf("t%d", i), base.Add(time.Duration(i)*time.Second))
			require.NoError(t, s.RefreshSessions().Put(ctx, rec))
		}

		// The first-issued record is gone, all later ones survive.
		_, err := s.RefreshSessions().Get(ctx, "u1", "t0")
		require.ErrorIs(t, err, store.ErrNotFound)
		for i := 1; i <= MaxPerSubject; i++ {
			_, err := s.RefreshSessions().Get(ctx, "u1", fmt.Sprintf("t%d", i))
			require.NoError(t, err)
		}

		live, err := s.RefreshSessions().ListActive(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, live, MaxPerSubject)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		s := factory(t)
		require.NoError(t, s.RefreshSessions().Put(ctx, Record("u1", "t1", time.Now())))
		require.NoError(t, s.RefreshSessions().Delete(ctx, "u1", "t1"))
		require.NoError(t, s.RefreshSessions().Delete(ctx, "u1", "t1"))
		require.NoError(t, s.RefreshSessions().Delete(ctx, "u1", "never-existed"))
	})

	t.Run("delete all clears only that subject", func(t *testing.T) {
		s := factory(t)
		require.NoError(t, s.RefreshSessions().Put(ctx, Record("u1", "t1", time.Now())))
		require.NoError(t, s.RefreshSessions().Put(ctx, Record("u1", "t2", time.Now())))
		require.NoError(t, s.RefreshSessions().Put(ctx, Record("u2", "t3", time.Now())))

		require.NoError(t, s.RefreshSessions().DeleteAll(ctx, "u1"))

		live, err := s.RefreshSessions().ListActive(ctx, "u1")
		require.NoError(t, err)
		require.Empty(t, live)

		_, err = s.RefreshSessions().Get(ctx, "u2", "t3")
		require.NoError(t, err)
	})

	t.Run("list active preserves insertion order", func(t *testing.T) {
		s := factory(t)
		base := time.Now()
		for i := 0; i < 3; i++ {
			rec := Record("u1", fmt.Sprintf("t%d", i), base.Add(time.Duration(i)*time.Second))
			require.NoError(t, s.RefreshSessions().Put(ctx, rec))
		}

		live, err := s.RefreshSessions().ListActive(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, live, 3)
		for i, rec := range live {
			require.Equal(t, fmt.Sprintf("t%d", i), rec.TokenID)
		}
	})

	t.Run("blacklist add and contains", func(t *testing.T) {
		s := factory(t)
		now := time.Now()
		e := domain.BlacklistEntry{
			Fingerprint:   "fp-1",
			BlacklistedAt: now,
			ExpiresAt:     now.Add(15 * time.Minute),
		}
		require.NoError(t, s.Blacklist().Add(ctx, e))

		ok, err := s.Blacklist().Contains(ctx, "fp-1")
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = s.Blacklist().Contains(ctx, "fp-unknown")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("ping succeeds", func(t *testing.T) {
		s := factory(t)
		require.NoError(t, s.Ping(ctx))
	})
}
