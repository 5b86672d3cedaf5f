// Package store defines the persistence interfaces for the token lifecycle.
// Concrete drivers (memory, redis, sqlite) implement them; services depend
// only on the interfaces so the backing store can move to a networked cache
// without protocol change.
package store

import (
	"context"
	"errors"

	"github.com/medisched/tokend/internal/token/domain"
)

// ErrNotFound is returned when a record does not exist or has already been
// consumed, revoked, or expired. Callers must not be able to tell which.
var ErrNotFound = errors.New("store: not found")

// Store is the root data access interface.
type Store interface {
	RefreshSessions() RefreshSessions
	Blacklist() Blacklist

	// Ping verifies the backing store is reachable (readiness checks).
	Ping(ctx context.Context) error

	// Close releases underlying resources.
	Close() error
}

// RefreshSessions holds the per-subject bounded collection of live refresh
// token records. All mutations must be atomic with respect to other
// mutations on the same (subjectID, tokenID) key.
type RefreshSessions interface {
	// Put inserts a record. If the subject already holds the maximum number
	// of live records, the single oldest (by insertion order) is evicted
	// first, regardless of its remaining TTL.
	Put(ctx context.Context, rec domain.RefreshRecord) error

	// Get returns the record, or ErrNotFound if absent or expired. Expired
	// records are removed lazily on read.
	Get(ctx context.Context, subjectID, tokenID string) (domain.RefreshRecord, error)

	// Consume atomically fetches and deletes the record. When two callers
	// race on the same key, exactly one receives the record and the other
	// gets ErrNotFound. This is what makes refresh rotation single-use.
	Consume(ctx context.Context, subjectID, tokenID string) (domain.RefreshRecord, error)

	// Delete removes the record. Idempotent: deleting a missing record is
	// not an error.
	Delete(ctx context.Context, subjectID, tokenID string) error

	// DeleteAll removes every record for the subject.
	DeleteAll(ctx context.Context, subjectID string) error

	// ListActive returns the subject's live (non-expired) records in
	// insertion order.
	ListActive(ctx context.Context, subjectID string) ([]domain.RefreshRecord, error)

	// DeleteExpired prunes expired records across all subjects. Safe to run
	// concurrently with every other operation.
	DeleteExpired(ctx context.Context) error
}

// Blacklist is the set of revoked access tokens, keyed by fingerprint. Each
// entry self-expires at the token's own exp so pruning needs no re-parsing.
type Blacklist interface {
	Add(ctx context.Context, e domain.BlacklistEntry) error
	Contains(ctx context.Context, fingerprint string) (bool, error)
	DeleteExpired(ctx context.Context) error
}
