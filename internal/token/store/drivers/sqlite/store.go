// Package sqlite is the persistent store driver: token state survives
// restarts on a single node. SQLite serializes writers, which gives per-key
// atomicity for free; Consume additionally relies on single-statement
// DELETE..RETURNING so racing refreshes cannot both win.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/medisched/tokend/internal/token/store"

	_ "modernc.org/sqlite"
)

type Store struct {
	db        *sql.DB
	sessions  *refreshSessions
	blacklist *blacklist
}

// NewStore opens (or creates) the database at dsn. maxPerSubject bounds live
// refresh records per subject; now overrides the clock for tests.
func NewStore(dsn string, maxPerSubject int, now func() time.Time) (*Store, error) {
	if now == nil {
		now = time.Now
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// A single writer connection sidesteps SQLITE_BUSY under concurrency.
	db.SetMaxOpenConns(1)

	return &Store{
		db:        db,
		sessions:  &refreshSessions{db: db, max: maxPerSubject, now: now},
		blacklist: &blacklist{db: db, now: now},
	}, nil
}

func (s *Store) RefreshSessions() store.RefreshSessions { return s.sessions }
func (s *Store) Blacklist() store.Blacklist             { return s.blacklist }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *Store) Close() error                   { return s.db.Close() }
