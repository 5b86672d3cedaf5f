package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medisched/tokend/internal/token/domain"
)

// PostgresConfig controls the directory connection. The directory schema is
// owned by the directory service; we only read the trust columns through the
// subjects relation (a view unioning users and doctors).
type PostgresConfig struct {
	DSN         string
	Relation    string // default "auth_subjects"
	PingTimeout time.Duration
}

func (c PostgresConfig) withDefaults() PostgresConfig {
	out := c
	if out.Relation == "" {
		out.Relation = "auth_subjects"
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 5 * time.Second
	}
	return out
}

type Postgres struct {
	pool  *pgxpool.Pool
	query string
}

// NewPostgres opens a pgx pool against the directory database and validates
// connectivity.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	cfg = cfg.withDefaults()
	if cfg.DSN == "" {
		return nil, errors.New("directory: postgres DSN is required")
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("directory: open pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("directory: ping failed: %w", err)
	}

	return &Postgres{
		pool: pool,
		query: fmt.Sprintf(
			`SELECT force_logout_at, is_active, COALESCE(suspend_reason, '') FROM %s WHERE subject_id = $1`,
			cfg.Relation,
		),
	}, nil
}

func (p *Postgres) Lookup(ctx context.Context, subjectID string) (domain.DirectoryEntry, error) {
	var entry domain.DirectoryEntry
	err := p.pool.QueryRow(ctx, p.query, subjectID).Scan(
		&entry.ForceLogoutAt,
		&entry.IsActive,
		&entry.SuspendReason,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DirectoryEntry{}, ErrNotFound
	}
	if err != nil {
		// Timeouts, connection failures, and everything else that is not a
		// definitive answer. Callers fail closed.
		return domain.DirectoryEntry{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return entry, nil
}

func (p *Postgres) Close() { p.pool.Close() }
