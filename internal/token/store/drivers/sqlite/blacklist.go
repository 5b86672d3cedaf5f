package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/medisched/tokend/internal/token/domain"
)

type blacklist struct {
	db  *sql.DB
	now func() time.Time
}

func (b *blacklist) Add(ctx context.Context, e domain.BlacklistEntry) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO blacklist (fingerprint, blacklisted_at, expires_at)
		VALUES (?, ?, ?)`,
		e.Fingerprint, e.BlacklistedAt, e.ExpiresAt)
	return err
}

func (b *blacklist) Contains(ctx context.Context, fingerprint string) (bool, error) {
	var exists bool
	err := b.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM blacklist WHERE fingerprint = ? AND expires_at > ?
		)`, fingerprint, b.now()).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (b *blacklist) DeleteExpired(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, `
		DELETE FROM blacklist WHERE expires_at <= ?`, b.now())
	return err
}
