package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/medisched/tokend/internal/token/domain"
	"github.com/medisched/tokend/internal/token/store"
	"github.com/medisched/tokend/pkg/jwtx"
)

type refreshSessions struct {
	db  *sql.DB
	max int
	now func() time.Time
}

func (s *refreshSessions) Put(ctx context.Context, rec domain.RefreshRecord) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("sqlite: marshal payload: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Keep only the newest max-1 records, then insert; oldest go first
	// regardless of remaining TTL.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM refresh_tokens
		WHERE subject_id = ?1 AND token_id IN (
			SELECT token_id FROM refresh_tokens
			WHERE subject_id = ?1
			ORDER BY created_at DESC, rowid DESC
			LIMIT -1 OFFSET ?2
		)`, rec.SubjectID, s.max-1)
	if err != nil {
		return fmt.Errorf("sqlite: evict oldest: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO refresh_tokens
			(subject_id, token_id, payload, device_label, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.SubjectID, rec.TokenID, string(payload), rec.DeviceLabel,
		rec.CreatedAt, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("sqlite: insert record: %w", err)
	}

	return tx.Commit()
}

func (s *refreshSessions) Get(ctx context.Context, subjectID, tokenID string) (domain.RefreshRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT payload, device_label, created_at, expires_at
		FROM refresh_tokens
		WHERE subject_id = ? AND token_id = ?`, subjectID, tokenID)

	rec, err := scanRecord(row, subjectID, tokenID)
	if err != nil {
		return domain.RefreshRecord{}, err
	}
	if rec.Expired(s.now()) {
		_ = s.Delete(ctx, subjectID, tokenID)
		return domain.RefreshRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (s *refreshSessions) Consume(ctx context.Context, subjectID, tokenID string) (domain.RefreshRecord, error) {
	// Single-statement delete-returning: of two racing consumers exactly one
	// sees the row.
	row := s.db.QueryRowContext(ctx, `
		DELETE FROM refresh_tokens
		WHERE subject_id = ? AND token_id = ?
		RETURNING payload, device_label, created_at, expires_at`, subjectID, tokenID)

	rec, err := scanRecord(row, subjectID, tokenID)
	if err != nil {
		return domain.RefreshRecord{}, err
	}
	if rec.Expired(s.now()) {
		return domain.RefreshRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (s *refreshSessions) Delete(ctx context.Context, subjectID, tokenID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens WHERE subject_id = ? AND token_id = ?`,
		subjectID, tokenID)
	return err
}

func (s *refreshSessions) DeleteAll(ctx context.Context, subjectID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens WHERE subject_id = ?`, subjectID)
	return err
}

func (s *refreshSessions) ListActive(ctx context.Context, subjectID string) ([]domain.RefreshRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token_id, payload, device_label, created_at, expires_at
		FROM refresh_tokens
		WHERE subject_id = ? AND expires_at > ?
		ORDER BY created_at, rowid`, subjectID, s.now())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RefreshRecord
	for rows.Next() {
		var (
			rec     domain.RefreshRecord
			payload string
		)
		rec.SubjectID = subjectID
		if err := rows.Scan(&rec.TokenID, &payload, &rec.DeviceLabel, &rec.CreatedAt, &rec.ExpiresAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
			return nil, fmt.Errorf("sqlite: unmarshal payload: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *refreshSessions) DeleteExpired(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens WHERE expires_at <= ?`, s.now())
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner, subjectID, tokenID string) (domain.RefreshRecord, error) {
	var (
		rec     domain.RefreshRecord
		payload string
	)
	rec.SubjectID = subjectID
	rec.TokenID = tokenID

	err := row.Scan(&payload, &rec.DeviceLabel, &rec.CreatedAt, &rec.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RefreshRecord{}, store.ErrNotFound
	}
	if err != nil {
		return domain.RefreshRecord{}, err
	}

	var p jwtx.Payload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return domain.RefreshRecord{}, fmt.Errorf("sqlite: unmarshal payload: %w", err)
	}
	rec.Payload = p
	return rec, nil
}
