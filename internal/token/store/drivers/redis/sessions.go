package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/medisched/tokend/internal/token/domain"
	"github.com/medisched/tokend/internal/token/store"
	"github.com/redis/go-redis/v9"
)

// Layout per subject:
//
//	{prefix}:rt:{subject}:{tokenID}  record JSON, expires at the record's exp
//	{prefix}:rtidx:{subject}         zset of tokenIDs scored by creation time
//
// Record keys expire on their own; the index is reconciled lazily on reads
// and by the periodic sweep.

// putScript inserts a record, evicting the oldest index entries first so the
// subject never holds more than ARGV[4] records.
//
// KEYS[1] = index key
// KEYS[2] = record key
// ARGV[1] = tokenID, ARGV[2] = score (created unix ms), ARGV[3] = record JSON,
// ARGV[4] = max records per subject, ARGV[5] = record expiry (unix ms),
// ARGV[6] = record key prefix for this subject.
var putScript = redis.NewScript(`
local count = redis.call('ZCARD', KEYS[1])
while count >= tonumber(ARGV[4]) do
  local victim = redis.call('ZPOPMIN', KEYS[1])
  if victim[1] == nil then
    break
  end
  redis.call('DEL', ARGV[6] .. victim[1])
  count = count - 1
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
redis.call('SET', KEYS[2], ARGV[3])
redis.call('PEXPIREAT', KEYS[2], ARGV[5])
redis.call('PEXPIREAT', KEYS[1], ARGV[5])
return 1
`)

// consumeScript atomically fetches and deletes a record. Exactly one of two
// racing callers sees the value.
//
// KEYS[1] = record key
// KEYS[2] = index key
// ARGV[1] = tokenID.
var consumeScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
redis.call('ZREM', KEYS[2], ARGV[1])
if not v then
  return false
end
redis.call('DEL', KEYS[1])
return v
`)

type refreshSessions struct {
	client redis.UniversalClient
	prefix string
	max    int
}

func (s *refreshSessions) recordKey(subjectID, tokenID string) string {
	return fmt.Sprintf("%s:rt:%s:%s", s.prefix, subjectID, tokenID)
}

func (s *refreshSessions) recordKeyPrefix(subjectID string) string {
	return fmt.Sprintf("%s:rt:%s:", s.prefix, subjectID)
}

func (s *refreshSessions) indexKey(subjectID string) string {
	return fmt.Sprintf("%s:rtidx:%s", s.prefix, subjectID)
}

func (s *refreshSessions) Put(ctx context.Context, rec domain.RefreshRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis: marshal record: %w", err)
	}

	err = putScript.Run(ctx, s.client,
		[]string{s.indexKey(rec.SubjectID), s.recordKey(rec.SubjectID, rec.TokenID)},
		rec.TokenID,
		rec.CreatedAt.UnixMilli(),
		payload,
		s.max,
		rec.ExpiresAt.UnixMilli(),
		s.recordKeyPrefix(rec.SubjectID),
	).Err()
	if err != nil {
		return fmt.Errorf("redis: put record: %w", err)
	}
	return nil
}

func (s *refreshSessions) Get(ctx context.Context, subjectID, tokenID string) (domain.RefreshRecord, error) {
	data, err := s.client.Get(ctx, s.recordKey(subjectID, tokenID)).Bytes()
	if err == redis.Nil {
		// Drop the dangling index entry, if any.
		_ = s.client.ZRem(ctx, s.indexKey(subjectID), tokenID).Err()
		return domain.RefreshRecord{}, store.ErrNotFound
	}
	if err != nil {
		return domain.RefreshRecord{}, fmt.Errorf("redis: get record: %w", err)
	}
	return unmarshalRecord(data)
}

func (s *refreshSessions) Consume(ctx context.Context, subjectID, tokenID string) (domain.RefreshRecord, error) {
	res, err := consumeScript.Run(ctx, s.client,
		[]string{s.recordKey(subjectID, tokenID), s.indexKey(subjectID)},
		tokenID,
	).Result()
	if err == redis.Nil {
		return domain.RefreshRecord{}, store.ErrNotFound
	}
	if err != nil {
		return domain.RefreshRecord{}, fmt.Errorf("redis: consume record: %w", err)
	}

	data, ok := res.(string)
	if !ok {
		return domain.RefreshRecord{}, store.ErrNotFound
	}
	return unmarshalRecord([]byte(data))
}

func (s *refreshSessions) Delete(ctx context.Context, subjectID, tokenID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.recordKey(subjectID, tokenID))
	pipe.ZRem(ctx, s.indexKey(subjectID), tokenID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: delete record: %w", err)
	}
	return nil
}

func (s *refreshSessions) DeleteAll(ctx context.Context, subjectID string) error {
	tokenIDs, err := s.client.ZRange(ctx, s.indexKey(subjectID), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("redis: list subject records: %w", err)
	}

	pipe := s.client.Pipeline()
	for _, tid := range tokenIDs {
		pipe.Del(ctx, s.recordKey(subjectID, tid))
	}
	pipe.Del(ctx, s.indexKey(subjectID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: delete all records: %w", err)
	}
	return nil
}

func (s *refreshSessions) ListActive(ctx context.Context, subjectID string) ([]domain.RefreshRecord, error) {
	tokenIDs, err := s.client.ZRange(ctx, s.indexKey(subjectID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list subject records: %w", err)
	}
	if len(tokenIDs) == 0 {
		return nil, nil
	}

	keys := make([]string, len(tokenIDs))
	for i, tid := range tokenIDs {
		keys[i] = s.recordKey(subjectID, tid)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: fetch records: %w", err)
	}

	var out []domain.RefreshRecord
	for i, v := range values {
		data, ok := v.(string)
		if !ok {
			// Record expired out from under the index.
			_ = s.client.ZRem(ctx, s.indexKey(subjectID), tokenIDs[i]).Err()
			continue
		}
		rec, err := unmarshalRecord([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// DeleteExpired reconciles indexes whose record keys have TTL-expired. The
// records themselves need no sweeping: redis already evicted them.
func (s *refreshSessions) DeleteExpired(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+":rtidx:*", 100).Iterator()
	for iter.Next(ctx) {
		indexKey := iter.Val()
		subjectID := indexKey[len(s.prefix)+len(":rtidx:"):]

		tokenIDs, err := s.client.ZRange(ctx, indexKey, 0, -1).Result()
		if err != nil {
			return fmt.Errorf("redis: sweep index: %w", err)
		}
		for _, tid := range tokenIDs {
			exists, err := s.client.Exists(ctx, s.recordKey(subjectID, tid)).Result()
			if err != nil {
				return fmt.Errorf("redis: sweep record check: %w", err)
			}
			if exists == 0 {
				_ = s.client.ZRem(ctx, indexKey, tid).Err()
			}
		}
	}
	return iter.Err()
}

func unmarshalRecord(data []byte) (domain.RefreshRecord, error) {
	var rec domain.RefreshRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.RefreshRecord{}, fmt.Errorf("redis: unmarshal record: %w", err)
	}
	return rec, nil
}
