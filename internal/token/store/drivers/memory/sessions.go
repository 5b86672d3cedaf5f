package memory

import (
	"context"
	"sync"
	"time"

	"github.com/medisched/tokend/internal/token/domain"
	"github.com/medisched/tokend/internal/token/store"
)

// refreshSessions keeps each subject's live records as an insertion-ordered
// slice. The per-subject bound is small (5), so linear scans under one lock
// beat any cleverer structure at this scale.
type refreshSessions struct {
	mu        sync.Mutex
	max       int
	now       func() time.Time
	bySubject map[string][]domain.RefreshRecord
}

func (s *refreshSessions) Put(ctx context.Context, rec domain.RefreshRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.bySubject[rec.SubjectID]
	// Evict oldest records first so the insert never exceeds the bound.
	// Insertion order, not remaining TTL, decides the victim.
	for s.max > 0 && len(recs) >= s.max {
		recs = recs[1:]
	}
	s.bySubject[rec.SubjectID] = append(recs, rec)
	return nil
}

func (s *refreshSessions) Get(ctx context.Context, subjectID, tokenID string) (domain.RefreshRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.bySubject[subjectID]
	for i, rec := range recs {
		if rec.TokenID != tokenID {
			continue
		}
		if rec.Expired(s.now()) {
			s.removeAt(subjectID, i)
			return domain.RefreshRecord{}, store.ErrNotFound
		}
		return rec, nil
	}
	return domain.RefreshRecord{}, store.ErrNotFound
}

func (s *refreshSessions) Consume(ctx context.Context, subjectID, tokenID string) (domain.RefreshRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.bySubject[subjectID]
	for i, rec := range recs {
		if rec.TokenID != tokenID {
			continue
		}
		s.removeAt(subjectID, i)
		if rec.Expired(s.now()) {
			return domain.RefreshRecord{}, store.ErrNotFound
		}
		return rec, nil
	}
	return domain.RefreshRecord{}, store.ErrNotFound
}

func (s *refreshSessions) Delete(ctx context.Context, subjectID, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, rec := range s.bySubject[subjectID] {
		if rec.TokenID == tokenID {
			s.removeAt(subjectID, i)
			return nil
		}
	}
	return nil
}

func (s *refreshSessions) DeleteAll(ctx context.Context, subjectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.bySubject, subjectID)
	return nil
}

func (s *refreshSessions) ListActive(ctx context.Context, subjectID string) ([]domain.RefreshRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	live := s.pruneLocked(subjectID, now)

	out := make([]domain.RefreshRecord, len(live))
	copy(out, live)
	return out, nil
}

func (s *refreshSessions) DeleteExpired(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for subjectID := range s.bySubject {
		s.pruneLocked(subjectID, now)
	}
	return nil
}

// pruneLocked drops expired records for one subject and returns the
// surviving slice. Empty subjects are removed entirely.
func (s *refreshSessions) pruneLocked(subjectID string, now time.Time) []domain.RefreshRecord {
	recs := s.bySubject[subjectID]
	live := recs[:0]
	for _, rec := range recs {
		if !rec.Expired(now) {
			live = append(live, rec)
		}
	}
	if len(live) == 0 {
		delete(s.bySubject, subjectID)
		return nil
	}
	s.bySubject[subjectID] = live
	return live
}

func (s *refreshSessions) removeAt(subjectID string, i int) {
	recs := s.bySubject[subjectID]
	recs = append(recs[:i], recs[i+1:]...)
	if len(recs) == 0 {
		delete(s.bySubject, subjectID)
		return
	}
	s.bySubject[subjectID] = recs
}
