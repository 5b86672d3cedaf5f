package directory

import (
	"context"
	"sync"

	"github.com/medisched/tokend/internal/token/domain"
)

// Static is an in-memory directory for development and tests. Unknown
// subjects are reported active by default so a fresh dev environment does not
// lock everyone out; strict mode flips that.
type Static struct {
	mu      sync.RWMutex
	entries map[string]domain.DirectoryEntry
	strict  bool
}

func NewStatic(strict bool) *Static {
	return &Static{
		entries: make(map[string]domain.DirectoryEntry),
		strict:  strict,
	}
}

func (s *Static) Lookup(ctx context.Context, subjectID string) (domain.DirectoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return domain.DirectoryEntry{}, ErrUnavailable
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[subjectID]
	if !ok {
		if s.strict {
			return domain.DirectoryEntry{}, ErrNotFound
		}
		return domain.DirectoryEntry{IsActive: true}, nil
	}
	return entry, nil
}

// Set replaces the entry for a subject.
func (s *Static) Set(subjectID string, entry domain.DirectoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[subjectID] = entry
}
