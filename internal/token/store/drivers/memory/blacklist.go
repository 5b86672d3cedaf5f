package memory

import (
	"context"
	"sync"
	"time"

	"github.com/medisched/tokend/internal/token/domain"
)

type blacklist struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]domain.BlacklistEntry
}

func (b *blacklist) Add(ctx context.Context, e domain.BlacklistEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[e.Fingerprint] = e
	return nil
}

func (b *blacklist) Contains(ctx context.Context, fingerprint string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[fingerprint]
	if !ok {
		return false, nil
	}
	// Entries past the token's own exp are dead weight; the token would be
	// rejected as expired anyway.
	if !b.now().Before(e.ExpiresAt) {
		delete(b.entries, fingerprint)
		return false, nil
	}
	return true, nil
}

func (b *blacklist) DeleteExpired(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	for fp, e := range b.entries {
		if !now.Before(e.ExpiresAt) {
			delete(b.entries, fp)
		}
	}
	return nil
}
