// Package ledger remembers which tasks this operator has already answered.
package ledger

import (
	"context"
	"sync"
	"time"
)

const DefaultTTL = 24 * time.Hour

// Ledger is keyed by events.TaskEvent.Key(). Marks expire after the
// configured TTL.
type Ledger interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
	Close() error
}

// MemoryLedger only deduplicates within one process lifetime
type MemoryLedger struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryLedger(ttl time.Duration) *MemoryLedger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryLedger{
		ttl:     ttl,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (m *MemoryLedger) Seen(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiry, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	if !m.now().Before(expiry) {
		delete(m.entries, key)
		return false, nil
	}
	return true, nil
}

func (m *MemoryLedger) Mark(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.entries[key] = now.Add(m.ttl)

	// prune lazily so the map does not grow without bound
	for k, expiry := range m.entries {
		if !now.Before(expiry) {
			delete(m.entries, k)
		}
	}
	return nil
}

func (m *MemoryLedger) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryLedger) Close() error { return nil }
