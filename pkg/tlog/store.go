package tlog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyPayloadHash is returned when appending an empty payload hash.
var ErrEmptyPayloadHash = errors.New("tlog: empty payload hash")

// Entry is one persisted leaf of the log.
type Entry struct {
	EntryID     string
	LeafIndex   int
	PayloadHash string
	CreatedAt   time.Time
}

// Store is the append-only backing storage of a Log. Entries returns every
// entry ordered by leaf index.
type Store interface {
	Append(ctx context.Context, payloadHash string) (Entry, error)
	Entries(ctx context.Context) ([]Entry, error)
	Len(ctx context.Context) (int, error)
}

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (m *MemoryStore) Append(_ context.Context, payloadHash string) (Entry, error) {
	if payloadHash == "" {
		return Entry{}, ErrEmptyPayloadHash
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e := Entry{
		EntryID:     uuid.New().String(),
		LeafIndex:   len(m.entries),
		PayloadHash: payloadHash,
		CreatedAt:   m.now().UTC(),
	}
	m.entries = append(m.entries, e)
	return e, nil
}

func (m *MemoryStore) Entries(_ context.Context) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out, nil
}

func (m *MemoryStore) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}
