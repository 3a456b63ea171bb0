package auth

import (
	"context"
	"sync"
	"time"
)

// LivenessStore records which issued session tokens are currently live.
// Signature validity alone never authenticates a request; the token must
// also be present here.  Implementations must make each operation atomic
// with respect to concurrent readers of the same token.
type LivenessStore interface {
	// Put marks token as live for userID until expiresAt.
	Put(ctx context.Context, token string, userID uint64, expiresAt time.Time) error
	// Exists reports whether token is live.
	Exists(ctx context.Context, token string) (bool, error)
	// Remove deletes the record for token.  Unknown tokens are not an error.
	Remove(ctx context.Context, token string) error
	// RemoveUser deletes every live token belonging to userID.
	RemoveUser(ctx context.Context, userID uint64) error
}

type memoryEntry struct {
	userID    uint64
	expiresAt time.Time
}

// MemoryStore is a process-local LivenessStore guarded by a RWMutex.
// Records are keyed by the raw token string.  Expired records are
// treated as absent and dropped by Cleanup.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory liveness store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Put(_ context.Context, token string, userID uint64, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[token] = memoryEntry{userID: userID, expiresAt: expiresAt}
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, token string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[token]
	if !ok {
		return false, nil
	}
	return s.now().Before(e.expiresAt), nil
}

func (s *MemoryStore) Remove(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, token)
	return nil
}

func (s *MemoryStore) RemoveUser(_ context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, e := range s.entries {
		if e.userID == userID {
			delete(s.entries, token)
		}
	}
	return nil
}

// Cleanup removes records whose expiry has passed and returns how many
// were dropped.
func (s *MemoryStore) Cleanup(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for token, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, token)
			removed++
		}
	}
	return removed
}

// Len returns the number of records, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
