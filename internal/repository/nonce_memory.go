package repository

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryNonceStore keeps login nonces in process memory. Expired entries are
// dropped lazily on access.
type MemoryNonceStore struct {
	mu      sync.Mutex
	entries map[string]nonceEntry
	now     func() time.Time
}

type nonceEntry struct {
	nonce     string
	expiresAt time.Time
}

// NewMemoryNonceStore creates an empty MemoryNonceStore.
func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{entries: make(map[string]nonceEntry), now: time.Now}
}

// Put stores nonce for key, replacing any earlier one.
func (s *MemoryNonceStore) Put(_ context.Context, key, nonce string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[strings.ToLower(key)] = nonceEntry{nonce: nonce, expiresAt: s.now().Add(ttl)}
	return nil
}

// Take returns and deletes the nonce stored for key. ok is false when none is
// stored or it has expired.
func (s *MemoryNonceStore) Take(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := strings.ToLower(key)
	e, found := s.entries[k]
	if !found {
		return "", false, nil
	}
	delete(s.entries, k)
	if s.now().After(e.expiresAt) {
		return "", false, nil
	}
	return e.nonce, true, nil
}
