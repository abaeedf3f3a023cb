package revocation

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local [Store]. Entries are lost on restart.
//
// A background goroutine purges expired entries every cleanup interval until Close is
// called.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time

	interval  time.Duration
	stop      chan struct{}
	closeOnce sync.Once
}

// NewMemoryStore starts a MemoryStore. A non-positive interval defaults to five minutes.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}

	s := &MemoryStore{
		entries:  make(map[string]time.Time),
		now:      time.Now,
		interval: cleanupInterval,
		stop:     make(chan struct{}),
	}
	go s.periodicCleanup()

	return s
}

// Revoke records jti until expiresAt. An existing entry is only ever extended.
func (s *MemoryStore) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.entries[jti]; ok && !expiresAt.After(current) {
		return nil
	}
	s.entries[jti] = expiresAt
	return nil
}

// IsRevoked reports whether jti has an unexpired entry.
func (s *MemoryStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	expiresAt, ok := s.entries[jti]
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}
	return s.now().Before(expiresAt), nil
}

// Cleanup removes expired entries and returns how many were dropped.
func (s *MemoryStore) Cleanup() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for jti, expiresAt := range s.entries {
		if !now.Before(expiresAt) {
			delete(s.entries, jti)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
	})
	return nil
}

func (s *MemoryStore) periodicCleanup() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}
