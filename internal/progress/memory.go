package progress

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL applies when NewMemoryStore gets a non-positive ttl.
const DefaultTTL = time.Hour

type memoryEntry struct {
	progress Progress
	expires  time.Time
}

// MemoryStore is a process-local Store. Frames are dropped ttl after their
// last write by a janitor goroutine; call Close to stop it.
//
// It is not shared between instances: run the redis backend when more than
// one server answers progress requests.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]memoryEntry

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewMemoryStore starts a store whose janitor sweeps every ttl/2.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
		stop:    make(chan struct{}),
	}

	interval := ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	s.wg.Add(1)
	go s.janitor(interval)
	return s
}

func (s *MemoryStore) janitor(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep removes expired frames and returns how many were dropped.
func (s *MemoryStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Set stores p and renews the session's TTL.
func (s *MemoryStore) Set(_ context.Context, id string, p Progress) error {
	s.mu.Lock()
	s.entries[id] = memoryEntry{progress: p, expires: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return nil
}

// Get returns the latest frame or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, id string) (Progress, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()

	if !ok || s.now().After(e.expires) {
		return Progress{}, ErrNotFound
	}
	return e.progress, nil
}

// Delete drops a session.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the janitor and waits for it to exit.
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
	return nil
}
