package server

import (
	"sync"
	"time"

	x402a2a "github.com/mark3labs/x402-a2a-go"
)

// RequirementStore correlates quoted payment offers with the task identifier
// that produced them, across the round trip to the caller and back. A task id
// has at most one live entry; a fresh quote supersedes an old one.
type RequirementStore interface {
	// Put stores the quoted offers for a task id, overwriting any prior entry.
	Put(taskID string, requirements []x402a2a.PaymentRequirement)

	// Get returns the stored offers, when they were quoted, and whether an
	// entry exists.
	Get(taskID string) ([]x402a2a.PaymentRequirement, time.Time, bool)

	// Delete removes the entry for a task id. Deleting an absent entry is a
	// no-op.
	Delete(taskID string)
}

// storeEntry pairs quoted offers with their quote time, which drives the
// expiry check on submission.
type storeEntry struct {
	requirements []x402a2a.PaymentRequirement
	storedAt     time.Time
}

// MemoryRequirementStore is an in-process RequirementStore backed by a
// mutex-guarded map. Entries for abandoned negotiations are evicted by a
// background sweeper after a configurable TTL.
type MemoryRequirementStore struct {
	mu      sync.Mutex
	entries map[string]storeEntry

	ttl  time.Duration
	done chan struct{}
	once sync.Once

	// now is replaceable in tests.
	now func() time.Time
}

// DefaultQuoteTTL is how long an unanswered quote survives before eviction.
const DefaultQuoteTTL = 30 * time.Minute

// NewMemoryRequirementStore creates a store whose abandoned entries are
// evicted after ttl. A non-positive ttl disables eviction. Call Close when
// the store is no longer needed to stop the sweeper.
func NewMemoryRequirementStore(ttl time.Duration) *MemoryRequirementStore {
	s := &MemoryRequirementStore{
		entries: make(map[string]storeEntry),
		ttl:     ttl,
		done:    make(chan struct{}),
		now:     time.Now,
	}
	if ttl > 0 {
		go s.sweep()
	}
	return s
}

// Put implements RequirementStore.
func (s *MemoryRequirementStore) Put(taskID string, requirements []x402a2a.PaymentRequirement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[taskID] = storeEntry{
		requirements: requirements,
		storedAt:     s.now(),
	}
}

// Get implements RequirementStore.
func (s *MemoryRequirementStore) Get(taskID string) ([]x402a2a.PaymentRequirement, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[taskID]
	if !ok {
		return nil, time.Time{}, false
	}
	return entry.requirements, entry.storedAt, true
}

// Delete implements RequirementStore.
func (s *MemoryRequirementStore) Delete(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, taskID)
}

// Len returns the number of live entries.
func (s *MemoryRequirementStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the background sweeper. Safe to call more than once.
func (s *MemoryRequirementStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *MemoryRequirementStore) sweep() {
	interval := s.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

func (s *MemoryRequirementStore) evictExpired() {
	cutoff := s.now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.entries {
		if entry.storedAt.Before(cutoff) {
			delete(s.entries, id)
		}
	}
}
