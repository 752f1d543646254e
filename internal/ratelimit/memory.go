package ratelimit

import (
	"context"
	"sync"
	"time"
)

// customerState is the per-customer record. Once created it lives for
// the process lifetime; only stale in-window entries are pruned.
type customerState struct {
	tracks  map[string][]time.Time
	flagged bool
}

// MemoryStore is the single-process reference store: a mutex-guarded
// map with lazy pruning on every check. It grows with the customer set
// for the process lifetime and fragments state across instances when
// scaled horizontally; deployments that need either property fixed
// should use RedisStore.
type MemoryStore struct {
	mu        sync.Mutex
	customers map[string]*customerState
	now       func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers: make(map[string]*customerState),
		now:       time.Now,
	}
}

func (m *MemoryStore) state(customerID string) *customerState {
	st, ok := m.customers[customerID]
	if !ok {
		st = &customerState{tracks: make(map[string][]time.Time)}
		m.customers[customerID] = st
	}
	return st
}

// prune drops entries older than the window and returns the survivors.
func prune(entries []time.Time, cutoff time.Time) []time.Time {
	kept := entries[:0]
	for _, t := range entries {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// TakeIfUnder implements Store.
func (m *MemoryStore) TakeIfUnder(_ context.Context, customerID, track string, limit int, window time.Duration) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.state(customerID)
	now := m.now()
	entries := prune(st.tracks[track], now.Add(-window))

	if len(entries) >= limit {
		st.tracks[track] = entries
		return len(entries), false, nil
	}

	entries = append(entries, now)
	st.tracks[track] = entries
	return len(entries), true, nil
}

// Append implements Store.
func (m *MemoryStore) Append(_ context.Context, customerID, track string, window time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.state(customerID)
	now := m.now()
	entries := prune(st.tracks[track], now.Add(-window))
	entries = append(entries, now)
	st.tracks[track] = entries
	return len(entries), nil
}

// SetFlagged implements Store.
func (m *MemoryStore) SetFlagged(_ context.Context, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state(customerID).flagged = true
	return nil
}

// IsFlagged implements Store.
func (m *MemoryStore) IsFlagged(_ context.Context, customerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.customers[customerID]
	return ok && st.flagged, nil
}
