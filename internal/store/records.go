package store

import (
	"sync"

	"github.com/logferry/logferry/internal/model"
)

// RecordStore is the server-side set of records received so far.
// Append-only for the process lifetime; guarded for concurrent access
// by whichever multiplexing strategy is driving the connections.
type RecordStore struct {
	mu      sync.RWMutex
	entries []model.LogEntry
}

// NewRecordStore returns an empty store.
func NewRecordStore() *RecordStore {
	return &RecordStore{entries: make([]model.LogEntry, 0, 4096)}
}

// Add appends entries in arrival order.
func (s *RecordStore) Add(entries ...model.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
}

// Len returns the number of stored records.
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Snapshot returns a copy of the current record set. Queries run
// against the copy so a concurrent upload never corrupts a result set.
func (s *RecordStore) Snapshot() []model.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.LogEntry, len(s.entries))
	copy(out, s.entries)
	return out
}
