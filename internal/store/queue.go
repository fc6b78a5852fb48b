// Package store holds the client's pending-upload queue, the server's
// known record set, and the source log file loader.
package store

import "github.com/logferry/logferry/internal/model"

// UploadQueue orders pending records by accessTime ascending, FIFO on
// equal times. It is owned by the client session that populated it and
// is never shared across sessions; no locking here.
type UploadQueue struct {
	entries []model.LogEntry
}

// NewUploadQueue returns an empty queue.
func NewUploadQueue() *UploadQueue {
	return &UploadQueue{}
}

// Enqueue inserts e after every entry with accessTime <= e.AccessTime.
// O(n) insertion; batch loads from log files, not live streams.
func (q *UploadQueue) Enqueue(e model.LogEntry) {
	i := len(q.entries)
	for i > 0 && q.entries[i-1].AccessTime > e.AccessTime {
		i--
	}
	q.entries = append(q.entries, model.LogEntry{})
	copy(q.entries[i+1:], q.entries[i:])
	q.entries[i] = e
}

// DequeueAll drains the queue in upload order and leaves it empty.
func (q *UploadQueue) DequeueAll() []model.LogEntry {
	out := q.entries
	q.entries = nil
	return out
}

// Len returns the number of pending records.
func (q *UploadQueue) Len() int {
	return len(q.entries)
}
