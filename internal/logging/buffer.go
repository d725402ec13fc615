package logging

import (
	"sort"
	"sync"
	"time"
)

// LogEntry represents a single log line stored in the ring buffer.
type LogEntry struct {
	Seq        uint64         `json:"seq"`
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// RingBuffer keeps the most recent log entries for /api/logs/stream.
// Every entry gets a sequence number on Write, so a reader can resume
// after the last entry it saw.
type RingBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	next    int
	full    bool
	seq     uint64
}

// NewRingBuffer creates a buffer holding up to size entries.
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{entries: make([]LogEntry, max(size, 1))}
}

// Write stores entry, evicting the oldest one when full, and returns it
// with its sequence number set.
func (rb *RingBuffer) Write(entry LogEntry) LogEntry {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.seq++
	entry.Seq = rb.seq
	rb.entries[rb.next] = entry
	rb.next++
	if rb.next == len(rb.entries) {
		rb.next = 0
		rb.full = true
	}
	return entry
}

// ReadAll returns the buffered entries, oldest first.
func (rb *RingBuffer) ReadAll() []LogEntry {
	return rb.ReadSince(0)
}

// ReadSince returns the buffered entries with a sequence number above seq,
// oldest first.
func (rb *RingBuffer) ReadSince(seq uint64) []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	ordered := rb.entries[:rb.next]
	if rb.full {
		ordered = append(append(make([]LogEntry, 0, len(rb.entries)), rb.entries[rb.next:]...), rb.entries[:rb.next]...)
	}

	start := sort.Search(len(ordered), func(i int) bool { return ordered[i].Seq > seq })
	if start == len(ordered) {
		return nil
	}
	return append([]LogEntry(nil), ordered[start:]...)
}

// Count returns the number of entries in the buffer.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if rb.full {
		return len(rb.entries)
	}
	return rb.next
}

// LastSeq returns the sequence number of the newest entry, or 0.
func (rb *RingBuffer) LastSeq() uint64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.seq
}
