package mqtt

import (
	"encoding/json"
	"sync"
	"time"
)

// DefaultLogCapacity bounds the per-session debug capture.
const DefaultLogCapacity = 100

// LogEntry is one captured MQTT payload, tagged with direction and time.
type LogEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Topic     string          `json:"topic"`
	Direction string          `json:"direction"`
	Payload   json.RawMessage `json:"payload"`
}

// MessageLog is a fixed-capacity ring of captured payloads. When full, the
// oldest entry is evicted first.
type MessageLog struct {
	mu      sync.Mutex
	entries []LogEntry
	start   int
	count   int
}

// NewMessageLog constructs a ring with the given capacity.
func NewMessageLog(capacity int) *MessageLog {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &MessageLog{entries: make([]LogEntry, capacity)}
}

// Append records one entry, evicting the oldest when the ring is full.
func (l *MessageLog) Append(entry LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count < len(l.entries) {
		l.entries[(l.start+l.count)%len(l.entries)] = entry
		l.count++
		return
	}
	l.entries[l.start] = entry
	l.start = (l.start + 1) % len(l.entries)
}

// Entries returns the captured payloads, oldest first.
func (l *MessageLog) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, 0, l.count)
	for i := 0; i < l.count; i++ {
		out = append(out, l.entries[(l.start+i)%len(l.entries)])
	}
	return out
}

// Clear drops all captured payloads.
func (l *MessageLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.start = 0
	l.count = 0
}

// Len reports the number of captured payloads.
func (l *MessageLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}
