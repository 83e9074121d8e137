// Package history provides the bounded in-memory message log shared by all
// connected clients. Messages are immutable once appended; when the log is
// full the oldest entry is evicted first.
package history

import (
	"fmt"
	"sync"
	"time"
)

// DefaultCapacity is the number of messages retained before FIFO eviction.
const DefaultCapacity = 1000

// Kind classifies a stored message.
type Kind string

const (
	KindChat      Kind = "chat"
	KindEmergency Kind = "emergency"
)

// idPrefix returns the wire prefix used for message IDs of this kind.
func (k Kind) idPrefix() string {
	if k == KindEmergency {
		return "emergency"
	}
	return "msg"
}

// Message is an immutable chat or emergency record. The author name is
// captured at send time and never re-resolved.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"type"`
}

// Log is an append-only, capacity-bounded message buffer. All methods are
// safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	messages []Message
	capacity int
	lastID   int64
}

// NewLog creates a log bounded at the given capacity. Non-positive values
// fall back to DefaultCapacity.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{capacity: capacity}
}

// Append stores a new message and returns the stored value. When the log
// exceeds its capacity the oldest entry is evicted.
func (l *Log) Append(kind Kind, userID, userName, content string) Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	stamp := now.UnixNano()
	if stamp <= l.lastID {
		// Same-instant appends still get time-ordered IDs.
		stamp = l.lastID + 1
	}
	l.lastID = stamp

	msg := Message{
		ID:        fmt.Sprintf("%s_%d", kind.idPrefix(), stamp),
		UserID:    userID,
		UserName:  userName,
		Content:   content,
		Timestamp: now,
		Kind:      kind,
	}

	l.messages = append(l.messages, msg)
	if len(l.messages) > l.capacity {
		l.messages = l.messages[len(l.messages)-l.capacity:]
	}

	return msg
}

// Tail returns the last n messages in arrival order, or fewer if the log is
// shorter. The result is a copy and safe to retain.
func (l *Log) Tail(n int) []Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n > len(l.messages) {
		n = len(l.messages)
	}
	if n <= 0 {
		return []Message{}
	}

	out := make([]Message, n)
	copy(out, l.messages[len(l.messages)-n:])
	return out
}

// Len returns the current number of retained messages (post-eviction).
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}
