package pipeline

import (
	"sync"
	"time"
)

// BuildError is one recorded compile failure.
type BuildError struct {
	BuildID string    `json:"build_id"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// ErrorLog accumulates failure messages across compiles. It is never cleared
// automatically; callers wanting per-run isolation call Reset.
type ErrorLog struct {
	mu      sync.RWMutex
	entries []BuildError
}

// NewErrorLog returns an empty log.
func NewErrorLog() *ErrorLog {
	return &ErrorLog{}
}

// Append records one failure.
func (l *ErrorLog) Append(e BuildError) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Len returns the number of recorded failures.
func (l *ErrorLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Messages returns the recorded messages in append order.
func (l *ErrorLog) Messages() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Message
	}
	return out
}

// Entries returns a copy of the recorded failures.
func (l *ErrorLog) Entries() []BuildError {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]BuildError, len(l.entries))
	copy(out, l.entries)
	return out
}

// Reset drops all recorded failures.
func (l *ErrorLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
