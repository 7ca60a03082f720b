// Package presence provides the in-memory tracker for users with live
// connections.
package presence

import "sync"

// Tracker is a reference-counted presence set. A user is present while at
// least one live connection exists for them, so two devices connecting and
// one disconnecting leaves the user present. Safe for concurrent use from
// arbitrarily many connection-lifecycle events.
type Tracker struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewTracker creates an empty tracker. State is process-local and cleared
// on restart; reconnecting clients re-establish it.
func NewTracker() *Tracker {
	return &Tracker{counts: make(map[string]int)}
}

// MarkPresent records one live connection for the user.
func (t *Tracker) MarkPresent(userID string) {
	if userID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[userID]++
}

// MarkAbsent records the end of one live connection for the user. Calling
// it for a user with no recorded connections is a no-op.
func (t *Tracker) MarkAbsent(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.counts[userID]
	if !ok {
		return
	}
	if n <= 1 {
		delete(t.counts, userID)
		return
	}
	t.counts[userID] = n - 1
}

// IsPresent reports whether the user currently holds a live connection.
func (t *Tracker) IsPresent(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[userID] > 0
}
