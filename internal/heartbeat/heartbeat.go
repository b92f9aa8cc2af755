package heartbeat

import (
	"sync"
	"time"
)

// Tracker records the last time a client signalled interest in a job. It is a
// pure liveness oracle: it never terminates anything itself, it only answers
// "has anyone cared about this job recently?".
type Tracker struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func New() *Tracker {
	return &Tracker{seen: make(map[string]time.Time)}
}

// Touch records the current time for id.
func (t *Tracker) Touch(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen[id] = time.Now()
}

// LastSeen returns the most recent touch, if any.
func (t *Tracker) LastSeen(id string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts, ok := t.seen[id]
	return ts, ok
}

// IsLive reports whether id was touched within timeout of now. An id with no
// record is not live.
func (t *Tracker) IsLive(id string, timeout time.Duration) bool {
	ts, ok := t.LastSeen(id)
	if !ok {
		return false
	}
	return time.Since(ts) <= timeout
}

// Remove drops the record for id. Called when the job reaches a terminal
// state; removing an absent id is a no-op.
func (t *Tracker) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.seen, id)
}
