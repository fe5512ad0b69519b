package llm

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RequestContext is the ephemeral per-call state an adapter tracks while a
// completion is in flight: a unique request id and the cancellation handle
// for the bounded deadline. It is created at call entry and must be released
// on every path out of the call.
type RequestContext struct {
	ID      string
	Cancel  context.CancelFunc
	Started time.Time
}

// Elapsed returns how long the request has been in flight.
func (rc *RequestContext) Elapsed() time.Duration {
	return time.Since(rc.Started)
}

// ContextTable tracks the live request contexts of one adapter instance.
// It is the instance's only shared mutable state; entries are written by the
// owning call and removed unconditionally before control returns to the
// caller. Release is idempotent so that deferred cleanup and explicit
// cleanup cannot race a double removal.
type ContextTable struct {
	mu      sync.Mutex
	entries map[string]*RequestContext
}

// NewContextTable creates an empty tracking table.
func NewContextTable() *ContextTable {
	return &ContextTable{entries: make(map[string]*RequestContext)}
}

// Track registers a context under its request id.
func (t *ContextTable) Track(rc *RequestContext) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[rc.ID] = rc
}

// Release cancels and deregisters the context with the given id. Releasing
// an unknown or already-released id is a no-op.
func (t *ContextTable) Release(id string) {
	t.mu.Lock()
	rc, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()

	if ok && rc.Cancel != nil {
		rc.Cancel()
	}
}

// ReleaseAll cancels and deregisters every live context. Used by Cleanup at
// provider disposal; safe to call multiple times.
func (t *ContextTable) ReleaseAll() {
	t.mu.Lock()
	live := make([]*RequestContext, 0, len(t.entries))
	for _, rc := range t.entries {
		live = append(live, rc)
	}
	t.entries = make(map[string]*RequestContext)
	t.mu.Unlock()

	for _, rc := range live {
		if rc.Cancel != nil {
			rc.Cancel()
		}
	}
}

// Len reports the number of live request contexts.
func (t *ContextTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Begin derives a deadline-bounded context, allocates a RequestContext with
// a fresh request id, and registers it in the table. The caller must release
// the returned context on every exit path.
func (t *ContextTable) Begin(ctx context.Context, timeout time.Duration) (context.Context, *RequestContext) {
	bounded, cancel := context.WithTimeout(ctx, timeout)
	rc := &RequestContext{
		ID:      uuid.NewString(),
		Cancel:  cancel,
		Started: time.Now(),
	}
	t.Track(rc)
	return bounded, rc
}
