package pending

import (
	"fmt"
	"sync"

	"github.com/aretw0/diagram/pkg/domain"
)

// Table holds the outstanding requests of one session.
// Safe for concurrent use.
type Table struct {
	mu       sync.Mutex
	entries  map[string]*Handle
	rejected error // set by RejectAll; Register fails with it afterwards
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		entries: make(map[string]*Handle),
	}
}

// Register creates a handle for id.
// It fails if id is empty, already pending, or the table was torn down.
func (t *Table) Register(id string) (*Handle, error) {
	if id == "" {
		return nil, domain.ErrInvalidRequestID
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rejected != nil {
		return nil, t.rejected
	}
	if _, exists := t.entries[id]; exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateRequest, id)
	}

	h := &Handle{
		id:    id,
		table: t,
		done:  make(chan struct{}),
	}
	t.entries[id] = h
	return h, nil
}

// Resolve settles the handle registered for id with resp and removes it.
// It reports whether a pending entry matched; a late or duplicate response is not an error.
func (t *Table) Resolve(id string, resp domain.ResponseAction) bool {
	h := t.take(id)
	if h == nil {
		return false
	}
	h.settle(resp, nil)
	return true
}

// Reject settles the handle registered for id with err and removes it.
func (t *Table) Reject(id string, err error) bool {
	h := t.take(id)
	if h == nil {
		return false
	}
	h.settle(nil, err)
	return true
}

// RejectAll settles every pending handle with reason and empties the table.
// Later registrations fail with reason. It returns the number of rejected handles.
func (t *Table) RejectAll(reason error) int {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[string]*Handle)
	t.rejected = reason
	t.mu.Unlock()

	for _, h := range entries {
		h.settle(nil, reason)
	}
	return len(entries)
}

// Len returns the number of pending requests.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Pending reports whether id is currently outstanding.
func (t *Table) Pending(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[id]
	return ok
}

// take removes and returns the handle for id. Removal under the lock is what
// guarantees at-most-once settlement.
func (t *Table) take(id string) *Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.entries[id]
	if !ok {
		return nil
	}
	delete(t.entries, id)
	return h
}

// remove deletes id only if it still maps to h.
func (t *Table) remove(h *Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if current, ok := t.entries[h.id]; !ok || current != h {
		return false
	}
	delete(t.entries, h.id)
	return true
}
