package registry

import (
	"context"
	"fmt"
	"sync"
)

// lockEntry holds the per-client mutex and the number of goroutines using it.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// acquire gets or creates the entry for clientID and increments its reference count.
// The caller must lock entry.mu and call release after unlocking.
func (r *Registry) acquire(clientID string) *lockEntry {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()

	entry, ok := r.locks[clientID]
	if !ok {
		entry = &lockEntry{}
		r.locks[clientID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and forgets the entry once unused.
func (r *Registry) release(clientID string) {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()

	entry, ok := r.locks[clientID]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(r.locks, clientID)
	}
}

// WithLock runs fn while holding the lock for clientID.
// With a distributed locker configured the lock is also taken across replicas.
func (r *Registry) WithLock(ctx context.Context, clientID string, fn func(context.Context) error) error {
	entry := r.acquire(clientID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		r.release(clientID)
	}()

	if r.locker != nil {
		unlock, err := r.locker.Lock(ctx, clientID, r.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				r.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"client_id", clientID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

func (r *Registry) lockCount() int {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	return len(r.locks)
}
