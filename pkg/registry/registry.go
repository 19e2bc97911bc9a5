package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/diagram/internal/logging"
	"github.com/aretw0/diagram/pkg/domain"
	"github.com/aretw0/diagram/pkg/ports"
	"github.com/aretw0/diagram/pkg/session"
)

// DefaultLockTTL bounds how long a distributed lock is held if its owner dies.
const DefaultLockTTL = 30 * time.Second

// Factory builds the session for a client. It is called with the client's lock held.
type Factory func(ctx context.Context, clientID string) (*session.Session, error)

// Registry owns the live sessions of a server, keyed by client id.
// Creation and eviction for the same client are serialized.
type Registry struct {
	factory Factory
	store   ports.SnapshotStore

	mu       sync.RWMutex
	sessions map[string]*session.Session
	closed   bool

	locksMu sync.Mutex
	locks   map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Registry.
type Option func(*Registry)

// WithStore persists a snapshot when a session is evicted and restores it when the
// client comes back.
func WithStore(store ports.SnapshotStore) Option {
	return func(r *Registry) {
		r.store = store
	}
}

// WithLocker enables distributed locking of create and evict.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(r *Registry) {
		r.locker = locker
	}
}

// WithLockTTL sets the TTL of distributed locks (default: DefaultLockTTL).
func WithLockTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		r.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Registry.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// New creates a registry. A nil factory creates bare sessions.
func New(factory Factory, opts ...Option) *Registry {
	if factory == nil {
		factory = func(_ context.Context, clientID string) (*session.Session, error) {
			return session.New(clientID), nil
		}
	}

	r := &Registry{
		factory:  factory,
		sessions: make(map[string]*session.Session),
		locks:    make(map[string]*lockEntry),
		lockTTL:  DefaultLockTTL,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create builds a new session for clientID and restores its stored snapshot, if any.
// It fails with domain.ErrSessionExists when the client already has a live session.
func (r *Registry) Create(ctx context.Context, clientID string) (*session.Session, error) {
	if clientID == "" {
		return nil, domain.ErrInvalidClientID
	}

	var created *session.Session
	err := r.WithLock(ctx, clientID, func(ctx context.Context) error {
		if _, ok := r.Lookup(clientID); ok {
			return fmt.Errorf("%w: %s", domain.ErrSessionExists, clientID)
		}

		s, err := r.build(ctx, clientID)
		if err != nil {
			return err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			s.Close()
			return domain.ErrRegistryClosed
		}
		r.sessions[clientID] = s
		created = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Session created", "client_id", clientID)
	return created, nil
}

// Lookup returns the live session of clientID.
func (r *Registry) Lookup(clientID string) (*session.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[clientID]
	return s, ok
}

// LookupOrCreate returns the live session of clientID, creating it if needed.
func (r *Registry) LookupOrCreate(ctx context.Context, clientID string) (*session.Session, error) {
	if s, ok := r.Lookup(clientID); ok {
		return s, nil
	}

	s, err := r.Create(ctx, clientID)
	if errors.Is(err, domain.ErrSessionExists) {
		// Lost the race to another caller; theirs is just as good.
		if s, ok := r.Lookup(clientID); ok {
			return s, nil
		}
	}
	return s, err
}

// Evict removes the session of clientID, saves its snapshot and closes it.
// It fails with domain.ErrSessionNotFound when the client has no live session.
func (r *Registry) Evict(ctx context.Context, clientID string) error {
	return r.WithLock(ctx, clientID, func(ctx context.Context) error {
		r.mu.Lock()
		s, ok := r.sessions[clientID]
		delete(r.sessions, clientID)
		r.mu.Unlock()

		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, clientID)
		}
		return r.retire(ctx, clientID, s)
	})
}

// List returns the client ids with a live session, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// PendingRequests returns the number of requests pending across all live sessions.
func (r *Registry) PendingRequests() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, s := range r.sessions {
		total += s.PendingRequests()
	}
	return total
}

// Close evicts every live session and refuses new ones.
// Snapshot errors are collected; every session is closed regardless.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[string]*session.Session)
	r.mu.Unlock()

	var errs []error
	for clientID, s := range sessions {
		if err := r.retire(ctx, clientID, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) build(ctx context.Context, clientID string) (*session.Session, error) {
	s, err := r.factory(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if r.store == nil {
		return s, nil
	}

	snapshot, err := r.store.Load(ctx, clientID)
	switch {
	case err == nil:
		s.Restore(snapshot)
		r.logger.Debug("Session restored", "client_id", clientID, "revision", snapshot.Revision)
	case errors.Is(err, domain.ErrSessionNotFound):
	default:
		s.Close()
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return s, nil
}

// retire saves the snapshot of s and closes it. The session is closed even if
// the snapshot cannot be saved.
func (r *Registry) retire(ctx context.Context, clientID string, s *session.Session) error {
	var saveErr error
	if r.store != nil {
		if err := r.store.Save(ctx, clientID, s.Snapshot()); err != nil {
			saveErr = fmt.Errorf("failed to save snapshot of %s: %w", clientID, err)
		}
	}

	rejected := s.Close()
	r.logger.Info("Session evicted", "client_id", clientID, "rejected_requests", rejected)
	if saveErr != nil {
		r.logger.Error("Snapshot lost", "client_id", clientID, "err", saveErr)
	}
	return saveErr
}
