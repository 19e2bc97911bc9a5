package session

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"sync"
	"time"

	"github.com/aretw0/diagram/internal/logging"
	"github.com/aretw0/diagram/pkg/domain"
	"github.com/aretw0/diagram/pkg/pending"
	"github.com/aretw0/diagram/pkg/ports"
)

// Session is the server-side state and behavior bound to one remote diagram client.
// It is safe for concurrent use.
type Session struct {
	mu       sync.Mutex // guards the fields below up to closed
	clientID string
	endpoint ports.RemoteEndpoint
	model    *domain.ModelRoot
	status   *domain.ServerStatus
	options  map[string]string
	revision int64
	handlers map[string]Handler
	closed   bool

	// sendMu orders outbound model and status messages the same way as the
	// state changes they announce.
	sendMu sync.Mutex

	layoutKind   domain.LayoutKind
	layoutEngine ports.LayoutEngine
	source       ports.ModelSource
	clientLayout bool

	requests *pending.Table
	inbox    *inbox

	ctx        context.Context
	cancel     context.CancelFunc
	workerDone chan struct{}

	hooks  Hooks
	logger *slog.Logger
}

// New creates a session and starts its inbound worker.
// clientID may be empty and set once later with SetClientID.
// The caller must Close the session to release the worker.
func New(clientID string, opts ...Option) *Session {
	s := &Session{
		clientID:   clientID,
		model:      domain.EmptyRoot(),
		options:    map[string]string{},
		handlers:   make(map[string]Handler),
		layoutKind: domain.LayoutAutomatic,
		requests:   pending.NewTable(),
		inbox:      newInbox(),
		workerDone: make(chan struct{}),
		logger:     logging.NewNop(),
	}
	s.handlers[domain.KindRequestModel] = HandlerFunc(handleRequestModel)
	s.handlers[domain.KindLayout] = HandlerFunc(handleLayout)

	for _, opt := range opts {
		opt(s)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	go s.run()
	return s
}

// ClientID returns the identifier of the client this session serves.
func (s *Session) ClientID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientID
}

// SetClientID sets the client identifier. It can be set only once; a second call
// fails with domain.ErrClientIDAlreadySet and leaves the identifier unchanged.
func (s *Session) SetClientID(id string) error {
	if id == "" {
		return domain.ErrInvalidClientID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clientID != "" {
		return fmt.Errorf("%w: %s", domain.ErrClientIDAlreadySet, s.clientID)
	}
	s.clientID = id
	return nil
}

// RemoteEndpoint returns the bound endpoint, or nil.
func (s *Session) RemoteEndpoint() ports.RemoteEndpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoint
}

// SetRemoteEndpoint binds the endpoint that receives outbound actions.
// It may be called again after a reconnect; nil unbinds.
// Messages dispatched while unbound are lost, not queued.
func (s *Session) SetRemoteEndpoint(endpoint ports.RemoteEndpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.endpoint = endpoint
}

// ReleaseEndpoint unbinds endpoint if it is still the bound one and reports
// whether it was. A connection that went away uses it so that it never unbinds
// the connection that replaced it. Endpoints of an uncomparable type, such as
// ports.EndpointFunc, never match; unbind those with SetRemoteEndpoint(nil).
func (s *Session) ReleaseEndpoint(endpoint ports.RemoteEndpoint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !sameEndpoint(s.endpoint, endpoint) {
		return false
	}
	s.endpoint = nil
	return true
}

// sameEndpoint compares a and b without panicking on uncomparable dynamic types.
func sameEndpoint(a, b ports.RemoteEndpoint) bool {
	if a == nil || b == nil {
		return false
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}

// Model returns the current model root. It must not be modified; use Clone.
func (s *Session) Model() *domain.ModelRoot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// Revision returns the revision of the current model.
func (s *Session) Revision() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Status returns the current status, or nil when no status is shown.
func (s *Session) Status() *domain.ServerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == nil {
		return nil
	}
	status := *s.status
	return &status
}

// Options returns the options received with the last requestModel action,
// or an empty map if none was received yet.
func (s *Session) Options() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.options)
}

// LayoutKind returns the layout policy of the session.
func (s *Session) LayoutKind() domain.LayoutKind {
	return s.layoutKind
}

// PendingRequests returns the number of requests awaiting a response.
func (s *Session) PendingRequests() int {
	return s.requests.Len()
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Dispatch sends a fire-and-forget action to the client.
// Without a bound endpoint the action is dropped and Dispatch returns nil.
// After Close it returns domain.ErrSessionClosed.
func (s *Session) Dispatch(ctx context.Context, action domain.Action) error {
	if action == nil {
		return domain.ErrNilAction
	}

	s.mu.Lock()
	closed, endpoint, clientID := s.closed, s.endpoint, s.clientID
	s.mu.Unlock()

	if closed {
		return domain.ErrSessionClosed
	}
	s.send(ctx, endpoint, clientID, action)
	return nil
}

// Request dispatches a request action and returns a handle that is settled when a
// response with the same identifier is accepted. The response is not processed by
// the session; acting on it is up to the caller.
//
// It fails with domain.ErrNoEndpoint when no endpoint is bound, with
// domain.ErrDuplicateRequest when the identifier is still pending, and with
// domain.ErrSessionClosed after Close. Pending handles are rejected with
// domain.ErrSessionClosed at teardown.
func (s *Session) Request(ctx context.Context, action domain.RequestAction) (*pending.Handle, error) {
	if action == nil {
		return nil, domain.ErrNilAction
	}
	id := action.RequestIdentifier()
	if id == "" {
		return nil, domain.ErrInvalidRequestID
	}

	s.mu.Lock()
	closed, endpoint, clientID := s.closed, s.endpoint, s.clientID
	s.mu.Unlock()

	if closed {
		return nil, domain.ErrSessionClosed
	}
	if endpoint == nil {
		return nil, domain.ErrNoEndpoint
	}

	// Register before sending so that a response racing the send is still correlated.
	h, err := s.requests.Register(id)
	if err != nil {
		return nil, err
	}
	emit(ctx, s.hooks.OnRequest, &Event{ClientID: clientID, Kind: action.Kind(), ID: id})

	s.send(ctx, endpoint, clientID, action)
	return h, nil
}

// SetStatus replaces the status shown by the client; nil clears it.
func (s *Session) SetStatus(ctx context.Context, status *domain.ServerStatus) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	if status != nil {
		copied := *status
		status = &copied
	}
	s.status = status
	endpoint, clientID := s.endpoint, s.clientID
	s.mu.Unlock()

	s.send(ctx, endpoint, clientID, domain.StatusAction(status))
	return nil
}

// Restore replaces model, options and revision from a snapshot without notifying the client.
func (s *Session) Restore(snapshot *domain.Snapshot) {
	if snapshot == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if snapshot.Model != nil {
		s.model = snapshot.Model.Clone()
	}
	if snapshot.Options != nil {
		s.options = maps.Clone(snapshot.Options)
	}
	s.revision = snapshot.Revision
}

// Snapshot returns the persistable view of the session.
func (s *Session) Snapshot() *domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &domain.Snapshot{
		ClientID: s.clientID,
		Options:  maps.Clone(s.options),
		Model:    s.model.Clone(),
		Revision: s.revision,
		SavedAt:  time.Now().UTC(),
	}
}

// Close tears the session down: pending requests are rejected with
// domain.ErrSessionClosed, the endpoint is unbound and the worker stops.
// It returns the number of rejected requests. Calling it again is a no-op.
// Close must not be called from a Handler.
func (s *Session) Close() int {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0
	}
	s.closed = true
	s.endpoint = nil
	clientID := s.clientID
	s.mu.Unlock()

	rejected := s.requests.RejectAll(domain.ErrSessionClosed)
	s.cancel()
	<-s.workerDone

	s.logger.Info("Session closed", "client_id", clientID, "rejected_requests", rejected)
	emit(context.Background(), s.hooks.OnClose, &Event{ClientID: clientID, Count: rejected})
	return rejected
}

func (s *Session) send(ctx context.Context, endpoint ports.RemoteEndpoint, clientID string, action domain.Action) {
	if endpoint == nil {
		s.logger.DebugContext(ctx, "No endpoint bound, dropping action",
			"client_id", clientID,
			"kind", action.Kind(),
		)
		return
	}
	endpoint.Accept(domain.ActionMessage{ClientID: clientID, Action: action})
	emit(ctx, s.hooks.OnDispatch, &Event{ClientID: clientID, Kind: action.Kind()})
}
