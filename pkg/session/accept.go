package session

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/aretw0/diagram/pkg/domain"
	"github.com/aretw0/diagram/pkg/layout"
)

// Handler processes one inbound action of a given kind on the session's worker.
type Handler interface {
	Handle(ctx context.Context, s *Session, action domain.Action) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, s *Session, action domain.Action) error

// Handle calls f(ctx, s, action).
func (f HandlerFunc) Handle(ctx context.Context, s *Session, action domain.Action) error {
	return f(ctx, s, action)
}

// Handle registers the handler for an action kind, replacing any previous one.
func (s *Session) Handle(kind string, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = handler
}

// Accept delivers one action received from the client.
//
// A response whose identifier matches a pending request settles that request and
// is not handled any further; a response matching nothing is dropped without error.
// Any other action is queued for the session's worker. Accept never blocks on
// action handling.
func (s *Session) Accept(ctx context.Context, msg domain.ActionMessage) error {
	action := msg.Action
	if action == nil {
		return domain.ErrNilAction
	}
	if s.Closed() {
		return domain.ErrSessionClosed
	}

	clientID := s.ClientID()
	emit(ctx, s.hooks.OnAccept, &Event{ClientID: clientID, Kind: action.Kind()})

	if resp, ok := action.(domain.ResponseAction); ok {
		if id := resp.ResponseIdentifier(); id != "" {
			s.correlate(ctx, clientID, id, resp)
			return nil
		}
	}

	s.inbox.push(action)
	return nil
}

func (s *Session) correlate(ctx context.Context, clientID, id string, resp domain.ResponseAction) {
	var matched bool
	if reject, ok := resp.(*domain.RejectAction); ok {
		matched = s.requests.Reject(id, fmt.Errorf("%w: %s", domain.ErrRequestRejected, reject.Message))
	} else {
		matched = s.requests.Resolve(id, resp)
	}

	emit(ctx, s.hooks.OnResolve, &Event{ClientID: clientID, Kind: resp.Kind(), ID: id, Matched: matched})
	if !matched {
		s.logger.DebugContext(ctx, "Ignoring response without pending request",
			"client_id", clientID,
			"kind", resp.Kind(),
			"request_id", id,
		)
	}
}

// run is the session's worker: it handles queued actions in arrival order until Close.
func (s *Session) run() {
	defer close(s.workerDone)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.inbox.signal:
			for _, action := range s.inbox.drain() {
				if s.ctx.Err() != nil {
					return
				}
				s.handle(s.ctx, action)
			}
		}
	}
}

func (s *Session) handle(ctx context.Context, action domain.Action) {
	s.mu.Lock()
	handler := s.handlers[action.Kind()]
	clientID := s.clientID
	s.mu.Unlock()

	if handler == nil {
		s.logger.Warn("No handler for action", "client_id", clientID, "kind", action.Kind())
		emit(ctx, s.hooks.OnHandled, &Event{ClientID: clientID, Kind: action.Kind()})
		return
	}

	err := handler.Handle(ctx, s, action)
	if err != nil {
		s.logger.Error("Action handling failed",
			"client_id", clientID,
			"kind", action.Kind(),
			"err", err,
		)
	}
	emit(ctx, s.hooks.OnHandled, &Event{ClientID: clientID, Kind: action.Kind(), Err: err})
}

// handleRequestModel stores the client options and answers with a setModel action.
func handleRequestModel(ctx context.Context, s *Session, action domain.Action) error {
	req, ok := action.(*domain.RequestModelAction)
	if !ok {
		return fmt.Errorf("unexpected action type %T for %s", action, domain.KindRequestModel)
	}

	options := maps.Clone(req.Options)
	if options == nil {
		options = map[string]string{}
	}

	s.mu.Lock()
	s.options = options
	current := s.model
	clientID := s.clientID
	s.mu.Unlock()

	var root *domain.ModelRoot
	if s.source != nil {
		generated, err := s.source.Generate(ctx, clientID, maps.Clone(options))
		if err != nil {
			if statusErr := s.SetStatus(ctx, &domain.ServerStatus{Severity: domain.SeverityError, Message: err.Error()}); statusErr != nil {
				s.logger.DebugContext(ctx, "Cannot report model generation failure",
					"client_id", clientID,
					"err", statusErr,
				)
			}
			return fmt.Errorf("generating model: %w", err)
		}
		root = generated
	} else {
		root = current.Clone()
	}

	return s.submit(ctx, submission{root: root, cause: req, responseID: req.RequestID})
}

// handleLayout runs one forced layout pass over a copy of the current model.
func handleLayout(ctx context.Context, s *Session, action domain.Action) error {
	if !layout.ShouldLayout(s.layoutKind, s.layoutEngine, action) {
		s.logger.DebugContext(ctx, "Layout request ignored by policy",
			"client_id", s.ClientID(),
			"layout_kind", s.layoutKind,
		)
		return nil
	}

	root := s.Model().Clone()
	return s.submit(ctx, submission{root: root, cause: action, animate: true})
}

// inbox is an unbounded FIFO of actions waiting for the worker; push never blocks.
type inbox struct {
	mu     sync.Mutex
	queue  []domain.Action
	signal chan struct{}
}

func newInbox() *inbox {
	return &inbox{signal: make(chan struct{}, 1)}
}

func (b *inbox) push(action domain.Action) {
	b.mu.Lock()
	b.queue = append(b.queue, action)
	b.mu.Unlock()

	select {
	case b.signal <- struct{}{}:
	default:
	}
}

func (b *inbox) drain() []domain.Action {
	b.mu.Lock()
	defer b.mu.Unlock()
	queue := b.queue
	b.queue = nil
	return queue
}
