package session

import (
	"log/slog"

	"github.com/aretw0/diagram/pkg/domain"
	"github.com/aretw0/diagram/pkg/ports"
)

// Option configures a Session.
type Option func(*Session)

// WithLayoutEngine sets the pluggable layout capability.
// Without an engine no layout ever runs, whatever the layout kind.
func WithLayoutEngine(engine ports.LayoutEngine) Option {
	return func(s *Session) {
		s.layoutEngine = engine
	}
}

// WithLayoutKind sets the layout policy (default: AUTOMATIC).
func WithLayoutKind(kind domain.LayoutKind) Option {
	return func(s *Session) {
		s.layoutKind = kind
	}
}

// WithModelSource sets the source used to answer a requestModel action.
// Without a source the session re-sends its current model.
func WithModelSource(source ports.ModelSource) Option {
	return func(s *Session) {
		s.source = source
	}
}

// WithClientLayout makes the session ask the client for element bounds before
// every model update, as needed when the client measures text and shapes.
func WithClientLayout(enabled bool) Option {
	return func(s *Session) {
		s.clientLayout = enabled
	}
}

// WithEndpoint binds the remote endpoint at construction.
func WithEndpoint(endpoint ports.RemoteEndpoint) Option {
	return func(s *Session) {
		s.endpoint = endpoint
	}
}

// WithHandler registers the handler for an action kind.
// It replaces the built-in handling of requestModel and layout when used for those kinds.
func WithHandler(kind string, handler Handler) Option {
	return func(s *Session) {
		s.handlers[kind] = handler
	}
}

// WithHooks registers observability hooks.
func WithHooks(hooks Hooks) Option {
	return func(s *Session) {
		s.hooks = hooks
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}
