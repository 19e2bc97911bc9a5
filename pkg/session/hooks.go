package session

import (
	"context"
	"time"
)

// Event describes one observable step of a session.
type Event struct {
	ClientID string
	Kind     string        // action kind, if any
	ID       string        // request or response identifier, if any
	Matched  bool          // OnResolve: a pending request was settled
	Duration time.Duration // OnLayout
	Count    int           // OnClose: requests rejected at teardown
	Err      error
}

// Hooks defines callbacks for session observability.
// All callbacks are optional and must not block.
type Hooks struct {
	OnDispatch func(context.Context, *Event)
	OnRequest  func(context.Context, *Event)
	OnAccept   func(context.Context, *Event)
	OnResolve  func(context.Context, *Event)
	OnLayout   func(context.Context, *Event)
	OnHandled  func(context.Context, *Event)
	OnClose    func(context.Context, *Event)
}

func emit(ctx context.Context, fn func(context.Context, *Event), ev *Event) {
	if fn != nil {
		fn(ctx, ev)
	}
}
