package ports

import (
	"context"

	"github.com/aretw0/diagram/pkg/domain"
)

// LayoutEngine computes a layout for the given model and modifies it in place.
// cause is the action that triggered the pass (nil for a programmatic SetModel).
// It is called without holding any session lock and may be slow.
type LayoutEngine interface {
	Layout(ctx context.Context, root *domain.ModelRoot, cause domain.Action, kind domain.LayoutKind) error
}

// ModelSource produces the diagram model for a client, typically from the options
// of its RequestModelAction. It returns domain.ErrModelNotFound when the options
// select nothing.
type ModelSource interface {
	Generate(ctx context.Context, clientID string, options map[string]string) (*domain.ModelRoot, error)
}

// Watchable defines an interface for sources that can notify about backend changes.
type Watchable interface {
	// Watch returns a channel that receives the name of each diagram that changed.
	Watch(ctx context.Context) (<-chan string, error)
}
