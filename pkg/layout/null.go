package layout

import (
	"context"

	"github.com/aretw0/diagram/pkg/domain"
)

// Null is a layout engine that does nothing.
type Null struct{}

// Layout implements ports.LayoutEngine.
func (Null) Layout(context.Context, *domain.ModelRoot, domain.Action, domain.LayoutKind) error {
	return nil
}
