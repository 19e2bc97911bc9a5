package layout

import (
	"github.com/aretw0/diagram/pkg/domain"
	"github.com/aretw0/diagram/pkg/ports"
)

// ShouldLayout reports whether engine must run before the model caused by cause
// becomes current.
//
//	AUTOMATIC, INTERACTIVE: always
//	MANUAL:                 only when cause is a LayoutAction
//	NONE:                   never, not even for a LayoutAction
//
// Without an engine it always returns false.
func ShouldLayout(kind domain.LayoutKind, engine ports.LayoutEngine, cause domain.Action) bool {
	if engine == nil {
		return false
	}
	switch kind {
	case domain.LayoutAutomatic, domain.LayoutInteractive:
		return true
	case domain.LayoutManual:
		return IsLayoutRequest(cause)
	default:
		return false
	}
}

// IsLayoutRequest reports whether the action explicitly asks for a layout pass.
func IsLayoutRequest(cause domain.Action) bool {
	_, ok := cause.(*domain.LayoutAction)
	return ok
}
