package domain

import (
	"fmt"
	"strings"
)

// LayoutKind is the policy deciding when the server computes a layout.
type LayoutKind string

const (
	// LayoutAutomatic re-layouts on every model change, overwriting layout data in the model.
	LayoutAutomatic LayoutKind = "AUTOMATIC"

	// LayoutInteractive re-layouts on every model change, deriving element order from
	// the positions already in the model instead of computing it.
	LayoutInteractive LayoutKind = "INTERACTIVE"

	// LayoutManual re-layouts only when the client sends a LayoutAction.
	LayoutManual LayoutKind = "MANUAL"

	// LayoutNone never re-layouts; the model must carry complete layout data.
	LayoutNone LayoutKind = "NONE"
)

// ParseLayoutKind parses a layout kind, ignoring case.
func ParseLayoutKind(s string) (LayoutKind, error) {
	switch kind := LayoutKind(strings.ToUpper(strings.TrimSpace(s))); kind {
	case LayoutAutomatic, LayoutInteractive, LayoutManual, LayoutNone:
		return kind, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLayoutKind, s)
}

func (k LayoutKind) String() string { return string(k) }
