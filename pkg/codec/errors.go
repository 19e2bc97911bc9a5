package codec

import (
	"errors"
	"fmt"
)

// ErrMissingKind is returned when an action on the wire has no "kind" field.
var ErrMissingKind = errors.New("action kind missing")

// ErrMissingAction is returned when a message carries no action object.
var ErrMissingAction = errors.New("message has no action")

// DecodeError reports an action whose fields do not fit its kind.
type DecodeError struct {
	Kind string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %q action: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
