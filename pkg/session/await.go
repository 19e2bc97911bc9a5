package session

import (
	"context"
	"fmt"

	"github.com/aretw0/diagram/pkg/domain"
	"github.com/aretw0/diagram/pkg/pending"
)

// Await waits for the handle and returns its response as T.
// A response of another type fails with domain.ErrUnexpectedResponse.
func Await[T domain.ResponseAction](ctx context.Context, h *pending.Handle) (T, error) {
	var zero T

	resp, err := h.Wait(ctx)
	if err != nil {
		return zero, err
	}

	typed, ok := resp.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s for request %s", domain.ErrUnexpectedResponse, resp.Kind(), h.ID())
	}
	return typed, nil
}
