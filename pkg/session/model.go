package session

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/diagram/pkg/domain"
	"github.com/aretw0/diagram/pkg/layout"
)

// submission is one pass through the model pipeline.
type submission struct {
	root       *domain.ModelRoot
	cause      domain.Action // nil for programmatic updates
	animate    bool
	responseID string
}

// SetModel makes root the current model and sends it to the client, replacing the
// client's model without animation. root must not be nil and must not be modified
// afterwards. Depending on the layout policy a layout pass runs first; if it fails
// the previous model stays current, nothing is sent, and the error wraps
// domain.ErrLayoutFailed.
func (s *Session) SetModel(ctx context.Context, root *domain.ModelRoot) error {
	return s.submit(ctx, submission{root: root})
}

// UpdateModel behaves like SetModel but asks the client to animate the transition
// from the previous model to the new one.
func (s *Session) UpdateModel(ctx context.Context, root *domain.ModelRoot) error {
	return s.submit(ctx, submission{root: root, animate: true})
}

func (s *Session) submit(ctx context.Context, sub submission) error {
	if sub.root == nil {
		return domain.ErrNilModel
	}
	if s.Closed() {
		return domain.ErrSessionClosed
	}

	if s.clientLayout {
		if err := s.requestClientBounds(ctx, sub.root); err != nil {
			return err
		}
	}

	if layout.ShouldLayout(s.layoutKind, s.layoutEngine, sub.cause) {
		if err := s.runLayout(ctx, sub.root, sub.cause); err != nil {
			return err
		}
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	s.revision++
	sub.root.Revision = s.revision
	s.model = sub.root
	endpoint, clientID := s.endpoint, s.clientID
	s.mu.Unlock()

	var action domain.Action
	if sub.animate {
		action = &domain.UpdateModelAction{NewRoot: sub.root, Animate: true}
	} else {
		action = &domain.SetModelAction{NewRoot: sub.root, ResponseID: sub.responseID}
	}

	s.logger.DebugContext(ctx, "Model replaced",
		"client_id", clientID,
		"kind", action.Kind(),
		"revision", sub.root.Revision,
	)
	s.send(ctx, endpoint, clientID, action)
	return nil
}

func (s *Session) runLayout(ctx context.Context, root *domain.ModelRoot, cause domain.Action) error {
	start := time.Now()
	err := s.layoutEngine.Layout(ctx, root, cause, s.layoutKind)

	ev := &Event{ClientID: s.ClientID(), Duration: time.Since(start), Err: err}
	if cause != nil {
		ev.Kind = cause.Kind()
	}
	emit(ctx, s.hooks.OnLayout, ev)

	if err != nil {
		s.logger.WarnContext(ctx, "Layout failed, keeping previous model",
			"client_id", ev.ClientID,
			"err", err,
		)
		return fmt.Errorf("%w: %w", domain.ErrLayoutFailed, err)
	}
	return nil
}

// requestClientBounds sends the model to the client for measuring and applies the
// returned bounds to root. It is skipped when no endpoint is bound.
func (s *Session) requestClientBounds(ctx context.Context, root *domain.ModelRoot) error {
	if s.RemoteEndpoint() == nil {
		return nil
	}

	h, err := s.Request(ctx, &domain.RequestBoundsAction{
		RequestID: domain.NewRequestID(),
		NewRoot:   root.Clone(),
	})
	if err != nil {
		return fmt.Errorf("requesting client bounds: %w", err)
	}

	resp, err := Await[*domain.ComputedBoundsAction](ctx, h)
	if err != nil {
		h.Cancel()
		return fmt.Errorf("waiting for client bounds: %w", err)
	}

	ApplyBounds(root, resp.Bounds)
	return nil
}

// ApplyBounds copies client-computed bounds onto the elements of root.
// Bounds for unknown elements are ignored.
func ApplyBounds(root *domain.ModelRoot, bounds []domain.ElementAndBounds) {
	for _, b := range bounds {
		el := root.Find(b.ElementID)
		if el == nil {
			continue
		}
		el.Position = &domain.Point{X: b.NewBounds.X, Y: b.NewBounds.Y}
		el.Size = &domain.Dimension{Width: b.NewBounds.Width, Height: b.NewBounds.Height}
	}
}
