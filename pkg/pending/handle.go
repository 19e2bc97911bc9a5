package pending

import (
	"context"

	"github.com/aretw0/diagram/pkg/domain"
)

// Handle is the result of one outstanding request.
// It can be awaited from any goroutine and is settled exactly once.
type Handle struct {
	id    string
	table *Table
	done  chan struct{}

	// written once before done is closed
	resp domain.ResponseAction
	err  error
}

// ID returns the request identifier used to correlate the response.
func (h *Handle) ID() string {
	return h.id
}

// Done is closed once the handle is settled.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result returns the settled response or error. It must only be called after Done is closed.
func (h *Handle) Result() (domain.ResponseAction, error) {
	<-h.done
	return h.resp, h.err
}

// Wait blocks until the handle is settled or ctx is done.
// A canceled ctx does not cancel the request; call Cancel for that.
func (h *Handle) Wait(ctx context.Context) (domain.ResponseAction, error) {
	select {
	case <-h.done:
		return h.resp, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel withdraws the request. A response arriving afterwards is ignored.
// It has no effect on a handle that is already settled.
func (h *Handle) Cancel() {
	if h.table.remove(h) {
		h.settle(nil, domain.ErrRequestCanceled)
	}
}

func (h *Handle) settle(resp domain.ResponseAction, err error) {
	h.resp = resp
	h.err = err
	close(h.done)
}
