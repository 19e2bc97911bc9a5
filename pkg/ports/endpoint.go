package ports

import "github.com/aretw0/diagram/pkg/domain"

// RemoteEndpoint accepts one outbound action message for eventual delivery to the
// remote client. There is no acknowledgment and no backpressure contract: an
// implementation may drop messages it cannot deliver.
type RemoteEndpoint interface {
	Accept(msg domain.ActionMessage)
}

// EndpointFunc adapts a function to RemoteEndpoint.
type EndpointFunc func(msg domain.ActionMessage)

// Accept calls f(msg).
func (f EndpointFunc) Accept(msg domain.ActionMessage) { f(msg) }
