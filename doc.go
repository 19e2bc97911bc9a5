/*
Package diagram is a server for remote diagram clients.

A client connects over a WebSocket and exchanges action messages with the server. Each
message names the client (one browser tab may show several diagrams) and carries an
action such as requestModel, setModel or computedBounds. The server keeps one session
per client: the current model, the options the client asked with, a layout policy and
the requests still waiting for a response.

# Layout

  - pkg/domain: model tree, actions and sentinel errors.
  - pkg/session: the per-client session (dispatch, request/response correlation, model updates).
  - pkg/registry: live sessions keyed by client id, with snapshot persistence on eviction.
  - pkg/codec: the JSON wire form of action messages.
  - pkg/layout: the server-side layout engine and the policy deciding when it runs.
  - pkg/adapters: WebSocket and HTTP transports; memory, file and redis stores and model sources.
  - cmd/diagramd: the server binary.

# Usage

	diagramd serve --models ./models --listen :8080

A client then connects to ws://localhost:8080/ws and sends

	{"clientId":"tab-1","action":{"kind":"requestModel","options":{"diagramType":"class"}}}

to receive the model of models/class.yaml.
*/
package diagram
