/*
Package session implements the server side of one diagram client.

A Session owns the authoritative model, the status popup, and the options received
from the client. It sends actions through a bound ports.RemoteEndpoint and receives
actions through Accept.

# Inbound actions

Accept first tries to correlate the action with an outstanding Request: a response
whose identifier matches a pending request settles that request's handle and is not
processed any further. A response matching nothing is dropped. Every other action is
queued and handled in order by the session's worker goroutine, so delivery never
blocks on layout or on a client round trip:

  - requestModel stores the client options and (re)sends the model.
  - layout runs one forced layout pass and sends an animated update.
  - any other kind goes to the Handler registered for it.

# Model updates

SetModel and UpdateModel share one pipeline: an optional bounds round trip with the
client, an optional layout pass decided by layout.ShouldLayout, an atomic swap of the
current root, and the dispatch of a setModel (instantaneous) or updateModel (animated)
action. The layout engine runs without holding the session lock.

# Unbound endpoint

Dispatch, SetModel, UpdateModel and SetStatus silently drop their outbound message
when no endpoint is bound; nothing is queued or replayed after a later bind. Request
fails with domain.ErrNoEndpoint because its caller would wait forever.
*/
package session
