/*
Package domain contains the core types of the diagram session protocol.

It defines the diagram model exchanged with the remote renderer, the closed set of
actions that travel in both directions, the server status, and the layout policy.
This package is kept pure and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - ModelRoot: The root of the authoritative diagram model (a tree of Elements).
  - Action: A tagged message. RequestAction and ResponseAction carry correlation ids.
  - ActionMessage: An Action addressed to (or received from) one client.
  - ServerStatus: A severity/message pair shown by the client as a status popup.
  - LayoutKind: The policy deciding when server-side layout runs.
  - Snapshot: The persisted view of a session, used to restore a client.
*/
package domain
