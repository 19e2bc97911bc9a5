/*
Package ports defines the driven ports (interfaces) of the diagram session.
These interfaces decouple the session from transports, layout algorithms, model
sources, and storage backends.

# Key Interfaces

  - RemoteEndpoint: The action channel towards one remote client (fire-and-forget).
  - LayoutEngine: Computes a layout for a model root, in place.
  - ModelSource: Produces the model for a client from its options.
  - SnapshotStore: Persists session snapshots so clients can be restored.
  - DistributedLocker: Coordinates session creation and eviction across replicas.
*/
package ports
