// Package registry keeps the live diagram sessions of a server.
//
// Sessions are created explicitly, looked up by client id and evicted when the
// client goes away. With a ports.SnapshotStore configured, eviction saves the
// session's model, options and revision, and the next Create for the same client
// restores them. Create and Evict for one client id never run concurrently; a
// ports.DistributedLocker extends that guarantee across replicas.
package registry
