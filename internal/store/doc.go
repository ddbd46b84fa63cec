// Package store holds the guardian's in-memory view of the world: the relay
// connection status and the registry of paired elders.
//
// The elder registry is kept current from three directions:
//   - Syncer reconciles it against the pairing API on an interval.
//   - State responses and alert pushes update individual entries.
//   - An optional Persister loads and saves it across restarts.
package store
