// Package model defines the domain records shared by the relay protocol,
// the stores and the database layer.
//
// Conventions:
//   - Timestamps on the wire are ISO 8601 strings; persisted timestamps are time.Time (UTC)
//   - IDs are opaque strings assigned by the elder device or the relay
//   - Alert IDs missing on the wire are assigned a UUID before persistence
package model
