// Package connection implements the guardian's Connection Manager.
//
// The Connection Manager:
//   - Maintains at most one websocket to the relay, identified by guardian id
//   - Correlates requests with responses by requestId, with a per-request timeout
//   - Reconnects at a fixed interval until a maximum number of attempts
//   - Broadcasts status transitions and inbound envelopes to subscribers
//
// State changes are serialised by a single mutex. Subscribers are called from
// one dispatcher goroutine, in transition order, and may call back into the
// Manager.
package connection
