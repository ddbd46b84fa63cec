// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Relay connection status, reconnect attempts and inbound message rates
//   - Request outcomes and round-trip latency
//   - Alert writer batch inserts and conflicts
//   - State poller rounds and failures
package metrics
