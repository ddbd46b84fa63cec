// Package poller implements the State Poller component.
//
// The State Poller:
//   - Sends GET_STATE to every known elder on an interval
//   - Bounds in-flight requests with an errgroup limit
//   - Marks elders offline when they fail to answer
//   - Skips rounds while the relay connection is down
//
// Responses reach the elder registry through the message router.
package poller
