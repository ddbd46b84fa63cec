// Package protocol defines the relay wire format.
//
// Every frame exchanged with the relay is an Envelope:
//
//	{"type": "GET_STATE", "from": "<guardian id>", "to": "<elder id>",
//	 "requestId": "<uuid>", "payload": {...}, "timestamp": "2024-01-01T00:00:00.000Z"}
//
// The payload is a tagged union keyed by the envelope type. Decode maps each
// MessageType to its payload struct and validates command payloads at the
// boundary, so callers work with concrete types instead of raw JSON.
package protocol
