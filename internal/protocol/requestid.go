package protocol

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
)

// NewRequestID returns a random UUID v4 used to correlate a request with its
// response. If the system entropy source fails it falls back to a
// pseudo-random v4-shaped id; ids need to be unique, not unpredictable.
func NewRequestID() string {
	id, err := uuid.NewRandom()
	if err == nil {
		return id.String()
	}
	return fallbackRequestID()
}

func fallbackRequestID() string {
	var b [16]byte
	for i := range b {
		b[i] = byte(rand.UintN(256))
	}
	b[6] = (b[6] & 0x0f) | 0x40 // version 4
	b[8] = (b[8] & 0x3f) | 0x80 // RFC 4122 variant
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}
