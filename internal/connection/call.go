package connection

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/carewatch/guardian/internal/protocol"
)

// Call is an in-flight correlated request. It completes exactly once, with
// either a response payload or an error.
type Call struct {
	RequestID string
	Type      protocol.MessageType
	To        string

	started time.Time
	timer   *time.Timer
	done    chan struct{}
	once    sync.Once

	payload json.RawMessage
	err     error
}

func newCall(env protocol.Envelope) *Call {
	return &Call{
		RequestID: env.RequestID,
		Type:      env.Type,
		To:        env.To,
		started:   time.Now(),
		done:      make(chan struct{}),
	}
}

// failedCall returns a call that is already rejected with err.
func failedCall(msgType protocol.MessageType, to string, err error) *Call {
	c := &Call{Type: msgType, To: to, started: time.Now(), done: make(chan struct{})}
	c.finish(nil, err)
	return c
}

// finish completes the call. Later calls are ignored.
func (c *Call) finish(payload json.RawMessage, err error) bool {
	first := false
	c.once.Do(func() {
		first = true
		if c.timer != nil {
			c.timer.Stop()
		}
		c.payload = payload
		c.err = err
		close(c.done)
	})
	return first
}

// Done is closed when the call completes.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Err returns the call's error, or nil if it has not completed or succeeded.
func (c *Call) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Payload returns the response payload, or nil if the call has not
// completed successfully.
func (c *Call) Payload() json.RawMessage {
	select {
	case <-c.done:
		return c.payload
	default:
		return nil
	}
}

// Wait blocks until the call completes or ctx is done. Cancelling ctx only
// stops the wait; the request stays pending until answered or timed out.
func (c *Call) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-c.done:
		return c.payload, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
