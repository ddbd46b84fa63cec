package store

import (
	"sync"
	"time"

	"github.com/carewatch/guardian/internal/connection"
)

// ConnectionSnapshot is a point-in-time copy of the connection state.
type ConnectionSnapshot struct {
	Status            connection.Status `json:"status"`
	ReconnectAttempts int               `json:"reconnectAttempts"`
	LastConnectedAt   time.Time         `json:"lastConnectedAt,omitzero"`
	LastError         string            `json:"lastError,omitempty"`
}

// StatusSource is the part of connection.Manager the tracker listens to.
type StatusSource interface {
	OnStatusChange(h connection.StatusHandler) func()
	ReconnectAttempts() int
}

// Connection tracks the relay connection for health reporting.
type Connection struct {
	mu   sync.RWMutex
	snap ConnectionSnapshot
	now  func() time.Time
}

// NewConnection returns a tracker in the disconnected state.
func NewConnection() *Connection {
	return &Connection{
		snap: ConnectionSnapshot{Status: connection.StatusDisconnected},
		now:  time.Now,
	}
}

// Track subscribes to src and returns the unsubscribe function.
func (c *Connection) Track(src StatusSource) func() {
	return src.OnStatusChange(func(st connection.Status) {
		c.Observe(st, src.ReconnectAttempts())
	})
}

// Observe records a status transition.
func (c *Connection) Observe(st connection.Status, attempts int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snap.Status = st
	c.snap.ReconnectAttempts = attempts
	if st == connection.StatusConnected {
		c.snap.LastConnectedAt = c.now()
		c.snap.ReconnectAttempts = 0
		c.snap.LastError = ""
	}
}

// SetError records the most recent connection failure. A nil error clears it.
func (c *Connection) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.snap.LastError = ""
		return
	}
	c.snap.LastError = err.Error()
}

// Snapshot returns the current state.
func (c *Connection) Snapshot() ConnectionSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}
