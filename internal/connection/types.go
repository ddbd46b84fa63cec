package connection

import (
	"errors"
	"net/http"
	"time"

	"github.com/carewatch/guardian/internal/protocol"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrNoGuardianID    = errors.New("no guardian id")
	ErrTimeout         = errors.New("request timeout")
	ErrDisconnected    = errors.New("connection closed before response")
	ErrClosed          = errors.New("manager closed")
	ErrStaleConnection = errors.New("connection stale (no pong)")
)

// ServerError is returned to a caller whose request was answered with an
// ERROR or COMMAND_ERROR envelope.
type ServerError struct {
	Type    protocol.MessageType
	Message string
	Details string
}

func (e *ServerError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// Status is the externally visible connection state.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
)

// Frame is a raw websocket message with its local receive time.
type Frame struct {
	Data       []byte
	ReceivedAt time.Time
}

// ClientConfig configures a single websocket client.
type ClientConfig struct {
	URL              string        // Full endpoint including deviceId and type query
	Header           http.Header   // Extra handshake headers
	HandshakeTimeout time.Duration // Dial + upgrade deadline
	WriteTimeout     time.Duration // Write deadline for sends
	PingInterval     time.Duration // Keepalive ping period (0 = disabled)
	PingTimeout      time.Duration // Max time without pong before the socket is stale
	BufferSize       int           // Inbound frame channel buffer
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      75 * time.Second,
		BufferSize:       256,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	URL                  string        // Relay websocket URL (e.g., wss://relay.example.com/ws)
	Header               http.Header   // Extra handshake headers (e.g., Authorization)
	ReconnectInterval    time.Duration // Fixed wait between reconnect attempts
	MaxReconnectAttempts int           // Attempts before giving up until the next Connect
	RequestTimeout       time.Duration // Deadline for a correlated response
	Client               ClientConfig  // Per-socket transport settings (URL and Header are filled in)
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ReconnectInterval:    3 * time.Second,
		MaxReconnectAttempts: 10,
		RequestTimeout:       30 * time.Second,
		Client:               DefaultClientConfig(),
	}
}

// MessageHandler receives every inbound envelope delivered to subscribers.
type MessageHandler func(protocol.Envelope)

// StatusHandler receives every status transition.
type StatusHandler func(Status)

// Observer receives manager events for instrumentation. Methods are called
// with internal state locked and must not block or call back into the manager.
type Observer interface {
	StatusChanged(Status)
	ReconnectScheduled(attempt int)
	MessageReceived(protocol.MessageType)
	RequestFinished(msgType protocol.MessageType, outcome string, elapsed time.Duration)
	PendingChanged(n int)
}

// Request outcomes reported to Observer.RequestFinished.
const (
	OutcomeOK           = "ok"
	OutcomeServerError  = "server_error"
	OutcomeTimeout      = "timeout"
	OutcomeDisconnected = "disconnected"
	OutcomeSendFailed   = "send_failed"
)

type nopObserver struct{}

func (nopObserver) StatusChanged(Status) {}
func (nopObserver) ReconnectScheduled(int) {}
func (nopObserver) MessageReceived(protocol.MessageType) {}
func (nopObserver) RequestFinished(protocol.MessageType, string, time.Duration) {}
func (nopObserver) PendingChanged(int) {}
