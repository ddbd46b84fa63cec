package router

import (
	"time"

	"github.com/carewatch/guardian/internal/buffer"
	"github.com/carewatch/guardian/internal/model"
)

// RouterConfig holds configuration for the Message Router.
type RouterConfig struct {
	InboundBufferSize int // Default: 256
	AlertBufferSize   int // Default: 1000
}

// DefaultRouterConfig returns default configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		InboundBufferSize: 256,
		AlertBufferSize:   1000,
	}
}

// AlertMsg is an alert ready to be persisted.
type AlertMsg struct {
	Alert      model.Alert
	ReceivedAt time.Time
	Source     string // "event" or "history"
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	MessagesReceived int64
	MessagesRouted   int64
	ParseErrors      int64
	Ignored          int64
	AlertBuffer      buffer.Stats
}
