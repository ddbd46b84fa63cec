package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultReconnectInterval    = 3 * time.Second
	DefaultMaxReconnectAttempts = 10
	DefaultRequestTimeout       = 30 * time.Second
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultPingInterval         = 30 * time.Second
	DefaultPingTimeout          = 75 * time.Second
	DefaultAPITimeout           = 15 * time.Second
	DefaultMaxRetries           = 3
	DefaultSyncInterval         = 10 * time.Minute
	DefaultIdentityPath         = "guardian-identity.yaml"
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 5
	DefaultMinConns             = 1
	DefaultBatchSize            = 100
	DefaultFlushInterval        = 2 * time.Second
	DefaultBufferSize           = 1000
	DefaultPollInterval         = 5 * time.Minute
	DefaultPollConcurrency      = 4
	DefaultPollTimeout          = 15 * time.Second
	DefaultMetricsPort          = 9090
	DefaultMetricsPath          = "/metrics"
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
)

// ApplyDefaults fills unset optional fields.
func (c *GuardianConfig) ApplyDefaults() {
	// Relay defaults
	if c.Relay.ReconnectInterval == 0 {
		c.Relay.ReconnectInterval = DefaultReconnectInterval
	}
	if c.Relay.MaxReconnectAttempts == 0 {
		c.Relay.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Relay.RequestTimeout == 0 {
		c.Relay.RequestTimeout = DefaultRequestTimeout
	}
	if c.Relay.HandshakeTimeout == 0 {
		c.Relay.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Relay.WriteTimeout == 0 {
		c.Relay.WriteTimeout = DefaultWriteTimeout
	}
	if c.Relay.PingInterval == 0 {
		c.Relay.PingInterval = DefaultPingInterval
	}
	if c.Relay.PingTimeout == 0 {
		c.Relay.PingTimeout = DefaultPingTimeout
	}

	// API defaults
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.SyncInterval == 0 {
		c.API.SyncInterval = DefaultSyncInterval
	}

	if c.Identity.Path == "" {
		c.Identity.Path = DefaultIdentityPath
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Writer defaults
	if c.Writer.BatchSize == 0 {
		c.Writer.BatchSize = DefaultBatchSize
	}
	if c.Writer.FlushInterval == 0 {
		c.Writer.FlushInterval = DefaultFlushInterval
	}
	if c.Writer.BufferSize == 0 {
		c.Writer.BufferSize = DefaultBufferSize
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.Concurrency == 0 {
		c.Poller.Concurrency = DefaultPollConcurrency
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = DefaultPollTimeout
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}
