package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/carewatch/guardian/internal/buffer"
	"github.com/carewatch/guardian/internal/protocol"
)

// socketState tracks one physical socket through its lifecycle.
type socketState int

const (
	socketConnecting socketState = iota
	socketOpen
	socketClosing
	socketClosed
)

// socket is one dial attempt and, if it succeeds, the resulting connection.
type socket struct {
	id     uint64
	client Client
	state  socketState
	cancel context.CancelFunc
}

// notice is queued for the dispatcher. Exactly one field is set.
type notice struct {
	status Status
	env    *protocol.Envelope
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithObserver installs an instrumentation observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithClientFactory replaces the websocket client constructor.
func WithClientFactory(f func(ClientConfig, *slog.Logger) Client) Option {
	return func(m *Manager) {
		if f != nil {
			m.newClient = f
		}
	}
}

// Manager owns the single relay connection for a guardian. It correlates
// requests with responses, reconnects at a fixed interval up to a ceiling
// and fans inbound envelopes and status changes out to subscribers.
type Manager struct {
	cfg       ManagerConfig
	logger    *slog.Logger
	observer  Observer
	newClient func(ClientConfig, *slog.Logger) Client

	mu              sync.Mutex
	guardianID      string
	sock            *socket
	nextSocketID    uint64
	pending         map[string]*Call
	attempts        int
	shouldReconnect bool
	reconnectTimer  *time.Timer
	status          Status
	closed          bool

	subMu      sync.RWMutex
	nextSubID  uint64
	onMessage  map[uint64]MessageHandler
	onStatus   map[uint64]StatusHandler
	notices    *buffer.Queue[notice]
	dispatched chan struct{}
}

// NewManager creates a Connection Manager. Zero config values fall back to
// DefaultManagerConfig.
func NewManager(cfg ManagerConfig, opts ...Option) *Manager {
	def := DefaultManagerConfig()
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = def.ReconnectInterval
	}
	if cfg.MaxReconnectAttempts < 0 {
		cfg.MaxReconnectAttempts = 0
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.Client.HandshakeTimeout <= 0 {
		cfg.Client.HandshakeTimeout = def.Client.HandshakeTimeout
	}
	if cfg.Client.WriteTimeout <= 0 {
		cfg.Client.WriteTimeout = def.Client.WriteTimeout
	}

	m := &Manager{
		cfg:        cfg,
		logger:     slog.Default(),
		observer:   nopObserver{},
		newClient:  NewClient,
		pending:    make(map[string]*Call),
		status:     StatusDisconnected,
		onMessage:  make(map[uint64]MessageHandler),
		onStatus:   make(map[uint64]StatusHandler),
		notices:    buffer.New[notice](64),
		dispatched: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	go m.dispatch()
	return m
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Connect opens the relay connection as guardianID. Any existing connection
// is torn down first and reconnection is re-enabled.
func (m *Manager) Connect(guardianID string) error {
	if guardianID == "" {
		return ErrNoGuardianID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	m.teardownLocked()
	m.guardianID = guardianID
	m.attempts = 0
	m.shouldReconnect = true
	m.openSocketLocked()
	return nil
}

// Disconnect closes the connection and disables reconnection. Every pending
// call is rejected with ErrDisconnected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shouldReconnect = false
	m.teardownLocked()
	m.attempts = 0
}

// Close disconnects and stops subscriber dispatch. Notifications queued
// before Close are still delivered unless ctx expires first.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.shouldReconnect = false
	m.teardownLocked()
	m.attempts = 0
	m.closed = true
	m.mu.Unlock()

	m.notices.Close()

	select {
	case <-m.dispatched:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// teardownLocked detaches and closes the current socket, cancels any pending
// reconnect and rejects all pending calls.
func (m *Manager) teardownLocked() {
	m.cancelReconnectLocked()

	if s := m.sock; s != nil {
		m.sock = nil
		s.state = socketClosing
		s.cancel()
		go s.client.Close()
	}

	m.rejectAllLocked(ErrDisconnected, OutcomeDisconnected)
	m.setStatusLocked(StatusDisconnected)
}

func (m *Manager) cancelReconnectLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

// endpoint returns the relay URL with the guardian's identification query.
func (m *Manager) endpoint() (string, error) {
	u, err := url.Parse(m.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse relay url: %w", err)
	}
	q := u.Query()
	q.Set("deviceId", m.guardianID)
	q.Set("type", "guardian")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// openSocketLocked starts a dial unless a socket is already connecting or open.
func (m *Manager) openSocketLocked() {
	if m.sock != nil && m.sock.state < socketClosing {
		return
	}

	endpoint, err := m.endpoint()
	if err != nil {
		m.logger.Error("cannot open relay connection", "error", err)
		return
	}

	if m.attempts == 0 {
		m.setStatusLocked(StatusConnecting)
	} else {
		m.setStatusLocked(StatusReconnecting)
	}

	cc := m.cfg.Client
	cc.URL = endpoint
	cc.Header = m.cfg.Header

	m.nextSocketID++
	ctx, cancel := context.WithCancel(context.Background())
	s := &socket{
		id:     m.nextSocketID,
		client: m.newClient(cc, m.logger.With("socket", m.nextSocketID)),
		state:  socketConnecting,
		cancel: cancel,
	}
	m.sock = s

	m.logger.Info("connecting to relay",
		"guardian_id", m.guardianID,
		"attempt", m.attempts,
	)

	go m.run(ctx, s)
}

// run drives one socket: dial, deliver frames in order, then report the close.
func (m *Manager) run(ctx context.Context, s *socket) {
	if err := s.client.Connect(ctx); err != nil {
		m.handleClose(s, err)
		return
	}
	m.handleOpen(s)

	for f := range s.client.Messages() {
		m.handleFrame(s, f)
	}
	m.handleClose(s, s.client.Err())
}

func (m *Manager) handleOpen(s *socket) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sock != s {
		return
	}
	s.state = socketOpen
	m.attempts = 0
	m.cancelReconnectLocked()
	m.setStatusLocked(StatusConnected)
	m.logger.Info("relay connected", "guardian_id", m.guardianID)
}

func (m *Manager) handleClose(s *socket, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sock != s {
		return
	}
	m.sock = nil
	s.state = socketClosed
	s.cancel()
	go s.client.Close()

	if isNormalClose(cause) {
		m.logger.Info("relay connection closed")
	} else {
		m.logger.Warn("relay connection lost", "error", cause)
	}

	m.setStatusLocked(StatusDisconnected)
	m.rejectAllLocked(ErrDisconnected, OutcomeDisconnected)

	if !m.shouldReconnect {
		return
	}
	if m.attempts >= m.cfg.MaxReconnectAttempts {
		m.logger.Error("max reconnection attempts reached",
			"attempts", m.attempts,
			"max", m.cfg.MaxReconnectAttempts,
		)
		return
	}

	m.attempts++
	m.observer.ReconnectScheduled(m.attempts)
	m.logger.Info("scheduling reconnect",
		"attempt", m.attempts,
		"max", m.cfg.MaxReconnectAttempts,
		"wait", m.cfg.ReconnectInterval,
	)

	var t *time.Timer
	t = time.AfterFunc(m.cfg.ReconnectInterval, func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		if m.reconnectTimer != t {
			return
		}
		m.reconnectTimer = nil
		if m.shouldReconnect && !m.closed {
			m.openSocketLocked()
		}
	})
	m.reconnectTimer = t
}

// -----------------------------------------------------------------------------
// Inbound
// -----------------------------------------------------------------------------

func (m *Manager) handleFrame(s *socket, f Frame) {
	env, err := protocol.ParseEnvelope(f.Data)
	if err != nil {
		m.logger.Warn("dropping unparseable frame", "error", err, "size", len(f.Data))
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sock != s {
		return
	}
	m.observer.MessageReceived(env.Type)

	switch env.Type {
	case protocol.TypeConnectionAck:
		m.logger.Debug("relay acknowledged connection")

	case protocol.TypeError:
		msg, _ := protocol.ErrorMessage(env.Payload)
		if msg == "" {
			msg = "server error"
		}
		if !m.rejectLocked(env.RequestID, &ServerError{Type: env.Type, Message: msg}) {
			m.logger.Warn("relay error", "error", msg, "request_id", env.RequestID)
		}

	case protocol.TypeCommandError:
		msg, details := protocol.ErrorMessage(env.Payload)
		if msg == "" {
			msg = "command failed"
		}
		m.rejectLocked(env.RequestID, &ServerError{Type: env.Type, Message: msg, Details: details})
		m.publishLocked(env)

	default:
		if c := m.takeLocked(env.RequestID); c != nil {
			m.observer.RequestFinished(c.Type, OutcomeOK, time.Since(c.started))
			c.finish(env.Payload, nil)
		}
		m.publishLocked(env)
	}
}

// -----------------------------------------------------------------------------
// Outbound
// -----------------------------------------------------------------------------

// SendRequest sends a correlated request and returns its Call immediately.
// Preconditions that fail are reported through the returned Call.
func (m *Manager) SendRequest(msgType protocol.MessageType, to string, payload any) *Call {
	m.mu.Lock()

	client, from, err := m.senderLocked()
	if err != nil {
		m.mu.Unlock()
		return failedCall(msgType, to, err)
	}

	env, err := protocol.NewEnvelope(msgType, from, to, payload)
	if err != nil {
		m.mu.Unlock()
		return failedCall(msgType, to, err)
	}
	data, err := env.Marshal()
	if err != nil {
		m.mu.Unlock()
		return failedCall(msgType, to, fmt.Errorf("marshal envelope: %w", err))
	}

	c := newCall(env)
	m.pending[c.RequestID] = c
	c.timer = time.AfterFunc(m.cfg.RequestTimeout, func() { m.expire(c) })
	m.observer.PendingChanged(len(m.pending))
	m.mu.Unlock()

	if err := client.Send(data); err != nil {
		m.mu.Lock()
		if m.pending[c.RequestID] == c {
			m.removeLocked(c)
			c.finish(nil, fmt.Errorf("send %s: %w", msgType, err))
			m.observer.RequestFinished(msgType, OutcomeSendFailed, time.Since(c.started))
		}
		m.mu.Unlock()
	}
	return c
}

// Request sends a correlated request and waits for the response payload.
func (m *Manager) Request(ctx context.Context, msgType protocol.MessageType, to string, payload any) (json.RawMessage, error) {
	return m.SendRequest(msgType, to, payload).Wait(ctx)
}

// SendMessage sends a fire-and-forget envelope. No response is tracked.
func (m *Manager) SendMessage(msgType protocol.MessageType, to string, payload any) error {
	m.mu.Lock()
	client, from, err := m.senderLocked()
	m.mu.Unlock()
	if err != nil {
		m.logger.Warn("cannot send message", "type", msgType, "to", to, "error", err)
		return err
	}

	env, err := protocol.NewEnvelope(msgType, from, to, payload)
	if err != nil {
		return err
	}
	data, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := client.Send(data); err != nil {
		return fmt.Errorf("send %s: %w", msgType, err)
	}
	return nil
}

func (m *Manager) senderLocked() (Client, string, error) {
	if m.sock == nil || m.sock.state != socketOpen {
		return nil, "", ErrNotConnected
	}
	if m.guardianID == "" {
		return nil, "", ErrNoGuardianID
	}
	return m.sock.client, m.guardianID, nil
}

// -----------------------------------------------------------------------------
// Pending table
// -----------------------------------------------------------------------------

func (m *Manager) expire(c *Call) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending[c.RequestID] != c {
		return
	}
	m.removeLocked(c)
	c.finish(nil, fmt.Errorf("%w: %s after %s", ErrTimeout, c.Type, m.cfg.RequestTimeout))
	m.observer.RequestFinished(c.Type, OutcomeTimeout, time.Since(c.started))
	m.logger.Warn("request timed out", "type", c.Type, "request_id", c.RequestID, "to", c.To)
}

// takeLocked removes and returns the call for id, or nil.
func (m *Manager) takeLocked(id string) *Call {
	if id == "" {
		return nil
	}
	c, ok := m.pending[id]
	if !ok {
		return nil
	}
	m.removeLocked(c)
	return c
}

// rejectLocked fails the call for id. It reports whether a call matched.
func (m *Manager) rejectLocked(id string, err *ServerError) bool {
	c := m.takeLocked(id)
	if c == nil {
		return false
	}
	m.observer.RequestFinished(c.Type, OutcomeServerError, time.Since(c.started))
	c.finish(nil, err)
	return true
}

func (m *Manager) rejectAllLocked(err error, outcome string) {
	if len(m.pending) == 0 {
		return
	}
	calls := m.pending
	m.pending = make(map[string]*Call)
	for _, c := range calls {
		c.finish(nil, err)
		m.observer.RequestFinished(c.Type, outcome, time.Since(c.started))
	}
	m.observer.PendingChanged(0)
	m.logger.Debug("rejected pending requests", "count", len(calls), "error", err)
}

func (m *Manager) removeLocked(c *Call) {
	delete(m.pending, c.RequestID)
	if c.timer != nil {
		c.timer.Stop()
	}
	m.observer.PendingChanged(len(m.pending))
}

// -----------------------------------------------------------------------------
// Accessors
// -----------------------------------------------------------------------------

// IsConnected reports whether a socket is open.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sock != nil && m.sock.state == socketOpen
}

// Status returns the current connection status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// GuardianID returns the id passed to the last Connect.
func (m *Manager) GuardianID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.guardianID
}

// ReconnectAttempts returns the number of reconnects scheduled since the
// last successful open.
func (m *Manager) ReconnectAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// PendingCount returns the number of requests awaiting a response.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
