package connection

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/carewatch/guardian/internal/protocol"
)

// fakeRelay is a websocket relay that records handshakes and inbound
// envelopes and answers through a pluggable responder.
type fakeRelay struct {
	t      *testing.T
	server *httptest.Server

	reject    atomic.Bool // answer handshakes with 503
	dropFirst atomic.Bool // close the first accepted connection immediately
	dials     atomic.Int32
	accepted  atomic.Int32
	closed    atomic.Int32

	mu       sync.Mutex
	queries  []url.Values
	headers  []http.Header
	received []protocol.Envelope
	conns    []*websocket.Conn
	respond  func(env protocol.Envelope) [][]byte
}

func newFakeRelay(t *testing.T) *fakeRelay {
	t.Helper()
	r := &fakeRelay{t: t}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	r.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.dials.Add(1)
		if r.reject.Load() {
			http.Error(w, "relay unavailable", http.StatusServiceUnavailable)
			return
		}

		r.mu.Lock()
		r.queries = append(r.queries, req.URL.Query())
		r.headers = append(r.headers, req.Header.Clone())
		r.mu.Unlock()

		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		defer r.closed.Add(1)

		r.mu.Lock()
		r.conns = append(r.conns, conn)
		r.mu.Unlock()

		if n := r.accepted.Add(1); n == 1 && r.dropFirst.Load() {
			return
		}

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			env, err := protocol.ParseEnvelope(data)
			if err != nil {
				continue
			}

			r.mu.Lock()
			r.received = append(r.received, env)
			respond := r.respond
			r.mu.Unlock()

			if respond == nil {
				continue
			}
			for _, out := range respond(env) {
				if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(r.server.Close)
	return r
}

func (r *fakeRelay) URL() string {
	return wsURL(r.server)
}

// dropAll closes every accepted connection without a close frame.
func (r *fakeRelay) dropAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conns {
		c.Close()
	}
}

func (r *fakeRelay) setResponder(fn func(env protocol.Envelope) [][]byte) {
	r.mu.Lock()
	r.respond = fn
	r.mu.Unlock()
}

func (r *fakeRelay) receivedEnvelopes() []protocol.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.Envelope(nil), r.received...)
}

func (r *fakeRelay) handshake(i int) (url.Values, http.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queries[i], r.headers[i]
}

// reply builds the frame an elder would send back for env.
func reply(t *testing.T, env protocol.Envelope, msgType protocol.MessageType, payload any) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal reply: %v", err)
	}
	out := protocol.Envelope{
		Type:      msgType,
		From:      env.To,
		To:        env.From,
		RequestID: env.RequestID,
		Payload:   raw,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := out.Marshal()
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// statusLog records status broadcasts.
type statusLog struct {
	mu   sync.Mutex
	seen []Status
}

func (l *statusLog) record(s Status) {
	l.mu.Lock()
	l.seen = append(l.seen, s)
	l.mu.Unlock()
}

func (l *statusLog) snapshot() []Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Status(nil), l.seen...)
}

// messageLog records delivered envelopes.
type messageLog struct {
	mu   sync.Mutex
	seen []protocol.Envelope
}

func (l *messageLog) record(env protocol.Envelope) {
	l.mu.Lock()
	l.seen = append(l.seen, env)
	l.mu.Unlock()
}

func (l *messageLog) types() []protocol.MessageType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]protocol.MessageType, len(l.seen))
	for i, env := range l.seen {
		out[i] = env.Type
	}
	return out
}

func testManagerConfig(url string) ManagerConfig {
	cfg := DefaultManagerConfig()
	cfg.URL = url
	cfg.ReconnectInterval = 20 * time.Millisecond
	cfg.RequestTimeout = 2 * time.Second
	cfg.Client.PingInterval = 0
	return cfg
}

// newTestManager returns a manager that is closed when the test ends.
func newTestManager(t *testing.T, cfg ManagerConfig, opts ...Option) *Manager {
	t.Helper()
	m := NewManager(cfg, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		m.Close(ctx)
	})
	return m
}

// connectAndWait connects as guardianID and waits for the open.
func connectAndWait(t *testing.T, m *Manager, guardianID string) {
	t.Helper()
	if err := m.Connect(guardianID); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitFor(t, "connection open", m.IsConnected)
}
