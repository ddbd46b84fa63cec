package connection

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockWSServer creates a test websocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testClientConfig(url string) ClientConfig {
	cfg := DefaultClientConfig()
	cfg.URL = url
	cfg.PingInterval = 0
	cfg.BufferSize = 100
	return cfg
}

func readUntilClosed(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestClient_Connect(t *testing.T) {
	server := mockWSServer(t, readUntilClosed)
	defer server.Close()

	client := NewClient(testClientConfig(wsURL(server)), nil)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if !client.IsConnected() {
		t.Error("expected IsConnected to return true")
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if client.IsConnected() {
		t.Error("expected IsConnected to return false after Close")
	}

	select {
	case _, ok := <-client.Messages():
		if ok {
			t.Error("unexpected frame after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("Messages not closed after Close")
	}
	if !errors.Is(client.Err(), ErrClosed) {
		t.Errorf("Err() = %v, want ErrClosed", client.Err())
	}
}

func TestClient_HandshakeHeader(t *testing.T) {
	got := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		readUntilClosed(conn)
	}))
	defer server.Close()

	cfg := testClientConfig(wsURL(server))
	cfg.Header = http.Header{"Authorization": []string{"Bearer tok"}}
	client := NewClient(cfg, nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	if auth := <-got; auth != "Bearer tok" {
		t.Errorf("Authorization = %q, want %q", auth, "Bearer tok")
	}
}

func TestClient_Send(t *testing.T) {
	received := make(chan []byte, 1)

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- msg
		}
	})
	defer server.Close()

	client := NewClient(testClientConfig(wsURL(server)), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	testMsg := []byte(`{"type":"GET_STATE"}`)
	if err := client.Send(testMsg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case got := <-received:
		if string(got) != string(testMsg) {
			t.Errorf("received %q, want %q", got, testMsg)
		}
	case <-time.After(time.Second):
		t.Fatal("server did not receive message")
	}
}

func TestClient_MessagesInOrder(t *testing.T) {
	frames := []string{`{"n":1}`, `{"n":2}`, `{"n":3}`}

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		readUntilClosed(conn)
	})
	defer server.Close()

	client := NewClient(testClientConfig(wsURL(server)), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	timeout := time.After(time.Second)
	for i, want := range frames {
		select {
		case f := <-client.Messages():
			if string(f.Data) != want {
				t.Errorf("frame %d: got %q, want %q", i, f.Data, want)
			}
			if f.ReceivedAt.IsZero() {
				t.Error("ReceivedAt should not be zero")
			}
		case <-timeout:
			t.Fatalf("timeout waiting for frame %d", i)
		}
	}
}

func TestClient_ServerCloseEndsMessages(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"last":true}`))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
	})
	defer server.Close()

	client := NewClient(testClientConfig(wsURL(server)), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	var got []string
	for f := range client.Messages() {
		got = append(got, string(f.Data))
	}
	if len(got) != 1 || got[0] != `{"last":true}` {
		t.Errorf("frames = %v", got)
	}
	if !websocket.IsCloseError(client.Err(), websocket.CloseGoingAway) {
		t.Errorf("Err() = %v, want close 1001", client.Err())
	}
	if client.IsConnected() {
		t.Error("expected IsConnected false after server close")
	}
}

func TestClient_SendNotConnected(t *testing.T) {
	client := NewClient(testClientConfig("ws://localhost:12345"), nil)

	if err := client.Send([]byte("test")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestClient_DialFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(testClientConfig(wsURL(server)), nil)
	if err := client.Connect(context.Background()); err == nil {
		t.Fatal("expected dial error")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close after failed dial: %v", err)
	}
	if _, ok := <-client.Messages(); ok {
		t.Error("expected closed Messages channel")
	}
}

func TestClient_ConnectAfterClose(t *testing.T) {
	client := NewClient(testClientConfig("ws://localhost:12345"), nil)
	client.Close()

	if err := client.Connect(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Connect after Close = %v, want ErrClosed", err)
	}
}

func TestClient_DoubleClose(t *testing.T) {
	server := mockWSServer(t, readUntilClosed)
	defer server.Close()

	client := NewClient(testClientConfig(wsURL(server)), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestClient_Heartbeat(t *testing.T) {
	var mu sync.Mutex
	pings := 0

	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.SetPingHandler(func(data string) error {
			mu.Lock()
			pings++
			mu.Unlock()
			return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		})
		readUntilClosed(conn)
	})
	defer server.Close()

	cfg := testClientConfig(wsURL(server))
	cfg.PingInterval = 20 * time.Millisecond
	cfg.PingTimeout = time.Second
	client := NewClient(cfg, nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	n := pings
	mu.Unlock()
	if n == 0 {
		t.Error("server saw no pings")
	}
	if !client.IsConnected() {
		t.Error("expected client to stay connected while pongs arrive")
	}
}

func TestClient_StaleWithoutPong(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		// Swallow pings without answering.
		conn.SetPingHandler(func(string) error { return nil })
		readUntilClosed(conn)
	})
	defer server.Close()

	cfg := testClientConfig(wsURL(server))
	cfg.PingInterval = 10 * time.Millisecond
	cfg.PingTimeout = 30 * time.Millisecond
	client := NewClient(cfg, nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	select {
	case _, ok := <-client.Messages():
		if ok {
			t.Fatal("unexpected frame")
		}
	case <-time.After(time.Second):
		t.Fatal("stale connection was not dropped")
	}
	if !errors.Is(client.Err(), ErrStaleConnection) {
		t.Errorf("Err() = %v, want ErrStaleConnection", client.Err())
	}
}

func TestDefaultConfigs(t *testing.T) {
	clientCfg := DefaultClientConfig()
	if clientCfg.HandshakeTimeout != 10*time.Second {
		t.Errorf("HandshakeTimeout = %v, want 10s", clientCfg.HandshakeTimeout)
	}
	if clientCfg.WriteTimeout != 5*time.Second {
		t.Errorf("WriteTimeout = %v, want 5s", clientCfg.WriteTimeout)
	}

	mgrCfg := DefaultManagerConfig()
	if mgrCfg.ReconnectInterval != 3*time.Second {
		t.Errorf("ReconnectInterval = %v, want 3s", mgrCfg.ReconnectInterval)
	}
	if mgrCfg.MaxReconnectAttempts != 10 {
		t.Errorf("MaxReconnectAttempts = %d, want 10", mgrCfg.MaxReconnectAttempts)
	}
	if mgrCfg.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", mgrCfg.RequestTimeout)
	}
}
