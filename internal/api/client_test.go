package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// TestNewClient tests client construction with various options.
func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("https://api.example.com", "tok")

		if c.baseURL != "https://api.example.com" {
			t.Errorf("baseURL = %q, want %q", c.baseURL, "https://api.example.com")
		}
		if c.token != "tok" {
			t.Errorf("token = %q, want %q", c.token, "tok")
		}
		if c.httpClient.Timeout != 10*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 10*time.Second)
		}
		if c.maxRetries != 3 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 3)
		}
		if c.retryBackoff != time.Second {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, time.Second)
		}
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
		if c.GuardianID() != "" {
			t.Errorf("GuardianID() = %q, want empty", c.GuardianID())
		}
	})

	t.Run("with multiple options", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		hc := &http.Client{Timeout: 10 * time.Second}
		c := NewClient("https://api.example.com", "",
			WithHTTPClient(hc),
			WithTimeout(15*time.Second),
			WithRetries(10, 500*time.Millisecond),
			WithLogger(logger),
			WithGuardianID("g1"),
		)
		if c.httpClient != hc {
			t.Error("custom HTTP client not set")
		}
		if hc.Timeout != 15*time.Second {
			t.Errorf("Timeout = %v, want %v", hc.Timeout, 15*time.Second)
		}
		if c.maxRetries != 10 || c.retryBackoff != 500*time.Millisecond {
			t.Errorf("retries = %d/%v, want 10/500ms", c.maxRetries, c.retryBackoff)
		}
		if c.logger != logger {
			t.Error("logger not set correctly")
		}
		if c.GuardianID() != "g1" {
			t.Errorf("GuardianID() = %q, want g1", c.GuardianID())
		}
	})
}

// TestAPIError tests the APIError type.
func TestAPIError(t *testing.T) {
	err := &APIError{StatusCode: 404, Message: "Not Found"}
	if got, want := err.Error(), "guardian api error 404: Not Found"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	tests := []struct {
		code     int
		expected bool
	}{
		{500, true},
		{503, true},
		{429, true},
		{400, false},
		{401, false},
		{404, false},
		{200, false},
	}
	for _, tt := range tests {
		err := &APIError{StatusCode: tt.code}
		if got := err.IsRetryable(); got != tt.expected {
			t.Errorf("IsRetryable() for status %d = %v, want %v", tt.code, got, tt.expected)
		}
	}
}

// TestDoRequest tests the HTTP request functionality.
func TestDoRequest(t *testing.T) {
	t.Run("sends headers and body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Accept") != "application/json" {
				t.Errorf("Accept header = %q", r.Header.Get("Accept"))
			}
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("Content-Type header = %q", r.Header.Get("Content-Type"))
			}
			if r.Header.Get("Authorization") != "Bearer tok" {
				t.Errorf("Authorization header = %q", r.Header.Get("Authorization"))
			}
			if r.Header.Get("User-Agent") != "guardian-test/1" {
				t.Errorf("User-Agent header = %q", r.Header.Get("User-Agent"))
			}
			body, _ := io.ReadAll(r.Body)
			if string(body) != `{"a":1}` {
				t.Errorf("body = %q", body)
			}
			w.Write([]byte(`{"status": "ok"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "tok", WithUserAgent("guardian-test/1"))
		body, err := c.doRequest(context.Background(), http.MethodPost, "/test", []byte(`{"a":1}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != `{"status": "ok"}` {
			t.Errorf("body = %q", string(body))
		}
	})

	t.Run("request without token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "" {
				t.Errorf("Authorization header should be empty, got %q", r.Header.Get("Authorization"))
			}
			if r.Header.Get("Content-Type") != "" {
				t.Errorf("Content-Type should be empty for GET, got %q", r.Header.Get("Content-Type"))
			}
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "")
		if _, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("error body becomes message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": "Invalid pairing code"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "")
		_, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil)
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %T", err)
		}
		if apiErr.StatusCode != 400 || apiErr.Message != "Invalid pairing code" {
			t.Errorf("APIError = %d %q", apiErr.StatusCode, apiErr.Message)
		}
	})

	t.Run("non-json error falls back to status text", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`internal error`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "")
		_, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil)
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %T", err)
		}
		if apiErr.Message != "Internal Server Error" {
			t.Errorf("Message = %q, want %q", apiErr.Message, "Internal Server Error")
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		c := NewClient(server.URL, "")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.doRequest(ctx, http.MethodGet, "/test", nil)
		if err == nil || !strings.Contains(err.Error(), "context canceled") {
			t.Errorf("error should contain 'context canceled', got %v", err)
		}
	})
}

// TestDoWithRetry tests the retry logic.
func TestDoWithRetry(t *testing.T) {
	tests := []struct {
		name         string
		failures     int32
		status       int
		maxRetries   int
		wantErr      bool
		wantAttempts int32
	}{
		{"succeeds on first try", 0, 0, 3, false, 1},
		{"retries on 5xx and succeeds", 2, http.StatusInternalServerError, 3, false, 3},
		{"retries on 429 and succeeds", 1, http.StatusTooManyRequests, 3, false, 2},
		{"no retry on 4xx", 5, http.StatusNotFound, 3, true, 1},
		{"gives up after max retries", 10, http.StatusServiceUnavailable, 2, true, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if atomic.AddInt32(&attempts, 1) <= tt.failures {
					w.WriteHeader(tt.status)
					return
				}
				w.Write([]byte(`{"ok": true}`))
			}))
			defer server.Close()

			c := NewClient(server.URL, "", WithRetries(tt.maxRetries, time.Millisecond))
			_, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := atomic.LoadInt32(&attempts); got != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", got, tt.wantAttempts)
			}
		})
	}

	t.Run("context cancelled during backoff", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c := NewClient(server.URL, "", WithRetries(3, time.Hour))
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := c.doWithRetry(ctx, http.MethodGet, "/test", nil)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("err = %v, want deadline exceeded", err)
		}
	})
}

func TestCallUnwrapsEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
		want    string
	}{
		{"data", `{"success": true, "data": {"status": "ok"}}`, "", "ok"},
		{"no success flag", `{"data": {"status": "ok"}}`, "", "ok"},
		{"explicit failure", `{"success": false, "error": "Code expired"}`, "Code expired", ""},
		{"failure without message", `{"success": false}`, "request failed", ""},
		{"not json", `nope`, "unmarshal response", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewClient(server.URL, "")
			var out HealthResponse
			err := c.call(context.Background(), http.MethodGet, "/x", nil, &out)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out.Status != tt.want {
				t.Errorf("Status = %q, want %q", out.Status, tt.want)
			}
		})
	}
}

func TestRegister(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/guardian/register" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if req.Name != "Ann" || req.Phone != "555-0100" {
			t.Errorf("body = %+v", req)
		}
		w.Write([]byte(`{"success": true, "data": {"guardianId": "g-1", "token": "tok", "name": "Ann", "phone": "555-0100"}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "")
	reg, err := c.Register(context.Background(), " Ann ", "555-0100")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if reg.GuardianID != "g-1" || reg.Token != "tok" {
		t.Errorf("Register() = %+v", reg)
	}
	if c.GuardianID() != "g-1" {
		t.Errorf("GuardianID() = %q, want g-1", c.GuardianID())
	}
}

func TestRegisterValidation(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", "")
	if _, err := c.Register(context.Background(), "", "555"); err == nil {
		t.Error("Register() expected error for empty name")
	}
	if _, err := c.Register(context.Background(), "Ann", " "); err == nil {
		t.Error("Register() expected error for empty phone")
	}
}

func TestPairWithElder(t *testing.T) {
	t.Run("requires guardian id", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:0", "")
		if _, err := c.PairWithElder(context.Background(), "123456"); !errors.Is(err, ErrNoGuardianID) {
			t.Errorf("err = %v, want ErrNoGuardianID", err)
		}
	})

	t.Run("sends guardian id and code", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/pair" {
				t.Errorf("path = %s", r.URL.Path)
			}
			var req PairRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.GuardianID != "g-1" || req.PairingCode != "123456" {
				t.Errorf("body = %+v", req)
			}
			w.Write([]byte(`{"success": true, "data": {"elderId": "e-9", "pairedAt": "2024-01-01T00:00:00.000Z"}}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "tok", WithGuardianID("g-1"))
		p, err := c.PairWithElder(context.Background(), "123456")
		if err != nil {
			t.Fatalf("PairWithElder failed: %v", err)
		}
		if p.ElderID != "e-9" {
			t.Errorf("ElderID = %q, want e-9", p.ElderID)
		}
	})

	t.Run("server error message surfaces", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error": "Invalid or expired pairing code"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "", WithGuardianID("g-1"))
		_, err := c.PairWithElder(context.Background(), "000000")
		if err == nil || !strings.Contains(err.Error(), "Invalid or expired pairing code") {
			t.Errorf("err = %v", err)
		}
	})
}

func TestPairedElders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/guardian/g-1/elders" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"success": true, "data": [{"elderId": "e-1", "isOnline": true}, {"elderId": "e-2"}]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "", WithGuardianID("g-1"))
	elders, err := c.PairedElders(context.Background())
	if err != nil {
		t.Fatalf("PairedElders failed: %v", err)
	}
	if len(elders) != 2 || !elders[0].IsOnline || elders[1].ElderID != "e-2" {
		t.Errorf("PairedElders() = %+v", elders)
	}

	if _, err := NewClient(server.URL, "").PairedElders(context.Background()); !errors.Is(err, ErrNoGuardianID) {
		t.Errorf("err = %v, want ErrNoGuardianID", err)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{"ok", http.StatusOK, `{"status": "ok"}`, false},
		{"degraded", http.StatusOK, `{"status": "degraded"}`, true},
		{"server error", http.StatusServiceUnavailable, ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/health" {
					t.Errorf("path = %s", r.URL.Path)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			err := NewClient(server.URL, "").Health(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("Health() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
