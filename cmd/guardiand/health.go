package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carewatch/guardian/internal/connection"
	"github.com/carewatch/guardian/internal/metrics"
	"github.com/carewatch/guardian/internal/router"
	"github.com/carewatch/guardian/internal/store"
	"github.com/carewatch/guardian/internal/version"
	"github.com/carewatch/guardian/internal/writer"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type pendingCounter interface {
	PendingCount() int
}

type healthDeps struct {
	conn    *store.Connection
	manager pendingCounter
	elders  *store.Elders
	db      pinger // nil when persistence is disabled
	router  router.Router
	writer  *writer.AlertWriter
	metrics *metrics.Metrics
	path    string
}

// createHealthHandler creates the HTTP handler for health checks and metrics.
func createHealthHandler(d healthDeps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Version    version.Info   `json:"version"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Version:    version.Get(),
			Components: make(map[string]any),
		}

		// Check relay connection
		snap := d.conn.Snapshot()
		health.Components["relay"] = map[string]any{
			"status":             snap.Status,
			"reconnect_attempts": snap.ReconnectAttempts,
			"last_connected_at":  snap.LastConnectedAt,
			"last_error":         snap.LastError,
			"pending_requests":   d.manager.PendingCount(),
		}
		switch snap.Status {
		case connection.StatusConnected:
		case connection.StatusDisconnected:
			health.Status = "unhealthy"
		default:
			health.Status = "degraded"
		}

		// Check database
		if d.db == nil {
			health.Components["database"] = "disabled"
		} else if err := d.db.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["database"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["database"] = "connected"
		}

		health.Components["elders"] = map[string]int{
			"known":  d.elders.Len(),
			"online": d.elders.OnlineCount(),
		}
		if d.router != nil {
			health.Components["router"] = d.router.Stats()
		}
		if d.writer != nil {
			health.Components["writer"] = d.writer.Stats()
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/elders", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"count":  d.elders.Len(),
			"elders": d.elders.List(),
		})
	})

	if d.metrics != nil {
		path := d.path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle(path, promhttp.HandlerFor(d.metrics.Registry(), promhttp.HandlerOpts{}))
	}

	return mux
}
