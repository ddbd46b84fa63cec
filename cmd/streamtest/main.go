// streamtest connects to the relay as a guardian and prints every envelope
// and status change to the console.
// Usage: go run ./cmd/streamtest --config configs/guardian.yaml [--elder <id>]
//
// The guardian identity is read from the path in the config (see guardianctl register).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carewatch/guardian/internal/auth"
	"github.com/carewatch/guardian/internal/config"
	"github.com/carewatch/guardian/internal/connection"
	"github.com/carewatch/guardian/internal/logging"
	"github.com/carewatch/guardian/internal/protocol"
)

func main() {
	configPath := flag.String("config", "configs/guardian.yaml", "path to config file")
	elderID := flag.String("elder", "", "elder to poll with GET_STATE every interval")
	interval := flag.Duration("interval", 30*time.Second, "GET_STATE interval when --elder is set")
	verbose := flag.Bool("verbose", false, "print full envelope JSON")
	flag.Parse()

	logger := logging.New("debug", "text", os.Stdout)

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	guardian, err := auth.Load(cfg.Identity.Path)
	if err != nil {
		logger.Error("failed to load identity", "path", cfg.Identity.Path, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mcfg := connection.DefaultManagerConfig()
	mcfg.URL = cfg.Relay.URL
	mcfg.Header = guardian.Header()
	mcfg.ReconnectInterval = cfg.Relay.ReconnectInterval
	mcfg.MaxReconnectAttempts = cfg.Relay.MaxReconnectAttempts
	mcfg.RequestTimeout = cfg.Relay.RequestTimeout

	mgr := connection.NewManager(mcfg, connection.WithLogger(logger))

	mgr.OnStatusChange(func(st connection.Status) {
		fmt.Printf("[STATUS] %s attempts=%d\n", st, mgr.ReconnectAttempts())
	})
	mgr.OnMessage(func(env protocol.Envelope) {
		printEnvelope(env, *verbose)
	})

	logger.Info("connecting", "url", cfg.Relay.URL, "guardian_id", guardian.ID)
	if err := mgr.Connect(guardian.ID); err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}

	if *elderID != "" {
		go pollState(ctx, mgr, *elderID, *interval, logger)
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.Info("stats",
					"status", mgr.Status(),
					"pending", mgr.PendingCount(),
					"reconnect_attempts", mgr.ReconnectAttempts(),
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	mgr.Close(shutdownCtx)
	logger.Info("shutdown complete")
}

func pollState(ctx context.Context, mgr *connection.Manager, elderID string, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if mgr.IsConnected() {
			start := time.Now()
			st, err := mgr.GetState(ctx, elderID, protocol.GetStateRequest{IncludeAlertsSummary: true})
			if err != nil {
				logger.Warn("GET_STATE failed", "elder_id", elderID, "error", err)
			} else {
				fmt.Printf("[STATE] elder=%s name=%q battery=%d%% alerts=%d rtt=%s\n",
					elderID, st.Elder.Name, st.Elder.BatteryLevel, len(st.RecentAlerts), time.Since(start).Round(time.Millisecond))
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func printEnvelope(env protocol.Envelope, verbose bool) {
	if verbose {
		data, _ := json.MarshalIndent(env, "", "  ")
		fmt.Printf("[%s] %s\n", env.Type, data)
		return
	}

	payload, err := protocol.Decode(env)
	if err != nil {
		fmt.Printf("[%s] from=%s request_id=%s undecodable: %v\n", env.Type, env.From, env.RequestID, err)
		return
	}

	switch p := payload.(type) {
	case *protocol.AlertEventPayload:
		fmt.Printf("[ALERT] elder=%s type=%s severity=%s at=%s\n",
			p.ElderID, p.Type, p.Type.Severity(), p.TriggeredAt)
	case *protocol.StatePayload:
		fmt.Printf("[STATE_RESPONSE] from=%s name=%q battery=%d%%\n", env.From, p.Elder.Name, p.Elder.BatteryLevel)
	case *protocol.CommandSuccessPayload:
		fmt.Printf("[COMMAND_SUCCESS] from=%s request_id=%s message=%q\n", env.From, env.RequestID, p.Message)
	case *protocol.CommandErrorPayload:
		fmt.Printf("[COMMAND_ERROR] from=%s request_id=%s error=%q\n", env.From, env.RequestID, p.Error)
	default:
		fmt.Printf("[%s] from=%s request_id=%s bytes=%d\n", env.Type, env.From, env.RequestID, len(env.Payload))
	}
}
