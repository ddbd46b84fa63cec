// guardiand keeps a guardian connected to the relay, tracks paired elders
// and persists their alerts.
// Usage: guardiand --config configs/guardian.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carewatch/guardian/internal/api"
	"github.com/carewatch/guardian/internal/auth"
	"github.com/carewatch/guardian/internal/config"
	"github.com/carewatch/guardian/internal/connection"
	"github.com/carewatch/guardian/internal/database"
	"github.com/carewatch/guardian/internal/logging"
	"github.com/carewatch/guardian/internal/metrics"
	"github.com/carewatch/guardian/internal/poller"
	"github.com/carewatch/guardian/internal/router"
	"github.com/carewatch/guardian/internal/store"
	"github.com/carewatch/guardian/internal/version"
	"github.com/carewatch/guardian/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/guardian.yaml", "path to config file")
	identityPath := flag.String("identity", "", "path to identity file (overrides config)")
	flag.Parse()

	if err := run(*configPath, *identityPath); err != nil {
		slog.Error("guardiand failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, identityPath string) error {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if identityPath != "" {
		cfg.Identity.Path = identityPath
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting guardiand",
		"version", version.Version,
		"commit", version.Commit,
		"config", configPath,
	)

	guardian, err := auth.Load(cfg.Identity.Path)
	if errors.Is(err, auth.ErrNoIdentity) {
		return fmt.Errorf("no identity at %s, run guardianctl register first", cfg.Identity.Path)
	}
	if err != nil {
		return err
	}
	logger.Info("identity loaded", "guardian_id", guardian.ID, "name", guardian.Name)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	met := metrics.New()

	// Database (optional)
	var pool *pgxpool.Pool
	var persister store.Persister
	if cfg.Database.Enabled() {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		pool, err = database.Connect(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		if err := database.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		persister = database.NewElderRepository(pool)
		logger.Info("database connected")
	} else {
		logger.Warn("no database configured, alerts will not be persisted")
	}

	// Elder registry
	var elders *store.Elders
	updateGauges := func() {
		met.EldersKnown.Set(float64(elders.Len()))
		met.EldersOnline.Set(float64(elders.OnlineCount()))
	}
	elders = store.NewElders(
		store.WithPersister(persister),
		store.WithEldersLogger(logger),
		store.WithChangeHandler(func(c store.Change) {
			logger.Debug("elder changed", "elder_id", c.Elder.ID, "kind", c.Kind)
			updateGauges()
		}),
	)
	if err := elders.Load(ctx); err != nil {
		logger.Warn("failed to load elder cache", "error", err)
	}
	updateGauges()

	// Pairing API
	apiClient := api.NewClient(
		cfg.API.BaseURL,
		guardian.Token,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
		api.WithUserAgent(version.UserAgent()),
		api.WithGuardianID(guardian.ID),
	)
	if err := apiClient.Health(ctx); err != nil {
		logger.Warn("pairing api unhealthy", "error", err)
	}

	syncer := store.NewSyncer(store.SyncConfig{
		Interval:           cfg.API.SyncInterval,
		InitialLoadTimeout: cfg.API.Timeout,
	}, apiClient, elders, logger)
	syncer.Start(ctx)

	if persister != nil {
		go saveLoop(ctx, elders, time.Minute, logger)
	}

	// Connection Manager
	header := guardian.Header()
	header.Set("User-Agent", version.UserAgent())

	mgr := connection.NewManager(connection.ManagerConfig{
		URL:                  cfg.Relay.URL,
		Header:               header,
		ReconnectInterval:    cfg.Relay.ReconnectInterval,
		MaxReconnectAttempts: cfg.Relay.MaxReconnectAttempts,
		RequestTimeout:       cfg.Relay.RequestTimeout,
		Client: connection.ClientConfig{
			HandshakeTimeout: cfg.Relay.HandshakeTimeout,
			WriteTimeout:     cfg.Relay.WriteTimeout,
			PingInterval:     cfg.Relay.PingInterval,
			PingTimeout:      cfg.Relay.PingTimeout,
			BufferSize:       connection.DefaultClientConfig().BufferSize,
		},
	}, connection.WithLogger(logger), connection.WithObserver(met))

	connState := store.NewConnection()
	untrack := connState.Track(mgr)
	defer untrack()

	// Message Router
	rtr := router.NewRouter(router.RouterConfig{
		InboundBufferSize: router.DefaultRouterConfig().InboundBufferSize,
		AlertBufferSize:   cfg.Writer.BufferSize,
	}, mgr, elders, logger)
	if err := rtr.Start(ctx); err != nil {
		return err
	}

	// Alert Writer
	var batcher writer.Batcher
	if pool != nil {
		batcher = pool
	}
	alertWriter := writer.NewAlertWriter(writer.WriterConfig{
		BatchSize:     cfg.Writer.BatchSize,
		FlushInterval: cfg.Writer.FlushInterval,
	}, rtr.Alerts(), batcher, writer.Counters{
		Written:   met.AlertsWritten,
		Conflicts: met.AlertConflicts,
		Flushes:   met.WriterFlushes,
		Errors:    met.WriterErrors,
	}, logger)
	if err := alertWriter.Start(ctx); err != nil {
		return err
	}

	// State Poller
	var statePoller *poller.Poller
	if !cfg.Poller.Disabled {
		statePoller = poller.New(poller.Config{
			Interval:    cfg.Poller.Interval,
			Concurrency: cfg.Poller.Concurrency,
			Timeout:     cfg.Poller.Timeout,
		}, mgr, mgr, elders, poller.Counters{
			Rounds:   met.PollRounds,
			Failures: met.PollFailures,
		}, logger)
	}

	// Health server
	var db pinger
	if pool != nil {
		db = pool
	}
	healthServer := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: createHealthHandler(healthDeps{
			conn:    connState,
			manager: mgr,
			elders:  elders,
			db:      db,
			router:  rtr,
			writer:  alertWriter,
			metrics: met,
			path:    cfg.Metrics.Path,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("starting health server", "port", cfg.Metrics.Port)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server error", "error", err)
		}
	}()

	// Connect
	if err := mgr.Connect(guardian.ID); err != nil {
		connState.SetError(err)
		return fmt.Errorf("connect relay: %w", err)
	}
	if statePoller != nil {
		if err := statePoller.Start(ctx); err != nil {
			return err
		}
	}

	logger.Info("guardiand running",
		"guardian_id", guardian.ID,
		"elders", elders.Len(),
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if statePoller != nil {
		statePoller.Stop(shutdownCtx)
	}
	syncer.Stop(shutdownCtx)
	if err := mgr.Close(shutdownCtx); err != nil {
		logger.Warn("connection manager close", "error", err)
	}
	rtr.Stop(shutdownCtx)
	alertWriter.Stop(shutdownCtx)

	if err := elders.Save(shutdownCtx); err != nil {
		logger.Error("failed to save elder cache", "error", err)
	}

	healthServer.Shutdown(shutdownCtx)

	logger.Info("guardiand stopped")
	return nil
}

// saveLoop writes the elder cache whenever it changed since the last save.
func saveLoop(ctx context.Context, elders *store.Elders, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := elders.Save(ctx); err != nil {
				logger.Warn("failed to save elder cache", "error", err)
			}
		}
	}
}
