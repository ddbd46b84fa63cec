package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/carewatch/guardian/internal/api"
	"github.com/carewatch/guardian/internal/auth"
	"github.com/carewatch/guardian/internal/config"
	"github.com/carewatch/guardian/internal/connection"
	"github.com/carewatch/guardian/internal/logging"
	"github.com/carewatch/guardian/internal/version"
)

type globalOptions struct {
	configPath   string
	identityPath string
	timeout      time.Duration
	json         bool
	verbose      bool
}

type commandContext struct {
	opts *globalOptions

	configOnce sync.Once
	config     *config.GuardianConfig
	configErr  error
}

func newCommandContext(opts *globalOptions) *commandContext {
	return &commandContext{opts: opts}
}

func (c *commandContext) ensureConfig() (*config.GuardianConfig, error) {
	c.configOnce.Do(func() {
		cfg, err := config.LoadWithDefaults(strings.TrimSpace(c.opts.configPath))
		if err != nil {
			c.configErr = err
			return
		}
		if p := strings.TrimSpace(c.opts.identityPath); p != "" {
			cfg.Identity.Path = p
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger(cmd *cobra.Command) *slog.Logger {
	if !c.opts.verbose {
		return logging.New("error", "text", io.Discard)
	}
	return logging.New("debug", "text", cmd.ErrOrStderr())
}

func (c *commandContext) identity() (*config.GuardianConfig, auth.Guardian, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, auth.Guardian{}, err
	}
	g, err := auth.Load(cfg.Identity.Path)
	if errors.Is(err, auth.ErrNoIdentity) {
		return nil, auth.Guardian{}, fmt.Errorf("no identity at %s; run `guardianctl register` first", cfg.Identity.Path)
	}
	if err != nil {
		return nil, auth.Guardian{}, err
	}
	return cfg, g, nil
}

func (c *commandContext) apiClient(cmd *cobra.Command, cfg *config.GuardianConfig, g auth.Guardian) (*api.Client, error) {
	if cfg.API.BaseURL == "" {
		return nil, errors.New("api.base_url is required")
	}
	return api.NewClient(
		cfg.API.BaseURL,
		g.Token,
		api.WithLogger(c.logger(cmd)),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
		api.WithUserAgent(version.UserAgent()),
		api.WithGuardianID(g.ID),
	), nil
}

// withAPI runs fn with an API client authenticated as the stored guardian.
func (c *commandContext) withAPI(cmd *cobra.Command, fn func(context.Context, *api.Client) error) error {
	cfg, g, err := c.identity()
	if err != nil {
		return err
	}
	client, err := c.apiClient(cmd, cfg, g)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), c.opts.timeout)
	defer cancel()
	return fn(ctx, client)
}

// withRelay connects to the relay as the stored guardian, waits for the
// connection to open, runs fn and closes the connection.
func (c *commandContext) withRelay(cmd *cobra.Command, fn func(context.Context, *connection.Manager) error) error {
	cfg, g, err := c.identity()
	if err != nil {
		return err
	}
	if cfg.Relay.URL == "" {
		return errors.New("relay.url is required")
	}

	header := g.Header()
	header.Set("User-Agent", version.UserAgent())

	mgr := connection.NewManager(connection.ManagerConfig{
		URL:                  cfg.Relay.URL,
		Header:               header,
		ReconnectInterval:    cfg.Relay.ReconnectInterval,
		MaxReconnectAttempts: cfg.Relay.MaxReconnectAttempts,
		RequestTimeout:       c.opts.timeout,
		Client: connection.ClientConfig{
			HandshakeTimeout: cfg.Relay.HandshakeTimeout,
			WriteTimeout:     cfg.Relay.WriteTimeout,
			PingInterval:     cfg.Relay.PingInterval,
			PingTimeout:      cfg.Relay.PingTimeout,
			BufferSize:       connection.DefaultClientConfig().BufferSize,
		},
	}, connection.WithLogger(c.logger(cmd)))

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mgr.Close(closeCtx)
	}()

	ctx, cancel := context.WithTimeout(cmd.Context(), c.opts.timeout)
	defer cancel()

	if err := waitConnected(ctx, mgr, g.ID, cfg.Relay.MaxReconnectAttempts); err != nil {
		return err
	}
	return fn(ctx, mgr)
}

// waitConnected calls Connect on a fresh manager and blocks until it
// reports connected, runs out of reconnect attempts, or ctx ends. The
// manager gives up after the initial dial plus maxAttempts retries fail.
func waitConnected(ctx context.Context, mgr *connection.Manager, guardianID string, maxAttempts int) error {
	ready := make(chan connection.Status, 1)
	failures := 0
	unsubscribe := mgr.OnStatusChange(func(st connection.Status) {
		switch st {
		case connection.StatusDisconnected:
			failures++
			if failures <= maxAttempts {
				return
			}
		case connection.StatusConnected:
		default:
			return
		}
		select {
		case ready <- st:
		default:
		}
	})
	defer unsubscribe()

	if err := mgr.Connect(guardianID); err != nil {
		return fmt.Errorf("connect to relay: %w", err)
	}

	for {
		select {
		case st := <-ready:
			if st == connection.StatusConnected {
				return nil
			}
			return errors.New("connect to relay: gave up after reconnect attempts")
		case <-ctx.Done():
			if mgr.IsConnected() {
				return nil
			}
			return fmt.Errorf("connect to relay: %w", ctx.Err())
		}
	}
}
