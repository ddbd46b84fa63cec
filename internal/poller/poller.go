package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/carewatch/guardian/internal/connection"
	"github.com/carewatch/guardian/internal/protocol"
)

// ElderSource lists the elders to poll and records unreachable ones.
type ElderSource interface {
	IDs() []string
	MarkOffline(id string) bool
}

// Connectivity reports whether requests can currently be sent.
type Connectivity interface {
	IsConnected() bool
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // Poll interval (default: 5m)
	Concurrency int           // Max concurrent requests (default: 4)
	Timeout     time.Duration // Per-request timeout (default: 15s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    5 * time.Minute,
		Concurrency: 4,
		Timeout:     15 * time.Second,
	}
}

// Counters mirrors poll results into Prometheus. Nil counters are skipped.
type Counters struct {
	Rounds   prometheus.Counter
	Failures prometheus.Counter
}

// RoundResult summarises one poll cycle.
type RoundResult struct {
	Elders  int
	Fetched int64
	Failed  int64
	Skipped bool
}

// Poller periodically requests elder state over the relay.
type Poller struct {
	cfg      Config
	client   connection.Requester
	conn     Connectivity
	elders   ElderSource
	counters Counters
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller. conn may be nil, in which case every round runs.
func New(cfg Config, client connection.Requester, conn Connectivity, elders ElderSource, counters Counters, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Poller{
		cfg:      cfg,
		client:   client,
		conn:     conn,
		elders:   elders,
		counters: counters,
		logger:   logger,
		ctx:      context.Background(),
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("state poller started",
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("state poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.PollAll(p.ctx)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.PollAll(p.ctx)
		}
	}
}

// PollAll requests state from every known elder concurrently.
func (p *Poller) PollAll(ctx context.Context) RoundResult {
	start := time.Now()

	if p.conn != nil && !p.conn.IsConnected() {
		p.logger.Debug("relay not connected, skipping poll")
		return RoundResult{Skipped: true}
	}

	ids := p.elders.IDs()
	if len(ids) == 0 {
		p.logger.Debug("no elders to poll")
		return RoundResult{}
	}

	var fetched, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	for _, id := range ids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := p.pollElder(gctx, id); err != nil {
				failed.Add(1)
				p.handleFailure(id, err)
				return nil
			}
			fetched.Add(1)
			return nil
		})
	}
	g.Wait()

	res := RoundResult{Elders: len(ids), Fetched: fetched.Load(), Failed: failed.Load()}
	if p.counters.Rounds != nil {
		p.counters.Rounds.Inc()
	}
	if p.counters.Failures != nil && res.Failed > 0 {
		p.counters.Failures.Add(float64(res.Failed))
	}

	p.logger.Info("poll cycle complete",
		"elders", res.Elders,
		"fetched", res.Fetched,
		"errors", res.Failed,
		"duration", time.Since(start),
	)
	return res
}

// pollElder requests a single elder's state.
func (p *Poller) pollElder(ctx context.Context, id string) error {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	_, err := connection.Do[protocol.StatePayload](ctx, p.client, protocol.TypeGetState, id, protocol.GetStateRequest{
		IncludeMedications:   true,
		IncludeAlertsSummary: true,
	})
	return err
}

// handleFailure marks the elder offline unless the failure was local.
func (p *Poller) handleFailure(id string, err error) {
	switch {
	case errors.Is(err, connection.ErrNotConnected),
		errors.Is(err, connection.ErrDisconnected),
		errors.Is(err, connection.ErrClosed),
		errors.Is(err, context.Canceled):
		p.logger.Debug("poll interrupted", "elder_id", id, "err", err)
		return
	}

	p.logger.Warn("failed to poll elder",
		"elder_id", id,
		"err", err,
	)
	if p.elders.MarkOffline(id) {
		p.logger.Info("elder marked offline", "elder_id", id)
	}
}
