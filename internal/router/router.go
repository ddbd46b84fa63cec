package router

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/carewatch/guardian/internal/buffer"
	"github.com/carewatch/guardian/internal/connection"
	"github.com/carewatch/guardian/internal/model"
	"github.com/carewatch/guardian/internal/protocol"
	"github.com/carewatch/guardian/internal/store"
)

// MessageSource delivers inbound envelopes.
type MessageSource interface {
	OnMessage(h connection.MessageHandler) func()
}

// Router folds inbound relay traffic into the elder registry and hands
// alerts to the writer.
type Router interface {
	// Start subscribes to the source and begins routing.
	Start(ctx context.Context) error

	// Stop unsubscribes, drains queued envelopes and closes the alert buffer.
	Stop(ctx context.Context) error

	// Alerts returns the buffer the alert writer consumes.
	Alerts() *buffer.Queue[AlertMsg]

	// Stats returns current router statistics.
	Stats() RouterStats
}

type router struct {
	cfg    RouterConfig
	logger *slog.Logger

	source MessageSource
	elders *store.Elders
	now    func() time.Time

	inbound     *buffer.Queue[protocol.Envelope]
	alerts      *buffer.Queue[AlertMsg]
	unsubscribe func()

	wg sync.WaitGroup

	mu          sync.RWMutex
	received    int64
	routed      int64
	parseErrors int64
	ignored     int64
}

// NewRouter creates a new Message Router.
func NewRouter(cfg RouterConfig, source MessageSource, elders *store.Elders, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}

	return &router{
		cfg:     cfg,
		logger:  logger,
		source:  source,
		elders:  elders,
		now:     time.Now,
		inbound: buffer.New[protocol.Envelope](cfg.InboundBufferSize),
		alerts:  buffer.New[AlertMsg](cfg.AlertBufferSize),
	}
}

// Start begins routing messages.
func (r *router) Start(ctx context.Context) error {
	r.unsubscribe = r.source.OnMessage(func(env protocol.Envelope) {
		r.inbound.Push(env)
	})

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("message router started",
		"alert_buffer", r.cfg.AlertBufferSize,
	)
	return nil
}

// Stop gracefully shuts down the router.
func (r *router) Stop(ctx context.Context) error {
	r.logger.Info("stopping message router")

	if r.unsubscribe != nil {
		r.unsubscribe()
	}
	r.inbound.Close()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("message router stopped")
	case <-ctx.Done():
		r.logger.Warn("message router stop timed out")
	}

	r.alerts.Close()
	return nil
}

// Alerts returns the alert buffer.
func (r *router) Alerts() *buffer.Queue[AlertMsg] {
	return r.alerts
}

// Stats returns current statistics.
func (r *router) Stats() RouterStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return RouterStats{
		MessagesReceived: r.received,
		MessagesRouted:   r.routed,
		ParseErrors:      r.parseErrors,
		Ignored:          r.ignored,
		AlertBuffer:      r.alerts.Stats(),
	}
}

// routeLoop drains the inbound queue until it is closed and empty.
func (r *router) routeLoop() {
	defer r.wg.Done()

	for {
		env, ok := r.inbound.Pop()
		if !ok {
			return
		}
		r.route(env)
	}
}

// route decodes and applies a single envelope.
func (r *router) route(env protocol.Envelope) {
	r.mu.Lock()
	r.received++
	r.mu.Unlock()

	payload, err := protocol.Decode(env)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, protocol.ErrUnknownType) {
			level = slog.LevelDebug
		}
		r.logger.Log(context.Background(), level, "failed to decode envelope",
			"type", env.Type,
			"from", env.From,
			"error", err,
		)
		r.count(&r.parseErrors)
		return
	}

	at := r.now()
	switch p := payload.(type) {
	case *protocol.AlertEventPayload:
		r.routeAlert(env, p.Alert, at)
	case *protocol.StatePayload:
		if !r.elders.ApplyState(env.From, *p, at) {
			r.logger.Debug("state for unknown elder", "elder_id", env.From)
		}
	case *protocol.AlertHistoryPayload:
		for _, a := range p.Alerts {
			if a.ElderID == "" {
				a.ElderID = env.From
			}
			a.EnsureID()
			r.elders.RecordAlert(a, at)
			r.alerts.Push(AlertMsg{Alert: a, ReceivedAt: at, Source: "history"})
		}
	case *protocol.CommandErrorPayload:
		r.logger.Warn("elder rejected command",
			"elder_id", env.From,
			"request_id", env.RequestID,
			"error", p.Error,
			"details", p.Details,
		)
	default:
		r.count(&r.ignored)
		return
	}

	r.count(&r.routed)
}

func (r *router) routeAlert(env protocol.Envelope, a model.Alert, at time.Time) {
	if a.ElderID == "" {
		a.ElderID = env.From
	}
	a.EnsureID()

	level := slog.LevelInfo
	if a.Type.Severity() == model.SeverityCritical {
		level = slog.LevelWarn
	}
	r.logger.Log(context.Background(), level, "alert received",
		"elder_id", a.ElderID,
		"alert_id", a.ID,
		"type", a.Type,
		"severity", a.Type.Severity(),
	)

	r.elders.RecordAlert(a, at)
	if !r.alerts.Push(AlertMsg{Alert: a, ReceivedAt: at, Source: "event"}) {
		r.logger.Warn("alert dropped, buffer closed", "alert_id", a.ID)
	}
}

func (r *router) count(n *int64) {
	r.mu.Lock()
	*n++
	r.mu.Unlock()
}
