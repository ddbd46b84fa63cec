package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/carewatch/guardian/internal/api"
	"github.com/carewatch/guardian/internal/model"
)

// PairingSource lists the elders paired with this guardian.
type PairingSource interface {
	PairedElders(ctx context.Context) ([]api.PairedElder, error)
}

// SyncConfig holds Syncer configuration.
type SyncConfig struct {
	Interval           time.Duration
	InitialLoadTimeout time.Duration
}

// DefaultSyncConfig returns sensible defaults.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Interval:           10 * time.Minute,
		InitialLoadTimeout: 30 * time.Second,
	}
}

// SyncResult counts what one reconciliation changed.
type SyncResult struct {
	Added   int
	Removed int
	Changed int
	Total   int
}

// Syncer keeps the elder registry in line with the pairing API.
type Syncer struct {
	cfg    SyncConfig
	src    PairingSource
	elders *Elders
	logger *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSyncer creates a Syncer.
func NewSyncer(cfg SyncConfig, src PairingSource, elders *Elders, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		cfg:    cfg,
		src:    src,
		elders: elders,
		logger: logger,
	}
}

// Start performs an initial reconciliation, then keeps reconciling in the
// background. A failed initial sync is logged and the cached registry is
// kept.
func (s *Syncer) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	loadCtx := ctx
	if s.cfg.InitialLoadTimeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(ctx, s.cfg.InitialLoadTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := s.Reconcile(loadCtx)
	if err != nil {
		s.logger.Warn("initial elder sync failed, using cache",
			"err", err,
			"cached", s.elders.Len(),
		)
	} else {
		s.logger.Info("initial elder sync complete",
			"elders", res.Total,
			"duration", time.Since(start),
		)
	}

	if s.cfg.Interval <= 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()
}

// Stop ends background reconciliation.
func (s *Syncer) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Syncer) loop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			res, err := s.Reconcile(ctx)
			if err != nil {
				s.logger.Error("elder reconciliation failed", "err", err)
				continue
			}
			if res.Added > 0 || res.Removed > 0 || res.Changed > 0 {
				s.logger.Info("elder reconciliation found changes",
					"added", res.Added,
					"removed", res.Removed,
					"changed", res.Changed,
					"duration", time.Since(start),
				)
			} else {
				s.logger.Debug("elder reconciliation complete",
					"total", res.Total,
					"duration", time.Since(start),
				)
			}
		}
	}
}

// Reconcile fetches the paired elders once. New pairings are added, pairings
// that disappeared are removed, and online flags are refreshed. On error the
// registry is left untouched.
func (s *Syncer) Reconcile(ctx context.Context) (SyncResult, error) {
	paired, err := s.src.PairedElders(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	res := SyncResult{Total: len(paired)}
	seen := make(map[string]struct{}, len(paired))

	for _, p := range paired {
		if p.ElderID == "" {
			continue
		}
		seen[p.ElderID] = struct{}{}

		existing, ok := s.elders.Get(p.ElderID)
		if !ok {
			s.elders.Add(model.Elder{
				ID:       p.ElderID,
				PairedAt: p.PairedAt,
				IsOnline: p.IsOnline,
			})
			res.Added++
			continue
		}

		if existing.IsOnline != p.IsOnline || (p.PairedAt != "" && existing.PairedAt != p.PairedAt) {
			s.elders.Update(p.ElderID, func(e *model.Elder) {
				e.IsOnline = p.IsOnline
				if p.PairedAt != "" {
					e.PairedAt = p.PairedAt
				}
			})
			res.Changed++
		}
	}

	for _, id := range s.elders.IDs() {
		if _, ok := seen[id]; !ok {
			s.elders.Remove(id)
			res.Removed++
		}
	}

	return res, nil
}
