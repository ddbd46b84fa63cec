package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/carewatch/guardian/internal/buffer"
	"github.com/carewatch/guardian/internal/router"
)

// Batcher sends a batch of queued statements. *pgxpool.Pool satisfies it.
type Batcher interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

const insertAlert = `
	INSERT INTO alerts (id, elder_id, type, severity, triggered_at, received_at, latitude, longitude, battery_level, resolved, notes)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (id) DO NOTHING
`

// alertRow is one row of the alerts table.
type alertRow struct {
	ID           string
	ElderID      string
	Type         string
	Severity     string
	TriggeredAt  time.Time
	ReceivedAt   time.Time
	Latitude     *float64
	Longitude    *float64
	BatteryLevel *int
	Resolved     bool
	Notes        string
}

// AlertWriter consumes AlertMsg from the router buffer and writes to the alerts table.
type AlertWriter struct {
	cfg      WriterConfig
	logger   *slog.Logger
	counters Counters

	// Input from Message Router
	input *buffer.Queue[router.AlertMsg]

	// Database
	db Batcher

	// Batching
	batch       []alertRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics WriterMetrics
}

// NewAlertWriter creates a new AlertWriter.
func NewAlertWriter(
	cfg WriterConfig,
	input *buffer.Queue[router.AlertMsg],
	db Batcher,
	counters Counters,
	logger *slog.Logger,
) *AlertWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertWriter{
		cfg:      cfg,
		input:    input,
		db:       db,
		counters: counters,
		logger:   logger,
		batch:    make([]alertRow, 0, cfg.BatchSize),
		ctx:      context.Background(),
	}
}

// Start begins consuming alerts and writing to the database.
func (w *AlertWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("alert writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop drains what is already buffered, flushes and shuts down.
func (w *AlertWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping alert writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("alert writer stopped")
	case <-ctx.Done():
		w.logger.Warn("alert writer stop timed out")
	}

	for _, msg := range w.input.PopBatch(0) {
		w.add(msg)
	}

	// The lifecycle context is cancelled; the final flush runs on the caller's.
	w.flushWith(ctx)
	return nil
}

// Stats returns current metrics.
func (w *AlertWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads from the input buffer and accumulates batches.
func (w *AlertWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		msgs := w.input.PopBatch(w.cfg.BatchSize)
		if len(msgs) == 0 {
			if w.input.Closed() {
				return
			}
			select {
			case <-w.ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
				continue
			}
		}

		for _, msg := range msgs {
			w.handleMessage(msg)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *AlertWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush()
		}
	}
}

// handleMessage adds a message to the batch, flushing when it is full.
func (w *AlertWriter) handleMessage(msg router.AlertMsg) {
	if w.add(msg) {
		w.flush()
	}
}

func (w *AlertWriter) add(msg router.AlertMsg) (full bool) {
	row := transform(msg)

	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, row)
	return len(w.batch) >= w.cfg.BatchSize
}

// transform converts an AlertMsg to an alertRow.
func transform(msg router.AlertMsg) alertRow {
	a := msg.Alert
	row := alertRow{
		ID:           a.ID,
		ElderID:      a.ElderID,
		Type:         string(a.Type),
		Severity:     string(a.Type.Severity()),
		TriggeredAt:  a.TriggeredTime(msg.ReceivedAt),
		ReceivedAt:   msg.ReceivedAt.UTC(),
		BatteryLevel: a.BatteryLevel,
		Resolved:     a.Resolved,
		Notes:        a.Notes,
	}
	if a.Location != nil {
		lat, lon := a.Location.Latitude, a.Location.Longitude
		row.Latitude = &lat
		row.Longitude = &lon
	}
	return row
}

// flush writes the current batch to the database.
func (w *AlertWriter) flush() {
	w.flushWith(w.ctx)
}

func (w *AlertWriter) flushWith(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]alertRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	if w.db == nil {
		w.logger.Debug("no database configured, alerts discarded", "count", len(batch))
		return
	}

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		add(w.counters.Errors, 1)
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	add(w.counters.Written, len(batch)-conflicts)
	add(w.counters.Conflicts, conflicts)
	add(w.counters.Flushes, 1)

	w.logger.Debug("flushed alerts",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *AlertWriter) batchInsert(ctx context.Context, rows []alertRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertAlert,
			r.ID, r.ElderID, r.Type, r.Severity, r.TriggeredAt, r.ReceivedAt,
			r.Latitude, r.Longitude, r.BatteryLevel, r.Resolved, r.Notes,
		)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
