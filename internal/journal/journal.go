package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rickgao/presence-relay/internal/gateway"
	"github.com/rickgao/presence-relay/internal/model"
)

const insertEvent = `
	INSERT INTO gateway_events (id, session_id, kind, state, close_code, attempt, delay_ms, detail, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO NOTHING
`

// Config holds batch writer settings.
type Config struct {
	BatchSize     int           // Rows per INSERT batch
	FlushInterval time.Duration // Maximum time a row waits in a partial batch
	BufferSize    int           // Queued rows before new events are dropped
}

// DefaultConfig returns the journal defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		FlushInterval: time.Second,
		BufferSize:    1000,
	}
}

// Metrics counts journal activity.
type Metrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
	Dropped   int64
}

// BatchSender is the subset of *pgxpool.Pool the journal uses.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Journal batches gateway events into the gateway_events table.
type Journal struct {
	cfg    Config
	logger *slog.Logger

	input *Buffer[model.GatewayEvent]

	// Database
	db BatchSender

	// Batching
	batch       []model.GatewayEvent
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
}

// New creates a Journal writing through db.
func New(cfg Config, db BatchSender, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	d := DefaultConfig()
	if cfg.BatchSize < 1 {
		cfg.BatchSize = d.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = d.FlushInterval
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = d.BufferSize
	}

	initial := cfg.BatchSize
	if initial > cfg.BufferSize {
		initial = cfg.BufferSize
	}

	return &Journal{
		cfg:    cfg,
		db:     db,
		logger: logger,
		input:  NewBuffer[model.GatewayEvent](initial, cfg.BufferSize),
		batch:  make([]model.GatewayEvent, 0, cfg.BatchSize),
	}
}

// ForSession returns an observer that journals the events of sessionID.
func (j *Journal) ForSession(sessionID string) gateway.Observer {
	return gateway.ObserverFunc(func(ev gateway.Event) {
		j.Record(transform(sessionID, ev))
	})
}

// Record queues one row. It never blocks; rows are dropped when the queue
// is full or the journal is stopped.
func (j *Journal) Record(row model.GatewayEvent) {
	if !j.input.Send(row) {
		j.batchMu.Lock()
		j.metrics.Dropped++
		j.batchMu.Unlock()
	}
}

// Start begins consuming events and writing to the database.
func (j *Journal) Start(ctx context.Context) error {
	j.ctx, j.cancel = context.WithCancel(ctx)
	j.flushTicker = time.NewTicker(j.cfg.FlushInterval)

	j.wg.Add(1)
	go j.consumeLoop()

	j.wg.Add(1)
	go j.flushLoop()

	j.logger.Info("event journal started",
		"batch_size", j.cfg.BatchSize,
		"flush_interval", j.cfg.FlushInterval,
	)
	return nil
}

// Stop shuts the journal down and flushes whatever is still queued.
func (j *Journal) Stop(ctx context.Context) error {
	j.logger.Info("stopping event journal")

	j.input.Close()
	if j.cancel != nil {
		j.cancel()
	}
	if j.flushTicker != nil {
		j.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		j.logger.Info("event journal stopped")
	case <-ctx.Done():
		j.logger.Warn("event journal stop timed out")
	}

	// Final flush
	for {
		rows := j.input.DrainTo(j.cfg.BatchSize)
		if len(rows) == 0 {
			break
		}
		j.appendRows(ctx, rows)
	}
	j.flush(ctx)

	return nil
}

// Stats returns current metrics.
func (j *Journal) Stats() Metrics {
	j.batchMu.Lock()
	defer j.batchMu.Unlock()
	return j.metrics
}

// consumeLoop moves queued rows into the current batch.
func (j *Journal) consumeLoop() {
	defer j.wg.Done()

	for {
		rows := j.input.DrainTo(j.cfg.BatchSize)
		if len(rows) == 0 {
			select {
			case <-j.ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
				continue
			}
		}
		j.appendRows(j.ctx, rows)
	}
}

// flushLoop periodically flushes the batch.
func (j *Journal) flushLoop() {
	defer j.wg.Done()

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-j.flushTicker.C:
			j.flush(j.ctx)
		}
	}
}

// appendRows adds rows to the batch and flushes when it is full.
func (j *Journal) appendRows(ctx context.Context, rows []model.GatewayEvent) {
	j.batchMu.Lock()
	j.batch = append(j.batch, rows...)
	shouldFlush := len(j.batch) >= j.cfg.BatchSize
	j.batchMu.Unlock()

	if shouldFlush {
		j.flush(ctx)
	}
}

// transform converts a session event to a row.
func transform(sessionID string, ev gateway.Event) model.GatewayEvent {
	return model.GatewayEvent{
		ID:         uuid.New(),
		SessionID:  sessionID,
		Kind:       string(ev.Kind),
		State:      ev.State.String(),
		CloseCode:  ev.Code,
		Attempt:    ev.Attempt,
		DelayMs:    ev.Delay.Milliseconds(),
		Detail:     ev.Detail,
		OccurredAt: ev.At,
	}
}

// flush writes the current batch to the database.
func (j *Journal) flush(ctx context.Context) {
	j.batchMu.Lock()
	if len(j.batch) == 0 {
		j.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := j.batch
	j.batch = make([]model.GatewayEvent, 0, j.cfg.BatchSize)
	j.batchMu.Unlock()

	start := time.Now()

	conflicts, err := j.batchInsert(ctx, batch)
	if err != nil {
		j.logger.Error("batch insert failed", "error", err, "count", len(batch))
		j.batchMu.Lock()
		j.metrics.Errors++
		j.batchMu.Unlock()
		return
	}

	j.batchMu.Lock()
	j.metrics.Inserts += int64(len(batch) - conflicts)
	j.metrics.Conflicts += int64(conflicts)
	j.metrics.Flushes++
	j.batchMu.Unlock()

	j.logger.Debug("flushed gateway events",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (j *Journal) batchInsert(ctx context.Context, rows []model.GatewayEvent) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertEvent,
			r.ID, r.SessionID, r.Kind, r.State, r.CloseCode, r.Attempt, r.DelayMs, r.Detail, r.OccurredAt)
	}

	results := j.db.SendBatch(ctx, batch)
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
