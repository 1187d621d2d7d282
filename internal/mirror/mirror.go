package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/presence-relay/internal/gateway"
)

// Store is the subset of *redis.Client the mirror uses.
type Store interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// MinTTL is the shortest key TTL the mirror accepts. Live keys are
// rewritten every TTL/2.
const MinTTL = 2 * time.Second

// Config holds mirror settings.
type Config struct {
	KeyPrefix string
	TTL       time.Duration
}

// Metrics counts mirror activity.
type Metrics struct {
	Writes    int64
	Deletes   int64
	Errors    int64
	Coalesced int64
}

type update struct {
	snapshot gateway.Snapshot
	delete   bool
}

// Mirror writes session snapshots to Redis from a single worker. Updates
// for the same session that arrive before the worker runs are coalesced
// into the latest one.
type Mirror struct {
	cfg    Config
	store  Store
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]update
	order   []string
	live    map[string]gateway.Snapshot
	metrics Metrics

	wake chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Mirror.
func New(cfg Config, store Store, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	switch {
	case cfg.TTL <= 0:
		cfg.TTL = 5 * time.Minute
	case cfg.TTL < MinTTL:
		logger.Warn("status mirror ttl too short, raising", "ttl", cfg.TTL, "min", MinTTL)
		cfg.TTL = MinTTL
	}
	return &Mirror{
		cfg:     cfg,
		store:   store,
		logger:  logger,
		pending: make(map[string]update),
		live:    make(map[string]gateway.Snapshot),
		wake:    make(chan struct{}, 1),
	}
}

// Key returns the Redis key of sessionID.
func (m *Mirror) Key(sessionID string) string {
	return m.cfg.KeyPrefix + sessionID
}

// ForSession returns an observer that mirrors the snapshots of sessionID.
func (m *Mirror) ForSession(sessionID string) gateway.Observer {
	return gateway.ObserverFunc(func(ev gateway.Event) {
		if ev.Kind == gateway.KindDisconnected {
			m.enqueue(sessionID, update{delete: true})
			return
		}
		m.enqueue(sessionID, update{snapshot: ev.Snapshot})
	})
}

// Lookup reads the mirrored snapshot of sessionID. It returns false when
// the key does not exist.
func (m *Mirror) Lookup(ctx context.Context, sessionID string) (gateway.Snapshot, bool, error) {
	var snap gateway.Snapshot
	data, err := m.store.Get(ctx, m.Key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return snap, false, nil
	}
	if err != nil {
		return snap, false, fmt.Errorf("get %s: %w", m.Key(sessionID), err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, true, nil
}

// enqueue records the latest update for sessionID and wakes the worker.
// It never blocks.
func (m *Mirror) enqueue(sessionID string, u update) {
	m.mu.Lock()
	if _, ok := m.pending[sessionID]; ok {
		m.metrics.Coalesced++
	} else {
		m.order = append(m.order, sessionID)
	}
	m.pending[sessionID] = u
	if u.delete {
		delete(m.live, sessionID)
	} else {
		m.live[sessionID] = u.snapshot
	}
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Start runs the worker until ctx is cancelled or Stop is called.
func (m *Mirror) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.run()

	m.logger.Info("status mirror started", "key_prefix", m.cfg.KeyPrefix, "ttl", m.cfg.TTL)
	return nil
}

// Stop shuts the worker down and writes the remaining updates.
func (m *Mirror) Stop(ctx context.Context) error {
	m.logger.Info("stopping status mirror")
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("status mirror stopped")
	case <-ctx.Done():
		m.logger.Warn("status mirror stop timed out")
	}

	m.drain(ctx)
	return nil
}

// Stats returns current metrics.
func (m *Mirror) Stats() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metrics
}

func (m *Mirror) run() {
	defer m.wg.Done()

	refresh := time.NewTicker(m.cfg.TTL / 2)
	defer refresh.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.wake:
			m.drain(m.ctx)
		case <-refresh.C:
			m.refresh()
			m.drain(m.ctx)
		}
	}
}

// refresh re-queues every live snapshot so its TTL is extended.
func (m *Mirror) refresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, snap := range m.live {
		if _, ok := m.pending[id]; !ok {
			m.order = append(m.order, id)
			m.pending[id] = update{snapshot: snap}
		}
	}
}

// drain applies every pending update in arrival order.
func (m *Mirror) drain(ctx context.Context) {
	m.mu.Lock()
	pending, order := m.pending, m.order
	m.pending = make(map[string]update)
	m.order = nil
	m.mu.Unlock()

	for _, id := range order {
		u := pending[id]
		err := m.apply(ctx, id, u)

		m.mu.Lock()
		switch {
		case err != nil:
			m.metrics.Errors++
		case u.delete:
			m.metrics.Deletes++
		default:
			m.metrics.Writes++
		}
		m.mu.Unlock()

		if err != nil {
			m.logger.Error("mirror write failed", "session", id, "error", err)
		}
	}
}

func (m *Mirror) apply(ctx context.Context, sessionID string, u update) error {
	key := m.Key(sessionID)
	if u.delete {
		return m.store.Del(ctx, key).Err()
	}

	data, err := json.Marshal(u.snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return m.store.Set(ctx, key, data, m.cfg.TTL).Err()
}
