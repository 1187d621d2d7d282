package journal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/presence-relay/internal/gateway"
	"github.com/rickgao/presence-relay/internal/model"
)

// fakeDB records queued batches and answers each Exec.
type fakeDB struct {
	mu        sync.Mutex
	batches   [][]*pgx.QueuedQuery
	err       error
	conflicts int // the first n rows of every batch report 0 rows affected
}

func (f *fakeDB) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, b.QueuedQueries)
	return &fakeResults{err: f.err, conflicts: f.conflicts}
}

func (f *fakeDB) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func (f *fakeDB) rows() []*pgx.QueuedQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*pgx.QueuedQuery
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

type fakeResults struct {
	err       error
	conflicts int
	n         int
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	r.n++
	if r.n <= r.conflicts {
		return pgconn.NewCommandTag("INSERT 0 0"), nil
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *fakeResults) Query() (pgx.Rows, error) { return nil, errors.New("not supported") }
func (r *fakeResults) QueryRow() pgx.Row        { return nil }
func (r *fakeResults) Close() error             { return nil }

func testEvent(kind gateway.EventKind) gateway.Event {
	return gateway.Event{
		Kind:  kind,
		State: gateway.StateReady,
		At:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestTransform(t *testing.T) {
	ev := gateway.Event{
		Kind:    gateway.KindReconnectScheduled,
		State:   gateway.StateReconnecting,
		Code:    1006,
		Attempt: 2,
		Delay:   7500 * time.Millisecond,
		Detail:  "read: connection reset",
		At:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	row := transform("sess-1", ev)

	if row.ID.Version() != 4 {
		t.Errorf("ID version = %d, want 4", row.ID.Version())
	}
	if row.SessionID != "sess-1" {
		t.Errorf("SessionID = %q, want sess-1", row.SessionID)
	}
	if row.Kind != "reconnect_scheduled" || row.State != "reconnecting" {
		t.Errorf("Kind/State = %q/%q", row.Kind, row.State)
	}
	if row.CloseCode != 1006 || row.Attempt != 2 || row.DelayMs != 7500 {
		t.Errorf("row = %+v", row)
	}
	if !row.OccurredAt.Equal(ev.At) {
		t.Errorf("OccurredAt = %v, want %v", row.OccurredAt, ev.At)
	}
}

func TestJournal_FlushOnBatchSize(t *testing.T) {
	db := &fakeDB{}
	j := New(Config{BatchSize: 3, FlushInterval: time.Hour, BufferSize: 100}, db, nil)
	if err := j.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	obs := j.ForSession("sess-1")
	for i := 0; i < 3; i++ {
		obs.Observe(testEvent(gateway.KindStateChanged))
	}

	deadline := time.Now().Add(2 * time.Second)
	for db.batchCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if db.batchCount() != 1 {
		t.Fatalf("batches = %d, want 1", db.batchCount())
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := j.Stop(stopCtx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}

	stats := j.Stats()
	if stats.Inserts != 3 || stats.Flushes != 1 {
		t.Errorf("stats = %+v, want 3 inserts in 1 flush", stats)
	}
}

func TestJournal_FlushOnInterval(t *testing.T) {
	db := &fakeDB{}
	j := New(Config{BatchSize: 100, FlushInterval: 20 * time.Millisecond, BufferSize: 100}, db, nil)
	j.Start(context.Background())
	defer j.Stop(context.Background())

	j.ForSession("sess-1").Observe(testEvent(gateway.KindReady))

	deadline := time.Now().Add(2 * time.Second)
	for db.batchCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if db.batchCount() == 0 {
		t.Fatal("partial batch was not flushed on the interval")
	}
}

func TestJournal_FinalFlushOnStop(t *testing.T) {
	db := &fakeDB{}
	j := New(Config{BatchSize: 100, FlushInterval: time.Hour, BufferSize: 100}, db, nil)
	j.Start(context.Background())

	obs := j.ForSession("sess-2")
	obs.Observe(testEvent(gateway.KindReady))
	obs.Observe(testEvent(gateway.KindPresenceSent))

	if err := j.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	rows := db.rows()
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if !strings.Contains(rows[0].SQL, "ON CONFLICT (id) DO NOTHING") {
		t.Errorf("SQL = %q", rows[0].SQL)
	}
	if got := rows[0].Arguments[1]; got != "sess-2" {
		t.Errorf("session_id argument = %v, want sess-2", got)
	}
	if got := rows[1].Arguments[2]; got != "presence_sent" {
		t.Errorf("kind argument = %v, want presence_sent", got)
	}

	// Events after Stop are dropped.
	obs.Observe(testEvent(gateway.KindReady))
	if stats := j.Stats(); stats.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", stats.Dropped)
	}
}

func TestJournal_Conflicts(t *testing.T) {
	db := &fakeDB{conflicts: 1}
	j := New(Config{BatchSize: 10, FlushInterval: time.Hour, BufferSize: 10}, db, nil)

	j.appendRows(context.Background(), []model.GatewayEvent{
		transform("s", testEvent(gateway.KindReady)),
		transform("s", testEvent(gateway.KindReady)),
	})
	j.flush(context.Background())

	stats := j.Stats()
	if stats.Inserts != 1 || stats.Conflicts != 1 {
		t.Errorf("stats = %+v, want 1 insert and 1 conflict", stats)
	}
}

func TestJournal_InsertError(t *testing.T) {
	db := &fakeDB{err: errors.New("relation \"gateway_events\" does not exist")}
	j := New(Config{BatchSize: 10, FlushInterval: time.Hour, BufferSize: 10}, db, nil)

	j.appendRows(context.Background(), []model.GatewayEvent{transform("s", testEvent(gateway.KindReady))})
	j.flush(context.Background())

	stats := j.Stats()
	if stats.Errors != 1 || stats.Inserts != 0 {
		t.Errorf("stats = %+v, want 1 error", stats)
	}
}

func TestJournal_DropsWhenFull(t *testing.T) {
	j := New(Config{BatchSize: 2, FlushInterval: time.Hour, BufferSize: 2}, &fakeDB{}, nil)

	obs := j.ForSession("s")
	for i := 0; i < 3; i++ {
		obs.Observe(testEvent(gateway.KindStateChanged))
	}

	if stats := j.Stats(); stats.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", stats.Dropped)
	}
}

func TestJournal_ObservesSession(t *testing.T) {
	j := New(DefaultConfig(), &fakeDB{}, nil)

	s := gateway.NewSession(gateway.DefaultConfig(), nil, nil, gateway.WithObserver(j.ForSession("sess-3")))
	s.Disconnect()

	rows := j.input.DrainTo(0)
	if len(rows) == 0 {
		t.Fatal("no events journaled")
	}
	last := rows[len(rows)-1]
	if last.Kind != string(gateway.KindDisconnected) || last.State != "dormant" {
		t.Errorf("last row = %+v, want disconnected/dormant", last)
	}
}
