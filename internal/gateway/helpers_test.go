package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/presence-relay/internal/clock"
	"github.com/rickgao/presence-relay/internal/connection"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeConn is an in-memory connection.Client.
type fakeConn struct {
	mu        sync.Mutex
	sent      [][]byte
	connected bool
	closed    bool
	sendErr   error

	messages chan connection.TimestampedMessage
	errors   chan error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		connected: true,
		messages:  make(chan connection.TimestampedMessage, 64),
		errors:    make(chan error, 1),
	}
}

func (c *fakeConn) Connect(ctx context.Context) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.connected = false
	return nil
}

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	if !c.connected {
		return connection.ErrNotConnected
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Messages() <-chan connection.TimestampedMessage { return c.messages }
func (c *fakeConn) Errors() <-chan error                           { return c.errors }

func (c *fakeConn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) setSendErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

// push delivers an inbound frame. seq < 0 means a null sequence.
func (c *fakeConn) push(t *testing.T, op Opcode, d any, seq int64, eventType string) {
	t.Helper()
	frame := map[string]any{"op": op, "d": d, "s": nil, "t": nil}
	if seq >= 0 {
		frame["s"] = seq
	}
	if eventType != "" {
		frame["t"] = eventType
	}
	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	c.messages <- connection.TimestampedMessage{Data: data, ReceivedAt: time.Now()}
}

// fail simulates the read loop ending with err.
func (c *fakeConn) fail(err error) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.errors <- err
}

type sentFrame struct {
	Op Opcode          `json:"op"`
	D  json.RawMessage `json:"d"`
}

func (c *fakeConn) frames(t *testing.T) []sentFrame {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]sentFrame, 0, len(c.sent))
	for _, raw := range c.sent {
		var f sentFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("unmarshal sent frame %s: %v", raw, err)
		}
		out = append(out, f)
	}
	return out
}

func (c *fakeConn) framesWithOp(t *testing.T, op Opcode) []sentFrame {
	t.Helper()
	var out []sentFrame
	for _, f := range c.frames(t) {
		if f.Op == op {
			out = append(out, f)
		}
	}
	return out
}

// fakeDialer hands out fakeConns, or queued errors first.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	errs  []error
	dials int
}

func (d *fakeDialer) Dial(ctx context.Context) (connection.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.errs) > 0 {
		err := d.errs[0]
		d.errs = d.errs[1:]
		return nil, err
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) failNext(errs ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs = append(d.errs, errs...)
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

type harness struct {
	session *Session
	dialer  *fakeDialer
	clock   *clock.FakeClock
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		dialer: &fakeDialer{},
		clock:  clock.Fake(testEpoch),
	}
	base := []Option{
		WithClock(h.clock),
		WithRandom(func() float64 { return 0 }),
	}
	h.session = NewSession(DefaultConfig(), h.dialer, discardLogger(), append(base, opts...)...)
	t.Cleanup(h.session.Disconnect)
	return h
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// open connects and waits for the transport to be installed.
func (h *harness) open(t *testing.T, credential string) *fakeConn {
	t.Helper()
	before := h.dialer.dialCount()
	h.session.Connect(credential)
	return h.waitOpen(t, before)
}

// waitOpen waits for dial number n+1 to produce an installed transport.
func (h *harness) waitOpen(t *testing.T, n int) *fakeConn {
	t.Helper()
	waitFor(t, "transport open", func() bool {
		return h.dialer.conn(n) != nil && h.session.GetStatus().State == StateAwaitingHello
	})
	return h.dialer.conn(n)
}

// ready drives a fresh transport through Hello and READY.
func (h *harness) ready(t *testing.T, credential string) *fakeConn {
	t.Helper()
	c := h.open(t, credential)
	c.push(t, OpHello, map[string]any{"heartbeat_interval": 41250}, -1, "")
	waitFor(t, "identify", func() bool { return len(c.framesWithOp(t, OpIdentify)) == 1 })
	c.push(t, OpDispatch, readyPayload("1", "Bot", "s1"), 1, EventReady)
	waitFor(t, "ready", func() bool { return h.session.GetStatus().Connected })
	return c
}

func (h *harness) generation() uint64 {
	h.session.mu.Lock()
	defer h.session.mu.Unlock()
	return h.session.generation
}

func readyPayload(id, username, sessionID string) map[string]any {
	return map[string]any{
		"user": map[string]any{
			"id":            id,
			"username":      username,
			"discriminator": "0001",
		},
		"session_id": sessionID,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	return v
}

func rawMessage(s string) connection.TimestampedMessage {
	return connection.TimestampedMessage{Data: []byte(s), ReceivedAt: time.Now()}
}
