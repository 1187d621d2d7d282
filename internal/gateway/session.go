package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/rickgao/presence-relay/internal/clock"
	"github.com/rickgao/presence-relay/internal/connection"
)

// Session is one gateway identity. Create it with NewSession, then call
// Connect. All exported methods are safe for concurrent use and return
// without waiting for the network.
type Session struct {
	cfg      Config
	dialer   connection.Dialer
	clock    clock.Clock
	logger   *slog.Logger
	observer Observer
	random   func() float64

	mu            sync.Mutex
	generation    uint64
	state         State
	dormantReason DormantReason
	reconnect     bool
	credential    string
	attempts      int

	transport     connection.Client
	transportDone chan struct{}
	dialCancel    context.CancelFunc

	sequence  *int64
	sessionID string
	user      *User
	presence  Presence

	heartbeat           heartbeat
	reconnectTimer      *clock.Timer
	invalidSessionTimer *clock.Timer
	readyPresenceTimer  *clock.Timer
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces the wall clock used for timers and timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// WithObserver registers an observer for session events.
func WithObserver(o Observer) Option {
	return func(s *Session) {
		s.observer = o
	}
}

// WithRandom replaces the [0, 1) source used for reconnect jitter.
func WithRandom(f func() float64) Option {
	return func(s *Session) {
		s.random = f
	}
}

// NewSession creates an idle session. Zero-valued Config fields take the
// values from DefaultConfig.
func NewSession(cfg Config, dialer connection.Dialer, logger *slog.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		cfg:      cfg.withDefaults(),
		dialer:   dialer,
		clock:    clock.Real(),
		logger:   logger,
		random:   rand.Float64,
		state:    StateIdle,
		presence: DefaultPresence(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.heartbeat.clock = s.clock

	return s
}

// withDefaults fills zero fields from DefaultConfig. Delays must stay
// positive: a zero delay would run a fake-clock callback inline while
// the session lock is held.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Properties == (ClientProperties{}) {
		c.Properties = d.Properties
	}
	if c.Intents == 0 {
		c.Intents = d.Intents
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = d.MaxReconnectAttempts
	}
	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = d.ReconnectBaseDelay
	}
	if c.ReconnectMaxDelay <= 0 {
		c.ReconnectMaxDelay = d.ReconnectMaxDelay
	}
	if c.ReconnectFactor <= 0 {
		c.ReconnectFactor = d.ReconnectFactor
	}
	if c.ReconnectJitter < 0 {
		c.ReconnectJitter = 0
	}
	if c.RequestedReconnectDelay <= 0 {
		c.RequestedReconnectDelay = d.RequestedReconnectDelay
	}
	if c.InvalidSessionDelay <= 0 {
		c.InvalidSessionDelay = d.InvalidSessionDelay
	}
	if c.ReadyPresenceDelay <= 0 {
		c.ReadyPresenceDelay = d.ReadyPresenceDelay
	}
	if c.DefaultHeartbeatInterval <= 0 {
		c.DefaultHeartbeatInterval = d.DefaultHeartbeatInterval
	}
	return c
}

// Connect (re)starts the session with credential. Any existing transport,
// pending timer and in-flight dial is cancelled first, and automatic
// reconnection is re-enabled. Progress is observed through GetStatus.
func (s *Session) Connect(credential string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.credential = credential
	s.reconnect = true
	s.dormantReason = DormantNone
	s.logger.Info("connecting to gateway")
	s.connectLocked()
}

// Disconnect stops the session permanently: no timer that was pending
// before the call will act, and the transport is closed. Idempotent.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDormant && s.dormantReason == DormantDisconnected {
		return
	}

	s.reconnect = false
	s.teardownLocked()
	s.goDormantLocked(DormantDisconnected)
	s.emitLocked(Event{Kind: KindDisconnected})
	s.logger.Info("gateway session closed")
}

// connectLocked tears down the current transport and dials a new one in
// the background.
func (s *Session) connectLocked() {
	s.teardownLocked()
	s.setStateLocked(StateConnecting)

	gen := s.generation
	ctx, cancel := context.WithCancel(context.Background())
	s.dialCancel = cancel

	go s.dial(ctx, gen)
}

// dial opens the transport for generation gen.
func (s *Session) dial(ctx context.Context, gen uint64) {
	client, err := s.dialer.Dial(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		// Superseded while dialing.
		if client != nil {
			client.Close()
		}
		return
	}

	if err != nil {
		s.logger.Warn("gateway dial failed", "error", err)
		s.handleCloseLocked(connection.CloseCode(err), err)
		return
	}

	s.transport = client
	s.transportDone = make(chan struct{})
	s.attempts = 0
	s.setStateLocked(StateAwaitingHello)
	s.logger.Info("gateway transport open")

	go s.readLoop(gen, client, s.transportDone)
}

// teardownLocked invalidates every read loop and timer of the current
// generation, cancels the in-flight dial and closes the transport.
func (s *Session) teardownLocked() {
	s.generation++

	s.heartbeat.stop()
	s.reconnectTimer.Stop()
	s.reconnectTimer = nil
	s.invalidSessionTimer.Stop()
	s.invalidSessionTimer = nil
	s.readyPresenceTimer.Stop()
	s.readyPresenceTimer = nil

	if s.dialCancel != nil {
		s.dialCancel()
		s.dialCancel = nil
	}

	if s.transport != nil {
		close(s.transportDone)
		if err := s.transport.Close(); err != nil {
			s.logger.Debug("transport close", "error", err)
		}
		s.transport = nil
		s.transportDone = nil
	}
}

// readLoop hands inbound frames to the dispatcher until the transport
// fails or is superseded.
func (s *Session) readLoop(gen uint64, client connection.Client, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return

		case msg := <-client.Messages():
			if !s.handleMessage(gen, msg.Data) {
				return
			}

		case err := <-client.Errors():
			// Frames read before the failure are still in order ahead of it.
			for drained := false; !drained; {
				select {
				case msg := <-client.Messages():
					if !s.handleMessage(gen, msg.Data) {
						return
					}
				default:
					drained = true
				}
			}
			s.handleTransportError(gen, err)
			return
		}
	}
}

// handleMessage decodes and dispatches one frame. It returns false once
// gen is stale.
func (s *Session) handleMessage(gen uint64, data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return false
	}

	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		s.logger.Warn("undecodable gateway frame", "error", err, "size", len(data))
		return true
	}

	s.dispatchLocked(f)
	return true
}

func (s *Session) handleTransportError(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return
	}
	s.handleCloseLocked(connection.CloseCode(err), err)
}

// handleCloseLocked applies the close policy for code.
func (s *Session) handleCloseLocked(code int, err error) {
	s.logger.Warn("gateway connection closed", "code", code, "error", err)
	s.teardownLocked()
	s.emitLocked(Event{Kind: KindTransportClosed, Code: code, Detail: errString(err)})

	if !s.reconnect {
		s.setStateLocked(StateDormant)
		return
	}

	if IsFatalCloseCode(code) {
		s.logger.Error("fatal gateway close, reconnection disabled", "code", code)
		s.reconnect = false
		s.goDormantLocked(DormantFatalClose)
		return
	}

	if s.attempts >= s.cfg.MaxReconnectAttempts {
		s.logger.Error("reconnect attempts exhausted", "attempts", s.attempts)
		s.goDormantLocked(DormantAttemptsExhausted)
		return
	}

	s.attempts++
	delay := reconnectDelay(s.cfg, s.attempts, s.random())
	s.setStateLocked(StateReconnecting)

	gen := s.generation
	s.reconnectTimer = s.clock.AfterFunc(delay, func() { s.fireReconnect(gen) })

	s.logger.Info("reconnect scheduled",
		"attempt", s.attempts,
		"max_attempts", s.cfg.MaxReconnectAttempts,
		"delay", delay,
	)
	s.emitLocked(Event{Kind: KindReconnectScheduled, Attempt: s.attempts, Delay: delay})
}

// requestReconnectLocked drops the transport and connects again after the
// fixed RequestedReconnectDelay. It does not count as an attempt.
func (s *Session) requestReconnectLocked(reason string) {
	if !s.reconnect {
		return
	}

	s.teardownLocked()
	s.setStateLocked(StateReconnecting)

	gen := s.generation
	delay := s.cfg.RequestedReconnectDelay
	s.reconnectTimer = s.clock.AfterFunc(delay, func() { s.fireReconnect(gen) })

	s.logger.Info("reconnect requested", "reason", reason, "delay", delay)
	s.emitLocked(Event{Kind: KindReconnectScheduled, Attempt: s.attempts, Delay: delay, Detail: reason})
}

func (s *Session) fireReconnect(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || !s.reconnect {
		return
	}
	s.reconnectTimer = nil
	s.connectLocked()
}

// sendLocked marshals and writes one outbound frame.
func (s *Session) sendLocked(op Opcode, d any) error {
	if s.transport == nil {
		return connection.ErrNotConnected
	}
	data, err := json.Marshal(outbound{Op: op, D: d})
	if err != nil {
		return err
	}
	return s.transport.Send(data)
}

func (s *Session) transportOpenLocked() bool {
	return s.transport != nil && s.transport.IsConnected()
}

func (s *Session) setStateLocked(st State) {
	if s.state == st {
		return
	}
	prev := s.state
	s.state = st
	s.logger.Debug("gateway state", "from", prev, "to", st)
	s.emitLocked(Event{Kind: KindStateChanged, Detail: prev.String() + "->" + st.String()})
}

func (s *Session) goDormantLocked(reason DormantReason) {
	s.dormantReason = reason
	s.setStateLocked(StateDormant)
}

func (s *Session) emitLocked(ev Event) {
	if s.observer == nil {
		return
	}
	ev.State = s.state
	ev.At = s.clock.Now()
	ev.Snapshot = s.snapshotLocked()
	s.observer.Observe(ev)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
