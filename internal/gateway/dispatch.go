package gateway

import (
	"encoding/json"
	"time"
)

// dispatchLocked routes one inbound frame by opcode.
func (s *Session) dispatchLocked(f Frame) {
	if f.Seq != nil {
		seq := *f.Seq
		s.sequence = &seq
	}

	switch f.Op {
	case OpHello:
		s.handleHelloLocked(f.Data)

	case OpDispatch:
		var eventType string
		if f.Type != nil {
			eventType = *f.Type
		}
		s.handleDispatchLocked(eventType, f.Data)

	case OpHeartbeat:
		s.heartbeatNowLocked()

	case OpReconnect:
		s.logger.Info("gateway requested reconnect")
		s.requestReconnectLocked("gateway requested reconnect")

	case OpInvalidSession:
		s.handleInvalidSessionLocked()

	case OpHeartbeatACK:
		// Liveness only; missed ACKs are not tracked.

	default:
		s.logger.Debug("unknown gateway opcode", "op", int(f.Op))
	}
}

func (s *Session) handleHelloLocked(data json.RawMessage) {
	var hello HelloPayload
	if err := json.Unmarshal(data, &hello); err != nil {
		s.logger.Warn("malformed hello", "error", err)
	}

	interval := time.Duration(hello.HeartbeatInterval) * time.Millisecond
	if interval <= 0 {
		interval = s.cfg.DefaultHeartbeatInterval
		s.logger.Warn("hello without heartbeat interval, using default", "interval", interval)
	}

	gen := s.generation
	s.heartbeat.start(interval, func(epoch uint64) { s.heartbeatTick(gen, epoch) })
	s.logger.Info("hello received", "heartbeat_interval", interval)

	s.setStateLocked(StateAuthenticating)
	s.authenticateLocked()
}

func (s *Session) handleDispatchLocked(eventType string, data json.RawMessage) {
	switch eventType {
	case EventReady:
		s.handleReadyLocked(data)
	case EventPresenceUpdate:
		s.handlePresenceUpdateLocked(data)
	}
}

func (s *Session) handleReadyLocked(data json.RawMessage) {
	var ready ReadyPayload
	if err := json.Unmarshal(data, &ready); err != nil {
		s.logger.Warn("malformed READY", "error", err)
		return
	}

	user := ready.User
	s.user = &user
	s.sessionID = ready.SessionID
	s.setStateLocked(StateReady)

	s.logger.Info("gateway ready", "user", user.Tag(), "session_id", ready.SessionID)
	s.emitLocked(Event{Kind: KindReady, Detail: user.Tag()})

	if s.presence.IsDefault() {
		return
	}

	// Give the gateway time to apply its own initial presence first.
	gen := s.generation
	s.readyPresenceTimer.Stop()
	s.readyPresenceTimer = s.clock.AfterFunc(s.cfg.ReadyPresenceDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if gen != s.generation {
			return
		}
		s.readyPresenceTimer = nil
		if err := s.sendPresenceLocked(); err != nil {
			s.logger.Error("presence replay failed", "error", err)
		}
	})
}

func (s *Session) handlePresenceUpdateLocked(data json.RawMessage) {
	if s.user == nil {
		return
	}

	var ev PresenceUpdateEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return
	}
	if ev.User.ID == s.user.ID {
		s.logger.Info("own presence updated", "status", ev.Status)
	}
}

// handleInvalidSessionLocked forgets the session id and re-identifies on
// the same transport after InvalidSessionDelay. There is no retry cap.
func (s *Session) handleInvalidSessionLocked() {
	s.logger.Warn("invalid session, re-identifying", "delay", s.cfg.InvalidSessionDelay)
	s.sessionID = ""
	s.emitLocked(Event{Kind: KindInvalidSession})

	gen := s.generation
	s.invalidSessionTimer.Stop()
	s.invalidSessionTimer = s.clock.AfterFunc(s.cfg.InvalidSessionDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if gen != s.generation || !s.reconnect {
			return
		}
		s.invalidSessionTimer = nil
		s.authenticateLocked()
	})
}

// authenticateLocked sends Identify. Send failures are logged only.
func (s *Session) authenticateLocked() {
	if !s.transportOpenLocked() {
		s.logger.Warn("transport not open, skipping identify")
		return
	}

	payload := IdentifyPayload{
		Token:      s.credential,
		Properties: s.cfg.Properties,
		Intents:    s.cfg.Intents,
	}
	if err := s.sendLocked(OpIdentify, payload); err != nil {
		s.logger.Error("identify send failed", "error", err)
		return
	}

	s.logger.Info("identify sent")
	s.emitLocked(Event{Kind: KindIdentifySent})
}

// heartbeatTick runs on every heartbeat interval. A tick from an older
// transport or an older Hello on the same transport does nothing.
func (s *Session) heartbeatTick(gen, epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || !s.heartbeat.current(epoch) {
		return
	}

	if !s.transportOpenLocked() {
		s.heartbeat.stop()
		s.logger.Info("transport gone, heartbeat stopped")
		return
	}

	if s.heartbeatNowLocked() {
		s.heartbeat.rearm()
	}
}

// heartbeatNowLocked sends one heartbeat. A failed send drops the
// transport and schedules a reconnect; it reports whether the send worked.
func (s *Session) heartbeatNowLocked() bool {
	if err := s.sendLocked(OpHeartbeat, s.sequence); err != nil {
		s.logger.Error("heartbeat send failed", "error", err)
		s.heartbeat.stop()
		s.requestReconnectLocked("heartbeat send failed")
		return false
	}
	return true
}
