package gateway

// UpdatePresence stores p as the desired presence and sends it if a
// transport is open. It returns true when the presence was sent and false
// when it was only stored (no transport, or the send failed). A stored
// presence is replayed after the next READY.
//
// An empty status means online.
func (s *Session) UpdatePresence(p Presence) bool {
	if p.Status == "" {
		p.Status = StatusOnline
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.presence = p.clone()

	if !s.transportOpenLocked() {
		s.logger.Warn("gateway not connected, presence saved for later", "status", p.Status)
		return false
	}

	if err := s.sendPresenceLocked(); err != nil {
		s.logger.Error("presence send failed", "error", err)
		return false
	}
	return true
}

// sendPresenceLocked sends the cached presence.
func (s *Session) sendPresenceLocked() error {
	if err := s.sendLocked(OpPresenceUpdate, s.presence.payload(s.clock.Now())); err != nil {
		return err
	}

	activity := "none"
	if s.presence.Activity != nil {
		activity = s.presence.Activity.Name
	}
	s.logger.Info("presence sent", "status", s.presence.Status, "activity", activity)
	s.emitLocked(Event{Kind: KindPresenceSent, Detail: string(s.presence.Status)})
	return nil
}
