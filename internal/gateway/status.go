package gateway

// Snapshot is a point-in-time copy of a session's observable state. The
// JSON names match what the request layer has always returned.
type Snapshot struct {
	Connected         bool           `json:"isConnected"`
	User              *User          `json:"user"`
	Status            PresenceStatus `json:"currentStatus"`
	Activity          *Activity      `json:"currentActivity"`
	State             State          `json:"state"`
	DormantReason     DormantReason  `json:"dormantReason,omitempty"`
	ReconnectAttempts int            `json:"reconnectAttempts"`
	GatewaySessionID  string         `json:"gatewaySessionId,omitempty"`
	Sequence          *int64         `json:"sequence,omitempty"`
}

// GetStatus returns a snapshot of the session. It never blocks on I/O.
func (s *Session) GetStatus() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Presence returns the cached desired presence.
func (s *Session) Presence() Presence {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presence.clone()
}

func (s *Session) snapshotLocked() Snapshot {
	p := s.presence.clone()
	snap := Snapshot{
		Connected:         s.state == StateReady,
		Status:            p.Status,
		Activity:          p.Activity,
		State:             s.state,
		DormantReason:     s.dormantReason,
		ReconnectAttempts: s.attempts,
		GatewaySessionID:  s.sessionID,
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	if s.sequence != nil {
		seq := *s.sequence
		snap.Sequence = &seq
	}
	return snap
}
