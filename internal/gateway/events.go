package gateway

import "time"

// EventKind classifies an Event.
type EventKind string

const (
	KindStateChanged       EventKind = "state_changed"
	KindTransportClosed    EventKind = "transport_closed"
	KindReconnectScheduled EventKind = "reconnect_scheduled"
	KindIdentifySent       EventKind = "identify_sent"
	KindReady              EventKind = "ready"
	KindInvalidSession     EventKind = "invalid_session"
	KindPresenceSent       EventKind = "presence_sent"
	KindDisconnected       EventKind = "disconnected"
)

// Event describes something that happened to a session.
type Event struct {
	Kind     EventKind
	State    State         // State after the event
	Code     int           // Close code, for KindTransportClosed
	Attempt  int           // Attempt number, for KindReconnectScheduled
	Delay    time.Duration // Scheduled delay, for KindReconnectScheduled
	Detail   string
	At       time.Time
	Snapshot Snapshot
}

// Observer receives session events. Observe is called with the session
// lock held and must not block or call back into the session.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f(ev).
func (f ObserverFunc) Observe(ev Event) { f(ev) }

// Observers fans events out to every non-nil observer in order.
func Observers(obs ...Observer) Observer {
	var list []Observer
	for _, o := range obs {
		if o != nil {
			list = append(list, o)
		}
	}
	switch len(list) {
	case 0:
		return nil
	case 1:
		return list[0]
	}
	return ObserverFunc(func(ev Event) {
		for _, o := range list {
			o.Observe(ev)
		}
	})
}
