package model

import (
	"time"

	"github.com/google/uuid"
)

// GatewayEvent is one journaled gateway session event.
type GatewayEvent struct {
	ID         uuid.UUID // Primary key, generated when the event is observed
	SessionID  string    // Registry session id
	Kind       string    // Event kind (state_changed, transport_closed, ...)
	State      string    // Connection state after the event
	CloseCode  int       // WebSocket close code, 0 when not a close
	Attempt    int       // Reconnect attempt number, 0 when not scheduled
	DelayMs    int64     // Scheduled reconnect delay (ms)
	Detail     string    // Free-form detail (user tag, error text, transition)
	OccurredAt time.Time // Session clock time of the event
}
