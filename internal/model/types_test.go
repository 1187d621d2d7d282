package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestGatewayEvent(t *testing.T) {
	id := uuid.New()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	e := GatewayEvent{
		ID:         id,
		SessionID:  "sess-1",
		Kind:       "reconnect_scheduled",
		State:      "reconnecting",
		CloseCode:  1006,
		Attempt:    2,
		DelayMs:    7500,
		OccurredAt: at,
	}

	if e.ID != id {
		t.Errorf("ID = %s, want %s", e.ID, id)
	}
	if e.ID.Version() != 4 {
		t.Errorf("ID version = %d, want 4", e.ID.Version())
	}
	if !e.OccurredAt.Equal(at) {
		t.Errorf("OccurredAt = %v, want %v", e.OccurredAt, at)
	}
}
