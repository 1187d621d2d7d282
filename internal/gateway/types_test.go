package gateway

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParsePresenceStatus(t *testing.T) {
	for _, s := range []string{"online", "idle", "dnd", "offline", "invisible"} {
		got, err := ParsePresenceStatus(s)
		if err != nil || string(got) != s {
			t.Errorf("ParsePresenceStatus(%q) = %q, %v", s, got, err)
		}
	}

	for _, s := range []string{"", "away", "ONLINE"} {
		if _, err := ParsePresenceStatus(s); !errors.Is(err, ErrInvalidStatus) {
			t.Errorf("ParsePresenceStatus(%q) error = %v, want ErrInvalidStatus", s, err)
		}
	}
}

func TestActivityValidate(t *testing.T) {
	tests := []struct {
		name    string
		a       Activity
		wantErr bool
	}{
		{"playing", Activity{Name: "chess", Type: ActivityPlaying}, false},
		{"competing", Activity{Name: "chess", Type: ActivityCompeting}, false},
		{"missing name", Activity{Type: ActivityWatching}, true},
		{"custom type rejected", Activity{Name: "x", Type: 4}, true},
		{"out of range", Activity{Name: "x", Type: 9}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.a.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidActivity) {
				t.Errorf("error %v does not wrap ErrInvalidActivity", err)
			}
		})
	}
}

func TestActivityTypeString(t *testing.T) {
	if got := ActivityListening.String(); got != "listening" {
		t.Errorf("String() = %q", got)
	}
	if got := ActivityType(4).String(); got != "activity(4)" {
		t.Errorf("String() = %q", got)
	}
}

func TestIsFatalCloseCode(t *testing.T) {
	for code := 1000; code <= 4999; code++ {
		want := code == 4004 || (code >= 4010 && code <= 4014)
		if got := IsFatalCloseCode(code); got != want {
			t.Errorf("IsFatalCloseCode(%d) = %v, want %v", code, got, want)
		}
	}
}

func TestPresencePayload(t *testing.T) {
	now := time.UnixMilli(1700000000000)

	idle, err := json.Marshal(Presence{Status: StatusIdle}.payload(now))
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"status":"idle","since":1700000000000,"activities":[],"afk":true}`; string(idle) != want {
		t.Errorf("idle payload = %s, want %s", idle, want)
	}

	p := Presence{Status: StatusOnline, Activity: &Activity{Name: "music", Type: ActivityListening, Details: "track"}}
	online, err := json.Marshal(p.payload(now))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"status":"online","since":null,"activities":[{"name":"music","type":2,"details":"track"}],"afk":false}`
	if string(online) != want {
		t.Errorf("online payload = %s, want %s", online, want)
	}
}

func TestOutboundFrame(t *testing.T) {
	data, err := json.Marshal(outbound{Op: OpHeartbeat, D: (*int64)(nil)})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"op":1,"d":null}` {
		t.Errorf("heartbeat = %s", data)
	}

	id, err := json.Marshal(outbound{Op: OpIdentify, D: IdentifyPayload{
		Token:      "T1",
		Properties: DefaultClientProperties(),
		Intents:    IntentGuildPresences,
	}})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"op":2,"d":{"token":"T1","properties":{"os":"linux","browser":"discord-bot","device":"discord-bot"},"intents":256}}`
	if string(id) != want {
		t.Errorf("identify = %s, want %s", id, want)
	}
}

func TestFrameDecode(t *testing.T) {
	var f Frame
	if err := json.Unmarshal([]byte(`{"op":0,"d":{"x":1},"s":7,"t":"READY"}`), &f); err != nil {
		t.Fatal(err)
	}
	if f.Op != OpDispatch || f.Seq == nil || *f.Seq != 7 || f.Type == nil || *f.Type != EventReady {
		t.Errorf("frame = %+v", f)
	}

	f = Frame{}
	if err := json.Unmarshal([]byte(`{"op":11,"d":null,"s":null,"t":null}`), &f); err != nil {
		t.Fatal(err)
	}
	if f.Seq != nil || f.Type != nil {
		t.Errorf("null fields decoded as %+v", f)
	}
}

func TestUserTag(t *testing.T) {
	if got := (User{Username: "Bot", Discriminator: "0001"}).Tag(); got != "Bot#0001" {
		t.Errorf("Tag() = %q", got)
	}
	if got := (User{Username: "bot", Discriminator: "0"}).Tag(); got != "bot" {
		t.Errorf("Tag() = %q", got)
	}
}

func TestStateMarshalText(t *testing.T) {
	data, err := json.Marshal(Snapshot{State: StateAwaitingHello, Status: StatusOnline})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m["state"] != "awaiting_hello" {
		t.Errorf("state = %v", m["state"])
	}
	if m["isConnected"] != false || m["currentStatus"] != "online" {
		t.Errorf("snapshot = %s", data)
	}
	if _, ok := m["currentActivity"]; !ok {
		t.Error("currentActivity should be present as null")
	}
}

func TestConfigWithDefaults(t *testing.T) {
	got := Config{MaxReconnectAttempts: 3}.withDefaults()
	d := DefaultConfig()
	if got.MaxReconnectAttempts != 3 {
		t.Errorf("MaxReconnectAttempts = %d, want 3", got.MaxReconnectAttempts)
	}
	if got.ReconnectBaseDelay != d.ReconnectBaseDelay || got.Intents != d.Intents || got.Properties != d.Properties {
		t.Errorf("defaults not applied: %+v", got)
	}
}

func TestStateUnmarshalText(t *testing.T) {
	var snap Snapshot
	if err := json.Unmarshal([]byte(`{"state":"reconnecting"}`), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.State != StateReconnecting {
		t.Errorf("state = %v, want reconnecting", snap.State)
	}

	var s State
	if err := s.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("expected error for unknown state")
	}
}
