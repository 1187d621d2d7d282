package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrInvalidStatus   = errors.New("invalid presence status")
	ErrInvalidActivity = errors.New("invalid activity")
)

// Opcode identifies the purpose of a gateway frame.
type Opcode int

// Gateway opcodes handled by this client.
const (
	OpDispatch       Opcode = 0
	OpHeartbeat      Opcode = 1
	OpIdentify       Opcode = 2
	OpPresenceUpdate Opcode = 3
	OpReconnect      Opcode = 7
	OpInvalidSession Opcode = 9
	OpHello          Opcode = 10
	OpHeartbeatACK   Opcode = 11
)

// Dispatch event names.
const (
	EventReady          = "READY"
	EventPresenceUpdate = "PRESENCE_UPDATE"
)

// IntentGuildPresences subscribes to presence updates.
const IntentGuildPresences = 1 << 8

// Close codes after which reconnecting cannot succeed.
const (
	CloseAuthenticationFailed = 4004
	CloseInvalidShard         = 4010
	CloseShardingRequired     = 4011
	CloseInvalidAPIVersion    = 4012
	CloseInvalidIntents       = 4013
	CloseDisallowedIntents    = 4014
)

// IsFatalCloseCode reports whether a close code permanently disables
// reconnection.
func IsFatalCloseCode(code int) bool {
	switch code {
	case CloseAuthenticationFailed, CloseInvalidShard, CloseShardingRequired,
		CloseInvalidAPIVersion, CloseInvalidIntents, CloseDisallowedIntents:
		return true
	}
	return false
}

// Frame is the envelope of every gateway message in both directions.
type Frame struct {
	Op   Opcode          `json:"op"`
	Data json.RawMessage `json:"d"`
	Seq  *int64          `json:"s,omitempty"`
	Type *string         `json:"t,omitempty"`
}

// outbound is the envelope for frames we send. D is marshalled as-is so a
// nil sequence becomes JSON null.
type outbound struct {
	Op Opcode `json:"op"`
	D  any    `json:"d"`
}

// HelloPayload is the data of an opcode 10 frame.
type HelloPayload struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"` // milliseconds
}

// ClientProperties describe this client to the gateway.
type ClientProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// DefaultClientProperties returns the properties sent on identify.
func DefaultClientProperties() ClientProperties {
	return ClientProperties{
		OS:      "linux",
		Browser: "discord-bot",
		Device:  "discord-bot",
	}
}

// IdentifyPayload is the data of an opcode 2 frame.
type IdentifyPayload struct {
	Token      string           `json:"token"`
	Properties ClientProperties `json:"properties"`
	Intents    int              `json:"intents"`
}

// PresencePayload is the data of an opcode 3 frame.
type PresencePayload struct {
	Status     PresenceStatus `json:"status"`
	Since      *int64         `json:"since"` // unix ms, only while idle
	Activities []Activity     `json:"activities"`
	AFK        bool           `json:"afk"`
}

// User is the authenticated identity reported by READY.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	GlobalName    string `json:"global_name,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
	Bot           bool   `json:"bot,omitempty"`
}

// Tag returns username#discriminator, or the bare username for accounts
// without a discriminator.
func (u User) Tag() string {
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + "#" + u.Discriminator
}

// ReadyPayload is the data of the READY dispatch.
type ReadyPayload struct {
	User      User   `json:"user"`
	SessionID string `json:"session_id"`
}

// PresenceUpdateEvent is the part of a PRESENCE_UPDATE dispatch we read.
type PresenceUpdateEvent struct {
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	Status PresenceStatus `json:"status"`
}

// PresenceStatus is the user-visible online status.
type PresenceStatus string

const (
	StatusOnline    PresenceStatus = "online"
	StatusIdle      PresenceStatus = "idle"
	StatusDND       PresenceStatus = "dnd"
	StatusOffline   PresenceStatus = "offline"
	StatusInvisible PresenceStatus = "invisible"
)

// ParsePresenceStatus validates a status string.
func ParsePresenceStatus(s string) (PresenceStatus, error) {
	switch st := PresenceStatus(s); st {
	case StatusOnline, StatusIdle, StatusDND, StatusOffline, StatusInvisible:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// ActivityType is the kind of activity shown next to the status.
type ActivityType int

const (
	ActivityPlaying   ActivityType = 0
	ActivityStreaming ActivityType = 1
	ActivityListening ActivityType = 2
	ActivityWatching  ActivityType = 3
	ActivityCompeting ActivityType = 5
)

// String returns the lower-case activity verb.
func (t ActivityType) String() string {
	switch t {
	case ActivityPlaying:
		return "playing"
	case ActivityStreaming:
		return "streaming"
	case ActivityListening:
		return "listening"
	case ActivityWatching:
		return "watching"
	case ActivityCompeting:
		return "competing"
	}
	return fmt.Sprintf("activity(%d)", int(t))
}

// Activity is the metadata broadcast with a presence.
type Activity struct {
	Name    string       `json:"name"`
	Type    ActivityType `json:"type"`
	Details string       `json:"details,omitempty"`
	State   string       `json:"state,omitempty"`
}

// Validate checks the required name and the type enum.
func (a Activity) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidActivity)
	}
	switch a.Type {
	case ActivityPlaying, ActivityStreaming, ActivityListening, ActivityWatching, ActivityCompeting:
		return nil
	}
	return fmt.Errorf("%w: unknown type %d", ErrInvalidActivity, int(a.Type))
}

// Presence is the desired status and optional activity.
type Presence struct {
	Status   PresenceStatus `json:"status"`
	Activity *Activity      `json:"activity,omitempty"`
}

// DefaultPresence is online with no activity.
func DefaultPresence() Presence {
	return Presence{Status: StatusOnline}
}

// IsDefault reports whether p equals DefaultPresence.
func (p Presence) IsDefault() bool {
	return p.Status == StatusOnline && p.Activity == nil
}

// clone returns a copy that shares no memory with p.
func (p Presence) clone() Presence {
	if p.Activity != nil {
		a := *p.Activity
		p.Activity = &a
	}
	return p
}

// payload builds the opcode 3 data for p at time now.
func (p Presence) payload(now time.Time) PresencePayload {
	out := PresencePayload{
		Status:     p.Status,
		Activities: []Activity{},
		AFK:        p.Status == StatusIdle,
	}
	if p.Status == StatusIdle {
		ms := now.UnixMilli()
		out.Since = &ms
	}
	if p.Activity != nil {
		out.Activities = append(out.Activities, *p.Activity)
	}
	return out
}

// Config configures a Session.
type Config struct {
	Properties               ClientProperties // Sent on identify
	Intents                  int              // Intent bitmask sent on identify
	MaxReconnectAttempts     int              // Consecutive retryable closes before going dormant
	ReconnectBaseDelay       time.Duration    // Delay before the first retry
	ReconnectMaxDelay        time.Duration    // Cap on the exponential part of the delay
	ReconnectFactor          float64          // Growth per attempt
	ReconnectJitter          time.Duration    // Upper bound of the uniform random addition
	RequestedReconnectDelay  time.Duration    // Wait before reconnecting on opcode 7 or heartbeat failure
	InvalidSessionDelay      time.Duration    // Wait before re-identifying after opcode 9
	ReadyPresenceDelay       time.Duration    // Wait before replaying the cached presence after READY
	DefaultHeartbeatInterval time.Duration    // Used when Hello carries no usable interval
}

// DefaultConfig returns the gateway defaults.
func DefaultConfig() Config {
	return Config{
		Properties:               DefaultClientProperties(),
		Intents:                  IntentGuildPresences,
		MaxReconnectAttempts:     5,
		ReconnectBaseDelay:       5 * time.Second,
		ReconnectMaxDelay:        30 * time.Second,
		ReconnectFactor:          1.5,
		ReconnectJitter:          time.Second,
		RequestedReconnectDelay:  time.Second,
		InvalidSessionDelay:      time.Second,
		ReadyPresenceDelay:       time.Second,
		DefaultHeartbeatInterval: 41250 * time.Millisecond,
	}
}
