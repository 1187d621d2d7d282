package gateway

import "fmt"

// State is the connection state of a Session.
type State int

const (
	StateIdle           State = iota // Never connected
	StateConnecting                  // Dial in progress
	StateAwaitingHello               // Transport open, waiting for opcode 10
	StateAuthenticating              // Identify sent, waiting for READY
	StateReady                       // READY received
	StateReconnecting                // Reconnect timer pending
	StateDormant                     // No network activity until Connect
)

var stateNames = [...]string{
	StateIdle:           "idle",
	StateConnecting:     "connecting",
	StateAwaitingHello:  "awaiting_hello",
	StateAuthenticating: "authenticating",
	StateReady:          "ready",
	StateReconnecting:   "reconnecting",
	StateDormant:        "dormant",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DormantReason explains why a session stopped reconnecting.
type DormantReason string

const (
	DormantNone              DormantReason = ""
	DormantFatalClose        DormantReason = "fatal_close"
	DormantAttemptsExhausted DormantReason = "attempts_exhausted"
	DormantDisconnected      DormantReason = "disconnected"
)

// UnmarshalText decodes a state name written by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown gateway state %q", b)
}
