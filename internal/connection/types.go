package connection

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")
)

// DefaultGatewayURL is the versioned JSON gateway endpoint.
const DefaultGatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // Gateway URL including version and encoding query
	HandshakeTimeout time.Duration // Max time for the WebSocket upgrade
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
	ReadLimit        int64         // Largest inbound frame in bytes
	UserAgent        string        // Sent with the upgrade request
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		URL:              DefaultGatewayURL,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       256,
		ReadLimit:        4 << 20,
		UserAgent:        "presence-relay (+https://github.com/rickgao/presence-relay)",
	}
}

// CloseCode extracts the WebSocket close code from a read error. Errors
// that are not close frames (resets, EOF, dial failures) map to 1006,
// the RFC 6455 abnormal closure code.
func CloseCode(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return websocket.CloseAbnormalClosure
}
