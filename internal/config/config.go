package config

import (
	"time"

	"github.com/rickgao/presence-relay/internal/connection"
	"github.com/rickgao/presence-relay/internal/gateway"
)

// Config is the root configuration for a presence relay.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Sessions SessionsConfig `yaml:"sessions"`
	Database DatabaseConfig `yaml:"database"`
	Journal  JournalConfig  `yaml:"journal"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds the HTTP request layer settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// GatewayConfig holds the gateway transport and reconnect policy.
type GatewayConfig struct {
	URL                      string        `yaml:"url"`
	Intents                  int           `yaml:"intents"`
	HandshakeTimeout         time.Duration `yaml:"handshake_timeout"`
	WriteTimeout             time.Duration `yaml:"write_timeout"`
	BufferSize               int           `yaml:"buffer_size"`
	MaxReconnectAttempts     int           `yaml:"max_reconnect_attempts"`
	ReconnectBaseDelay       time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay        time.Duration `yaml:"reconnect_max_delay"`
	ReconnectFactor          float64       `yaml:"reconnect_factor"`
	ReconnectJitter          time.Duration `yaml:"reconnect_jitter"`
	RequestedReconnectDelay  time.Duration `yaml:"requested_reconnect_delay"`
	InvalidSessionDelay      time.Duration `yaml:"invalid_session_delay"`
	ReadyPresenceDelay       time.Duration `yaml:"ready_presence_delay"`
	DefaultHeartbeatInterval time.Duration `yaml:"default_heartbeat_interval"`
}

// SessionsConfig controls the session registry.
type SessionsConfig struct {
	// SingleSession disconnects every other session when one connects.
	// Defaults to true.
	SingleSession *bool `yaml:"single_session"`
}

// DatabaseConfig holds the journal database connection.
type DatabaseConfig struct {
	Enabled  bool `yaml:"enabled"`
	DBConfig `yaml:",inline"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// JournalConfig holds batch writer settings for gateway events.
type JournalConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// RedisConfig holds the status mirror settings.
type RedisConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// SingleSessionEnabled reports the effective sessions.single_session.
func (s SessionsConfig) SingleSessionEnabled() bool {
	return s.SingleSession == nil || *s.SingleSession
}

// SessionConfig converts the gateway section for gateway.NewSession.
func (g GatewayConfig) SessionConfig() gateway.Config {
	return gateway.Config{
		Properties:               gateway.DefaultClientProperties(),
		Intents:                  g.Intents,
		MaxReconnectAttempts:     g.MaxReconnectAttempts,
		ReconnectBaseDelay:       g.ReconnectBaseDelay,
		ReconnectMaxDelay:        g.ReconnectMaxDelay,
		ReconnectFactor:          g.ReconnectFactor,
		ReconnectJitter:          g.ReconnectJitter,
		RequestedReconnectDelay:  g.RequestedReconnectDelay,
		InvalidSessionDelay:      g.InvalidSessionDelay,
		ReadyPresenceDelay:       g.ReadyPresenceDelay,
		DefaultHeartbeatInterval: g.DefaultHeartbeatInterval,
	}
}

// ClientConfig converts the gateway section for connection.NewDialer.
func (g GatewayConfig) ClientConfig() connection.ClientConfig {
	return connection.ClientConfig{
		URL:              g.URL,
		HandshakeTimeout: g.HandshakeTimeout,
		WriteTimeout:     g.WriteTimeout,
		BufferSize:       g.BufferSize,
	}
}
