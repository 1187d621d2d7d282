package config

import (
	"time"

	"github.com/rickgao/presence-relay/internal/connection"
	"github.com/rickgao/presence-relay/internal/gateway"
)

// Default values for optional configuration fields.
const (
	DefaultServerAddr        = ":3000"
	DefaultReadTimeout       = 10 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultGatewayWrite      = 5 * time.Second
	DefaultGatewayBufferSize = 256
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 4
	DefaultMinConns          = 1
	DefaultBatchSize         = 100
	DefaultFlushInterval     = 1 * time.Second
	DefaultJournalBufferSize = 1000
	DefaultRedisAddr         = "localhost:6379"
	DefaultRedisKeyPrefix    = "presence:session:"
	DefaultRedisTTL          = 5 * time.Minute
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
)

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	applyGatewayDefaults(&c.Gateway)

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Journal defaults
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultFlushInterval
	}
	if c.Journal.BufferSize == 0 {
		c.Journal.BufferSize = DefaultJournalBufferSize
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = DefaultRedisAddr
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = DefaultRedisTTL
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyGatewayDefaults(g *GatewayConfig) {
	d := gateway.DefaultConfig()

	if g.URL == "" {
		g.URL = connection.DefaultGatewayURL
	}
	if g.Intents == 0 {
		g.Intents = d.Intents
	}
	if g.HandshakeTimeout == 0 {
		g.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if g.WriteTimeout == 0 {
		g.WriteTimeout = DefaultGatewayWrite
	}
	if g.BufferSize == 0 {
		g.BufferSize = DefaultGatewayBufferSize
	}
	if g.MaxReconnectAttempts == 0 {
		g.MaxReconnectAttempts = d.MaxReconnectAttempts
	}
	if g.ReconnectBaseDelay == 0 {
		g.ReconnectBaseDelay = d.ReconnectBaseDelay
	}
	if g.ReconnectMaxDelay == 0 {
		g.ReconnectMaxDelay = d.ReconnectMaxDelay
	}
	if g.ReconnectFactor == 0 {
		g.ReconnectFactor = d.ReconnectFactor
	}
	if g.ReconnectJitter == 0 {
		g.ReconnectJitter = d.ReconnectJitter
	}
	if g.RequestedReconnectDelay == 0 {
		g.RequestedReconnectDelay = d.RequestedReconnectDelay
	}
	if g.InvalidSessionDelay == 0 {
		g.InvalidSessionDelay = d.InvalidSessionDelay
	}
	if g.ReadyPresenceDelay == 0 {
		g.ReadyPresenceDelay = d.ReadyPresenceDelay
	}
	if g.DefaultHeartbeatInterval == 0 {
		g.DefaultHeartbeatInterval = d.DefaultHeartbeatInterval
	}
}
