package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}

	if err := c.Gateway.validate(); err != nil {
		return err
	}

	if c.Database.Enabled {
		if err := c.Database.DBConfig.validate("database"); err != nil {
			return err
		}
		if c.Journal.BatchSize < 1 {
			return errors.New("journal.batch_size must be >= 1")
		}
		if c.Journal.BufferSize < 1 {
			return errors.New("journal.buffer_size must be >= 1")
		}
		if c.Journal.FlushInterval <= 0 {
			return errors.New("journal.flush_interval must be > 0")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required")
		}
		if c.Redis.TTL < 2*time.Second {
			return errors.New("redis.ttl must be at least 2s")
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (g *GatewayConfig) validate() error {
	if g.URL == "" {
		return errors.New("gateway.url is required")
	}
	u, err := url.Parse(g.URL)
	if err != nil {
		return fmt.Errorf("gateway.url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("gateway.url must use ws or wss, got %q", u.Scheme)
	}
	if g.MaxReconnectAttempts < 1 {
		return errors.New("gateway.max_reconnect_attempts must be >= 1")
	}
	if g.ReconnectFactor < 1 {
		return errors.New("gateway.reconnect_factor must be >= 1")
	}
	if g.ReconnectBaseDelay > g.ReconnectMaxDelay {
		return fmt.Errorf("gateway.reconnect_base_delay (%v) cannot exceed reconnect_max_delay (%v)",
			g.ReconnectBaseDelay, g.ReconnectMaxDelay)
	}
	if g.BufferSize < 1 {
		return errors.New("gateway.buffer_size must be >= 1")
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
