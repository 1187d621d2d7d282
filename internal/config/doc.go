// Package config loads the relay's YAML configuration.
//
// Files may reference the environment with ${VAR}; unknown keys are an
// error. Sections: server, gateway, sessions, database, journal, redis
// and log. An empty path yields the defaults, and PORT overrides
// server.addr.
package config
