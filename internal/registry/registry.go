package registry

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/rickgao/presence-relay/internal/gateway"
)

// Errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptyCredential = errors.New("credential is required")
)

// Factory builds the gateway session for id. Called without the registry
// lock held.
type Factory func(id string) *gateway.Session

// Config controls registry behaviour.
type Config struct {
	SingleSession bool // Disconnect all other sessions on Connect
}

// Registry owns the live gateway sessions.
type Registry struct {
	cfg     Config
	factory Factory
	logger  *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*gateway.Session
}

// New creates an empty registry.
func New(cfg Config, factory Factory, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cfg:      cfg,
		factory:  factory,
		logger:   logger,
		sessions: make(map[string]*gateway.Session),
	}
}

// Connect starts a session for credential under id and returns the id
// used. An empty id gets a fresh UUID. An existing session with the same
// id is disconnected and replaced.
func (r *Registry) Connect(id, credential string) (string, error) {
	if credential == "" {
		return "", ErrEmptyCredential
	}
	if id == "" {
		id = uuid.NewString()
	}

	s := r.factory(id)

	r.mu.Lock()
	var replaced []*gateway.Session
	if r.cfg.SingleSession {
		for other, old := range r.sessions {
			replaced = append(replaced, old)
			delete(r.sessions, other)
		}
	} else if old, ok := r.sessions[id]; ok {
		replaced = append(replaced, old)
	}
	r.sessions[id] = s
	n := len(r.sessions)
	r.mu.Unlock()

	for _, old := range replaced {
		old.Disconnect()
	}

	// A concurrent Connect or Disconnect may already have removed s. Its
	// remover disconnects it after unlocking, so s is only started while
	// the registry still holds it.
	r.mu.Lock()
	if r.sessions[id] == s {
		s.Connect(credential)
	}
	r.mu.Unlock()

	r.logger.Info("session connected", "session", id, "replaced", len(replaced), "sessions", n)
	return id, nil
}

// Get returns the session registered under id.
func (r *Registry) Get(id string) (*gateway.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Disconnect stops and forgets the session registered under id.
func (r *Registry) Disconnect(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.Disconnect()
	r.logger.Info("session disconnected", "session", id)
	return nil
}

// DisconnectAll stops and forgets every session.
func (r *Registry) DisconnectAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*gateway.Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Disconnect()
	}
	if len(sessions) > 0 {
		r.logger.Info("all sessions disconnected", "count", len(sessions))
	}
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// IDs returns the registered session ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}
