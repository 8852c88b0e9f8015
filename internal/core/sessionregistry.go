package core

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SessionRegistry is the process-wide map of session id -> session (spec
// §4.4). It enforces the global session cap and starts each session's
// lifetime timer.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*TransferSession

	cfg     Config
	clients *ClientRegistry
	logger  zerolog.Logger
}

// NewSessionRegistry constructs a registry bounded by cfg.SessionLimit,
// wiring every created session to clients' Destroyed bus so sender/
// receiver departures reach the session (spec §4.3 sender-gone
// semantics). logger is the process's own root logger (internal/logging);
// every session derives its per-session logger from it.
func NewSessionRegistry(cfg Config, clients *ClientRegistry, logger zerolog.Logger) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*TransferSession),
		cfg:      cfg,
		clients:  clients,
		logger:   logger,
	}
}

// Create starts a new session owned by sender. The session id equals
// sender.PublicID(); fails if one already exists for that id or the
// registry is at SessionLimit (spec §4.4).
func (r *SessionRegistry) Create(sender *Client) (*TransferSession, time.Duration, error) {
	id := sender.PublicID()

	r.mu.Lock()
	if _, exists := r.sessions[id]; exists {
		r.mu.Unlock()
		return nil, 0, ErrSessionExists
	}
	if len(r.sessions) >= r.cfg.SessionLimit {
		r.mu.Unlock()
		return nil, 0, ErrSessionLimitReached
	}

	s := newTransferSession(sender, r.cfg, r.clients, r.logger, r.Remove)
	r.sessions[id] = s
	r.mu.Unlock()

	return s, r.cfg.MaxLifetime, nil
}

// Get looks up a session by id. A session's remaining lifetime is not
// tracked separately from its timer; callers that need a countdown use
// TransferSession.FreezeRemaining for the freeze window, the only
// countdown spec §12 asks the core to expose.
func (r *SessionRegistry) Get(id string) (*TransferSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Count returns the number of live sessions.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Remove drops id from the map under the lock, then lets the shared
// reference go out of scope outside the lock — so a session's own
// terminate() calling back into Remove (the common case: every
// terminal transition calls onTerminal=Remove) cannot deadlock (spec
// §4.4, §9 "Deadlock avoidance on self-removal"). Idempotent.
func (r *SessionRegistry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}
