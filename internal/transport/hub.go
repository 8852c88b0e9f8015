package transport

import (
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/adred-codev/filerelay/internal/admission"
	"github.com/adred-codev/filerelay/internal/audit"
	"github.com/adred-codev/filerelay/internal/config"
	"github.com/adred-codev/filerelay/internal/core"
	"github.com/adred-codev/filerelay/internal/identity"
	"github.com/adred-codev/filerelay/internal/metrics"
)

// Hub owns the connection table and wires incoming WebSocket upgrades
// to internal/core's ClientRegistry and SessionRegistry, grounded on
// go-server/pkg/websocket/hub.go's register/unregister bookkeeping
// (trimmed: dispatch here is per-session event fan-out through
// internal/core's own Bus, not a hub-wide broadcast channel, since
// each session has its own membership rather than one global room).
type Hub struct {
	cfg      config.ServerConfig
	clients  *core.ClientRegistry
	sessions *core.SessionRegistry
	idm      *identity.Manager
	guard    *admission.Guard
	metrics  *metrics.Metrics
	audit    *audit.Publisher
	logger   zerolog.Logger

	mu    sync.RWMutex
	conns map[string]*Conn // publicId -> live connection

	sessObsMu sync.Mutex
	sessObs   map[string]*core.Subscription[core.SessionEvent]
}

// NewHub wires every ambient/domain dependency the transport layer
// needs; New in server.go is the only caller.
func NewHub(
	cfg config.ServerConfig,
	clients *core.ClientRegistry,
	sessions *core.SessionRegistry,
	idm *identity.Manager,
	guard *admission.Guard,
	m *metrics.Metrics,
	pub *audit.Publisher,
	logger zerolog.Logger,
) *Hub {
	return &Hub{
		cfg:      cfg,
		clients:  clients,
		sessions: sessions,
		idm:      idm,
		guard:    guard,
		metrics:  m,
		audit:    pub,
		logger:   logger.With().Str("component", "hub").Logger(),
		conns:    make(map[string]*Conn),
		sessObs:  make(map[string]*core.Subscription[core.SessionEvent]),
	}
}

func (h *Hub) connFor(publicID string) (*Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[publicID]
	return c, ok
}

func (h *Hub) registerConn(c *Conn) {
	h.mu.Lock()
	h.conns[c.client.PublicID()] = c
	h.mu.Unlock()
	h.metrics.ClientConnected()
}

// unregister drops c from the connection table and marks its client
// disconnected, starting the inactivity timer that will eventually
// evict it from ClientRegistry (spec §4.5).
func (h *Hub) unregister(c *Conn) {
	h.mu.Lock()
	if h.conns[c.client.PublicID()] == c {
		delete(h.conns, c.client.PublicID())
	}
	h.mu.Unlock()

	h.metrics.ClientRemoved()
	c.client.MarkDisconnected()
}

// ServeHTTP upgrades the request to a WebSocket and binds it to a
// sender or receiver role per the "role" query parameter, per spec §6.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if accept, reason := h.guard.ShouldAcceptConnection(); !accept {
		h.logger.Warn().Str("reason", reason).Msg("rejecting connection, resource exhausted")
		h.metrics.ConnectionError("resource_exhausted")
		http.Error(w, reason, http.StatusServiceUnavailable)
		return
	}

	token := r.URL.Query().Get("token")
	privateID, err := h.idm.VerifyBootstrapToken(token)
	if err != nil {
		h.metrics.ConnectionError("auth")
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}
	// Thread the verified privateId through the request context, the
	// way the teacher's auth middleware hands it to downstream handlers,
	// rather than passing the local variable around by hand.
	r = r.WithContext(identity.WithPrivateID(r.Context(), privateID))
	pid, _ := identity.PrivateIDFromContext(r.Context())

	client, ok := h.clients.Get(pid)
	if !ok {
		publicID := h.idm.DerivePublicID(pid)
		client, err = h.clients.Create(pid, publicID)
		if err != nil {
			h.metrics.ConnectionError("client_limit")
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}

	roleParam := r.URL.Query().Get("role")
	var session *core.TransferSession
	var r2 role

	switch roleParam {
	case "sender":
		if !h.guard.AllowSessionCreate() {
			h.metrics.ConnectionError("session_rate_limit")
			http.Error(w, "session creation rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		s, _, err := h.sessions.Create(client)
		if err != nil {
			h.metrics.ConnectionError("session_create")
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		session = s
		r2 = roleSender
		h.observeSession(session)
		h.metrics.SessionCreated()

	case "receiver":
		sessionID := r.URL.Query().Get("session")
		s, ok := h.sessions.Get(sessionID)
		if !ok {
			h.metrics.ConnectionError("session_not_found")
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		if err := s.AddReceiver(client); err != nil {
			h.metrics.ConnectionError("add_receiver")
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		session = s
		r2 = roleReceiver
		h.metrics.ReceiverJoined()

	default:
		h.metrics.ConnectionError("bad_role")
		http.Error(w, "role must be sender or receiver", http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		h.metrics.ConnectionError("upgrade_failed")
		return
	}
	h.metrics.ConnectionAccepted()

	h.guard.AddConnection()
	conn := newConn(h, ws, client, session, r2, h.cfg.MaxMessageSize, h.logger)
	h.registerConn(conn)
	defer h.guard.RemoveConnection()

	conn.run()
}

// observeSession subscribes a hub-level, non-connection-bound observer
// to a freshly created session so metrics and the audit publisher see
// its lifecycle even if no particular Conn happens to be alive to
// receive the event (e.g. every receiver already disconnected).
func (h *Hub) observeSession(s *core.TransferSession) {
	sub := s.Bus().Subscribe(func(ev core.SessionEvent) {
		switch ev.Kind {
		case core.EventNewChunkAvailable:
			h.metrics.ChunkAdded(ev.NewChunkSize)
		case core.EventChunksRemoved:
			h.metrics.ChunksEvicted(len(ev.RemovedIndices))
		case core.EventBytesOutUpdated:
			h.metrics.BytesOut(int(ev.Delta))
		case core.EventNewReceiver:
			h.audit.Publish(audit.Event{Kind: "newReceiver", SessionID: s.ID(), PublicID: ev.Receiver.PublicID()})
		case core.EventReceiverRemoved:
			h.metrics.ReceiverLeft()
			h.audit.Publish(audit.Event{Kind: "receiverRemoved", SessionID: s.ID(), PublicID: ev.RemovedPublicID})
		case core.EventComplete:
			h.metrics.SessionTerminated(string(ev.Reason))
			h.audit.Publish(audit.Event{Kind: "complete", SessionID: s.ID(), Reason: string(ev.Reason)})
			h.sessObsMu.Lock()
			delete(h.sessObs, s.ID())
			h.sessObsMu.Unlock()
		}
	})

	h.sessObsMu.Lock()
	h.sessObs[s.ID()] = sub
	h.sessObsMu.Unlock()
}
