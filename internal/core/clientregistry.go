package core

import (
	"sync"
	"time"
)

// ClientRegistry is the process-wide map of privateId -> Client (spec
// §4.5). Each client carries its own inactivity timer; when it fires the
// registry evicts the client and publishes on Destroyed so any session
// watching that publicId can react (spec §4.3 "sender-gone semantics").
type ClientRegistry struct {
	mu         sync.RWMutex
	byPrivate  map[string]*Client
	maxClients int
	timeout    time.Duration

	destroyed *Bus[*Client]
}

// NewClientRegistry constructs a registry bounded by maxClients, with
// clientTimeout applied to every client's inactivity timer.
func NewClientRegistry(maxClients int, clientTimeout time.Duration) *ClientRegistry {
	return &ClientRegistry{
		byPrivate:  make(map[string]*Client),
		maxClients: maxClients,
		timeout:    clientTimeout,
		destroyed:  NewBus[*Client](),
	}
}

// Destroyed is the bus a session subscribes to in order to learn when a
// sender or receiver it cares about has been evicted for inactivity.
func (r *ClientRegistry) Destroyed() *Bus[*Client] { return r.destroyed }

// Create registers a new client under privateID with the given publicID
// (already derived by the caller via internal/identity). Fails if
// privateID is already present or the registry is at maxClients.
func (r *ClientRegistry) Create(privateID, publicID string) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byPrivate[privateID]; ok {
		return nil, ErrClientExists
	}
	if len(r.byPrivate) >= r.maxClients {
		return nil, ErrClientLimitReached
	}

	c := newClient(privateID, publicID, r.timeout, r.onExpire)
	r.byPrivate[privateID] = c
	return c, nil
}

func (r *ClientRegistry) onExpire(c *Client) {
	r.Remove(c.PrivateID())
}

// Get looks up a client by its private id.
func (r *ClientRegistry) Get(privateID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byPrivate[privateID]
	return c, ok
}

// Count returns the number of registered clients.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPrivate)
}

// Remove drops privateID from the map under the lock, then publishes
// Destroyed and stops the client's timer outside the lock — so a
// destructor callback that re-enters Remove for the same id is a safe
// no-op (spec §4.5, §9 "Deadlock avoidance on self-removal").
func (r *ClientRegistry) Remove(privateID string) {
	r.mu.Lock()
	c, ok := r.byPrivate[privateID]
	if ok {
		delete(r.byPrivate, privateID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	c.stopTimer()
	r.destroyed.Publish(c)
}
