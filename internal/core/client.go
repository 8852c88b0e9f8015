package core

import (
	"sync"
	"sync/atomic"
	"time"
)

// Client is the server-side identity of one connected party: a sender or
// a receiver (spec §3). privateId never leaves the server; publicId is a
// keyed-hash derivative safe to reveal to peers (see internal/identity).
type Client struct {
	privateID string
	publicID  string

	mu            sync.Mutex
	joinedSession string // set once; empty means "no session yet"

	bytesReceived atomic.Uint64

	// direct is the ClientDirect topic this client publishes on: peers
	// subscribe to learn about this client's connect/disconnect/rename,
	// independent of any TransferSession (spec §4.3).
	direct *Bus[ClientEvent]
	// peerSubs holds the subscriptions this client has taken out on
	// other clients' direct buses, keeping them alive for as long as
	// this client exists.
	peerSubs []*Subscription[ClientEvent]

	disconnectTimer *time.Timer
	timeout         time.Duration
	onExpire        func(c *Client)
}

func newClient(privateID, publicID string, timeout time.Duration, onExpire func(*Client)) *Client {
	return &Client{
		privateID: privateID,
		publicID:  publicID,
		direct:    NewBus[ClientEvent](),
		timeout:   timeout,
		onExpire:  onExpire,
	}
}

func (c *Client) PrivateID() string { return c.privateID }
func (c *Client) PublicID() string  { return c.publicID }

// JoinSession records the session id this client has joined. Returns
// false if the client had already joined a (different or the same)
// session — join is settable once.
func (c *Client) JoinSession(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.joinedSession != "" {
		return false
	}
	c.joinedSession = sessionID
	return true
}

func (c *Client) JoinedSession() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joinedSession
}

// AddBytesReceived increments the per-receiver monotonic byte counter.
func (c *Client) AddBytesReceived(n uint64) {
	c.bytesReceived.Add(n)
}

func (c *Client) BytesReceived() uint64 {
	return c.bytesReceived.Load()
}

// DirectBus returns the bus other clients subscribe to for this
// client's Connected/Disconnected/NameChanged events.
func (c *Client) DirectBus() *Bus[ClientEvent] {
	return c.direct
}

// SubscribeTo takes out a subscription on peer's direct bus and keeps it
// alive for the lifetime of this client.
func (c *Client) SubscribeTo(peer *Client, cb func(ClientEvent)) {
	sub := peer.direct.Subscribe(cb)
	c.mu.Lock()
	c.peerSubs = append(c.peerSubs, sub)
	c.mu.Unlock()
}

// MarkConnected stops the inactivity timer: a live transport is attached.
func (c *Client) MarkConnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disconnectTimer != nil {
		c.disconnectTimer.Stop()
		c.disconnectTimer = nil
	}
	c.direct.Publish(ClientEvent{Kind: EventClientConnected, PublicID: c.publicID})
}

// MarkDisconnected starts (or restarts) the inactivity timer. If it
// fires before MarkConnected is called again, onExpire runs.
func (c *Client) MarkDisconnected() {
	c.mu.Lock()
	if c.disconnectTimer != nil {
		c.disconnectTimer.Stop()
	}
	c.disconnectTimer = time.AfterFunc(c.timeout, func() {
		if c.onExpire != nil {
			c.onExpire(c)
		}
	})
	c.mu.Unlock()

	c.direct.Publish(ClientEvent{Kind: EventClientDisconnected, PublicID: c.publicID})
}

// stopTimer cancels any pending inactivity timer; called by the
// registry during removal so a timer firing during teardown is a no-op.
func (c *Client) stopTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disconnectTimer != nil {
		c.disconnectTimer.Stop()
		c.disconnectTimer = nil
	}
}
