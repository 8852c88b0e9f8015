// Package transport implements the WebSocket-framed wire protocol that
// sits on top of internal/core's abstract transport contract (spec §6),
// grounded on go-server/pkg/websocket/client.go's per-connection
// read/write pump, restyled around the file-relay control+binary
// protocol instead of price/trade JSON messages.
package transport

import (
	"encoding/binary"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/adred-codev/filerelay/internal/core"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16 << 10,
	WriteBufferSize: 16 << 10,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Conn is the middleman between one gorilla/websocket connection and
// the core engine: a sender's Conn owns the TransferSession it just
// created; a receiver's Conn is bound to an existing session at
// handshake time (spec §6 "inbound events to the session").
type Conn struct {
	ws      *websocket.Conn
	hub     *Hub
	client  *core.Client
	session *core.TransferSession
	role    role

	maxMessageSize int64

	send   chan []byte
	logger zerolog.Logger

	sessionSub *core.Subscription[core.SessionEvent]
	senderSub  *core.Subscription[core.SenderEvent]
	directSubs []*core.Subscription[core.ClientEvent]
}

type role int

const (
	roleSender role = iota
	roleReceiver
)

func newConn(hub *Hub, ws *websocket.Conn, client *core.Client, session *core.TransferSession, r role, maxMessageSize int64, logger zerolog.Logger) *Conn {
	return &Conn{
		ws:             ws,
		hub:            hub,
		client:         client,
		session:        session,
		role:           r,
		maxMessageSize: maxMessageSize,
		send:           make(chan []byte, sendBufferSize),
		logger:         logger.With().Str("component", "conn").Str("public_id", client.PublicID()).Logger(),
	}
}

// run wires the session/sender/direct subscriptions, starts the write
// pump, and blocks on the read pump until the connection closes.
func (c *Conn) run() {
	c.sessionSub = c.session.Bus().Subscribe(c.onSessionEvent)
	if c.role == roleSender {
		c.senderSub = c.session.SenderBus().Subscribe(c.onSenderEvent)
	}
	c.linkDirect()

	c.client.MarkConnected()
	c.sendEnvelope(outboundEnvelope{Type: "joined", SessionID: c.session.ID(), PublicID: c.client.PublicID()})

	go c.writePump()
	c.readPump()
}

// linkDirect subscribes this connection to every current session
// member's (and the sender's) ClientDirect bus, and vice versa, so
// peer connect/disconnect/rename notices flow both ways (spec §4.3's
// ClientDirect topic; the session's own cross-link only keeps weak
// references alive, see TransferSession.relayClientEvent).
func (c *Conn) linkDirect() {
	peers := c.session.Members()
	if sender := c.session.Sender(); sender != nil && sender.PublicID() != c.client.PublicID() {
		peers = append(peers, sender)
	}
	for _, peer := range peers {
		if peer.PublicID() == c.client.PublicID() {
			continue
		}
		sub := peer.DirectBus().Subscribe(func(ev core.ClientEvent) { c.sendEnvelope(fromClientEvent(ev)) })
		c.directSubs = append(c.directSubs, sub)

		if peerConn, ok := c.hub.connFor(peer.PublicID()); ok {
			sub2 := c.client.DirectBus().Subscribe(func(ev core.ClientEvent) { peerConn.sendEnvelope(fromClientEvent(ev)) })
			peerConn.directSubs = append(peerConn.directSubs, sub2)
		}
	}
}

func (c *Conn) onSessionEvent(ev core.SessionEvent) {
	c.sendEnvelope(fromSessionEvent(ev))
	if ev.Kind == core.EventComplete {
		c.terminate(string(ev.Reason))
	}
}

func (c *Conn) onSenderEvent(ev core.SenderEvent) {
	c.sendEnvelope(fromSenderEvent(ev))
}

func (c *Conn) sendEnvelope(env outboundEnvelope) {
	data, err := json.Marshal(env)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to marshal outbound envelope")
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn().Str("type", env.Type).Msg("send buffer full, dropping event")
	}
}

func (c *Conn) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(c.maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug().Err(err).Msg("websocket read error")
			}
			return
		}

		var violation string
		switch msgType {
		case websocket.BinaryMessage:
			violation = c.handleBinary(data)
		case websocket.TextMessage:
			violation = c.handleText(data)
		}
		if violation != "" {
			c.closeViolation(violation)
			return
		}
	}
}

// handleBinary implements the sender-only addChunk(bytes) inbound
// event (spec §6). A receiver sending binary is a protocol violation.
func (c *Conn) handleBinary(data []byte) (violation string) {
	if c.role != roleSender {
		return "receivers may not send binary frames"
	}
	if _, err := c.session.AddChunk(data); err != nil {
		c.hub.metrics.ChunkRejected(err.Error())
		c.sendEnvelope(outboundEnvelope{Type: "addingChunkFailure", Error: err.Error()})
	}
	return ""
}

func (c *Conn) handleText(data []byte) (violation string) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.sendEnvelope(outboundEnvelope{Type: "parseError", Error: err.Error()})
		return ""
	}

	switch env.Type {
	case inSetFileInfo:
		if c.role != roleSender {
			return "only the sender may set file info"
		}
		if err := c.session.SetFileInfo(core.FileInfo{Name: env.Name, Size: env.Size}); err != nil {
			c.sendEnvelope(outboundEnvelope{Type: "setFileInfoFailure", Error: err.Error()})
		}

	case inSetEof:
		if c.role != roleSender {
			return "only the sender may set eof"
		}
		_ = c.session.SetEof()

	case inKickReceiver:
		if c.role != roleSender {
			return "only the sender may kick a receiver"
		}
		c.session.KickReceiver(env.PublicID)

	case inTerminate:
		if c.role != roleSender {
			return "only the sender may terminate the session"
		}
		c.session.ManualTerminate()

	case inGetChunk:
		payload, available, ok := c.session.GetChunk(core.ChunkIndex(env.Index), c.client)
		if !ok {
			c.sendEnvelope(outboundEnvelope{Type: "getChunkFailure", Index: env.Index, Available: toUint64Slice(available)})
			return ""
		}
		c.sendChunk(core.ChunkIndex(env.Index), payload)

	case inAckChunk:
		if err := c.session.AckChunk(core.ChunkIndex(env.Index), c.client); err != nil {
			c.sendEnvelope(outboundEnvelope{Type: "ackChunkFailure", Index: env.Index, Error: err.Error()})
		}

	default:
		c.sendEnvelope(outboundEnvelope{Type: "unknownMessage", Error: env.Type})
	}
	return ""
}

// sendChunk frames a chunk as an 8-byte big-endian index header
// followed by the raw payload, so the receiver can pair it with the
// preceding getChunk request without a JSON base64 round-trip.
func (c *Conn) sendChunk(index core.ChunkIndex, payload []byte) {
	buf := globalEnvelopePool.get(8 + len(payload))
	buf.data = append(buf.data, make([]byte, 8)...)
	binary.BigEndian.PutUint64(buf.data[:8], uint64(index))
	buf.data = append(buf.data, payload...)

	frame := make([]byte, len(buf.data))
	copy(frame, buf.data)
	globalEnvelopePool.put(buf)

	select {
	case c.send <- frame:
	default:
		c.logger.Warn().Uint64("index", uint64(index)).Msg("send buffer full, dropping chunk")
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.ws.SetWriteDeadline(time.Now().Add(writeWait))
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(c.frameType(msg), msg); err != nil {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// frameType sends index-prefixed chunk frames as binary and every
// JSON envelope as text.
func (c *Conn) frameType(msg []byte) int {
	if len(msg) > 0 && msg[0] == '{' {
		return websocket.TextMessage
	}
	return websocket.BinaryMessage
}

func (c *Conn) closeViolation(reason string) {
	c.logger.Warn().Str("reason", reason).Msg("protocol violation, closing connection")
	closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	c.ws.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
}

// terminate closes the connection normally once its session has
// reached a terminal state (spec §4.3 Complete).
func (c *Conn) terminate(reason string) {
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	c.ws.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
}
