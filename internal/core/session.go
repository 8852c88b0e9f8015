package core

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TransferSession aggregates a Buffer with membership and timers, owns
// the state machine, and publishes events (spec §4.3). Its id equals
// the sender's publicId at creation time.
type TransferSession struct {
	id     string
	logger zerolog.Logger

	buffer   *Buffer
	expected *ExpectedConsumers

	// fileMu guards fileInfo; kept separate from membersMu per spec §5's
	// "membership and file info are separately guarded".
	fileMu   sync.RWMutex
	fileInfo FileInfo
	hasFile  bool

	membersMu sync.RWMutex
	sender    *Client
	members   map[string]*Client // publicId -> receiver Client
	order     []string           // insertion order, for deterministic cross-link/fanout

	stateMu  sync.Mutex
	state    TerminalReason
	terminal bool

	bus       *Bus[SessionEvent]
	senderBus *Bus[SenderEvent]

	freezeTimer    *cancellableTimer
	freezeDeadline time.Time
	lifetimeTimer  *cancellableTimer

	destroyedSub *Subscription[*Client]

	onTerminal func(id string) // registry callback, invoked at most once
}

// newTransferSession constructs a session owned by sender, wired to cfg's
// limits, and registers a lifetime timer. Called only by SessionRegistry,
// which supplies the process's own logger (built by internal/logging)
// rather than the zerolog package-global default.
func newTransferSession(sender *Client, cfg Config, clients *ClientRegistry, logger zerolog.Logger, onTerminal func(string)) *TransferSession {
	expected := NewExpectedConsumers(cfg.MaxConsumers)
	s := &TransferSession{
		id:         sender.PublicID(),
		logger:     logger.With().Str("component", "session").Str("session_id", sender.PublicID()).Logger(),
		buffer:     NewBuffer(cfg.MaxChunkSize, cfg.QueueMax, expected),
		expected:   expected,
		sender:     sender,
		members:    make(map[string]*Client),
		bus:        NewBus[SessionEvent](),
		senderBus:  NewBus[SenderEvent](),
		onTerminal: onTerminal,
	}

	s.freezeDeadline = timeNowAddSafe(cfg.MaxInitialFreeze)
	s.freezeTimer = newCancellableTimer(cfg.MaxInitialFreeze, s.dropInitialFreezeFromTimer)
	s.lifetimeTimer = newCancellableTimer(cfg.MaxLifetime, s.onLifetimeExpired)

	if clients != nil {
		s.destroyedSub = clients.Destroyed().Subscribe(s.onClientDestroyed)
	}

	return s
}

func timeNowAddSafe(d time.Duration) time.Time { return time.Now().Add(d) }

// ID returns the session id (the sender's publicId at creation time).
func (s *TransferSession) ID() string { return s.id }

// Bus returns the TransferSession topic, visible to every member.
func (s *TransferSession) Bus() *Bus[SessionEvent] { return s.bus }

// SenderBus returns the TransferSessionForSender topic.
func (s *TransferSession) SenderBus() *Bus[SenderEvent] { return s.senderBus }

// Sender returns the client that created this session.
func (s *TransferSession) Sender() *Client { return s.sender }

// Members returns a snapshot of the current receiver set, in join
// order. Used by the transport layer to wire up ClientDirect
// subscriptions for a newly-joined peer.
func (s *TransferSession) Members() []*Client {
	s.membersMu.RLock()
	defer s.membersMu.RUnlock()
	out := make([]*Client, len(s.order))
	for i, id := range s.order {
		out[i] = s.members[id]
	}
	return out
}

// State reports the current terminal reason, or "" while Active.
func (s *TransferSession) State() TerminalReason {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// FreezeRemaining reports the time left until the initial freeze
// auto-lifts, clamped to zero. A pure read; spec §12 supplement
// (remainingUntilAutoDropInitialFreeze in the original).
func (s *TransferSession) FreezeRemaining() time.Duration {
	if !s.buffer.InitialFreeze() {
		return 0
	}
	d := time.Until(s.freezeDeadline)
	if d < 0 {
		return 0
	}
	return d
}

// --- Membership ---------------------------------------------------------

// AddReceiver admits client as a receiver, subject to ExpectedConsumers'
// rules. On success, cross-links the new receiver with existing members
// for direct ClientDirect events and publishes NewReceiver to prior
// members (spec §4.3).
func (s *TransferSession) AddReceiver(client *Client) error {
	s.membersMu.Lock()
	if _, already := s.members[client.PublicID()]; already {
		s.membersMu.Unlock()
		return ErrDuplicateReceiver
	}
	if !s.buffer.AddExpectedConsumer(ReceiverId(client.PublicID())) {
		s.membersMu.Unlock()
		if s.buffer.SomeChunkRemoved() {
			return ErrConsumerSetFrozen
		}
		return ErrConsumerSetFull
	}

	prior := make([]*Client, len(s.order))
	for i, id := range s.order {
		prior[i] = s.members[id]
	}
	s.members[client.PublicID()] = client
	s.order = append(s.order, client.PublicID())
	s.membersMu.Unlock()

	// Cross-link direct peer events in both directions, outside the lock.
	for _, peer := range prior {
		client.SubscribeTo(peer, s.relayClientEvent)
		peer.SubscribeTo(client, s.relayClientEvent)
	}
	if s.sender != nil {
		client.SubscribeTo(s.sender, s.relayClientEvent)
		s.sender.SubscribeTo(client, s.relayClientEvent)
	}

	s.bus.Publish(SessionEvent{Kind: EventNewReceiver, Receiver: client})
	return nil
}

// relayClientEvent is a no-op hook point: ClientDirect events are
// delivered to subscribers directly by Client.DirectBus, the session
// only keeps the subscriptions alive (spec §4.3's "not owned by
// session"). Kept as a named method so SubscribeTo call sites read
// clearly above.
func (s *TransferSession) relayClientEvent(ClientEvent) {}

// RemoveReceiver drops publicId from membership, runs the eviction
// sweep, and publishes ReceiverRemoved (+ChunksRemoved if anything was
// evicted). If the member list is now empty and someChunkRemoved is
// true, the session terminates NoReceivers (spec §4.3).
func (s *TransferSession) RemoveReceiver(publicID string) {
	s.membersMu.Lock()
	if _, ok := s.members[publicID]; !ok {
		s.membersMu.Unlock()
		return
	}
	delete(s.members, publicID)
	for i, id := range s.order {
		if id == publicID {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	empty := len(s.members) == 0
	s.membersMu.Unlock()

	evicted := s.buffer.RemoveExpectedConsumer(ReceiverId(publicID))

	s.bus.Publish(SessionEvent{Kind: EventReceiverRemoved, RemovedPublicID: publicID})
	if len(evicted) > 0 {
		s.bus.Publish(SessionEvent{Kind: EventChunksRemoved, RemovedIndices: evicted})
	}

	if empty && s.buffer.SomeChunkRemoved() {
		s.terminate(ReasonNoReceivers)
	}
}

// KickReceiver is the sender-initiated equivalent of RemoveReceiver
// (spec §6 inbound kickReceiver).
func (s *TransferSession) KickReceiver(publicID string) {
	s.RemoveReceiver(publicID)
}

// --- File info -----------------------------------------------------------

// SetFileInfo validates and stores the file's name/size, sanitizing the
// name (strip path separators and control characters, spec §12
// supplement) and publishes FileInfoUpdated.
func (s *TransferSession) SetFileInfo(info FileInfo) error {
	name := sanitizeName(info.Name)
	if name == "" || len(name) > maxFileNameBytes || info.Size == 0 {
		return ErrInvalidFileInfo
	}
	info.Name = name

	s.fileMu.Lock()
	s.fileInfo = info
	s.hasFile = true
	s.fileMu.Unlock()

	s.bus.Publish(SessionEvent{Kind: EventFileInfoUpdated, FileInfo: info})
	return nil
}

func (s *TransferSession) FileInfo() (FileInfo, bool) {
	s.fileMu.RLock()
	defer s.fileMu.RUnlock()
	return s.fileInfo, s.hasFile
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r == '/' || r == '\\' || r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// --- Chunk flow ------------------------------------------------------------

// AddChunk is called by the sender to push a payload frame. On success
// publishes NewChunkAvailable and BytesInUpdated, plus NewChunkIsAllowed
// on the sender topic if back-pressure flipped.
func (s *TransferSession) AddChunk(payload []byte) (ChunkIndex, error) {
	wasAllowed := s.buffer.NewChunkIsAllowed()

	idx, err := s.buffer.AddChunk(payload)
	if err != nil {
		return 0, err
	}

	s.bus.Publish(SessionEvent{Kind: EventNewChunkAvailable, ChunkIndex: idx, NewChunkSize: len(payload)})
	s.bus.Publish(SessionEvent{Kind: EventBytesInUpdated, Bytes: s.buffer.BytesIn(), Delta: uint64(len(payload))})

	if nowAllowed := s.buffer.NewChunkIsAllowed(); nowAllowed != wasAllowed {
		s.senderBus.Publish(SenderEvent{Kind: EventNewChunkIsAllowed, Allowed: nowAllowed})
	}
	return idx, nil
}

// GetChunk returns the payload for index to client, publishing
// ChunkDownloadStarted on a hit. On a miss it also returns the indices
// currently available, for a GetChunkFailure{availableChunks} reply
// (spec §7).
func (s *TransferSession) GetChunk(index ChunkIndex, client *Client) (data []byte, available []ChunkIndex, ok bool) {
	data, ok = s.buffer.Get(index)
	if !ok {
		return nil, s.buffer.AvailableIndices(), false
	}
	s.bus.Publish(SessionEvent{Kind: EventChunkDownloadStarted, DownloadPublicID: client.PublicID(), ChunkIndex: index})
	return data, nil, true
}

// AckChunk records client's ack of index: bumps the client's personal
// bytesReceived, runs Buffer.Ack, and publishes the resulting events. If
// the buffer is now empty and eof is set, the session terminates OK.
func (s *TransferSession) AckChunk(index ChunkIndex, client *Client) error {
	wasAllowed := s.buffer.NewChunkIsAllowed()

	size, ok := s.buffer.PeekSize(index)
	if !ok {
		return ErrUnknownChunk
	}

	evicted, ok := s.buffer.Ack(index)
	if !ok {
		return ErrUnknownChunk
	}
	client.AddBytesReceived(uint64(size))

	if len(evicted) > 0 {
		s.bus.Publish(SessionEvent{Kind: EventChunksRemoved, RemovedIndices: evicted})
	}
	s.bus.Publish(SessionEvent{Kind: EventBytesOutUpdated, Bytes: s.buffer.BytesOut(), Delta: uint64(size)})
	s.bus.Publish(SessionEvent{Kind: EventChunkDownloadFinished, DownloadPublicID: client.PublicID(), ChunkIndex: index})

	if nowAllowed := s.buffer.NewChunkIsAllowed(); nowAllowed != wasAllowed {
		s.senderBus.Publish(SenderEvent{Kind: EventNewChunkIsAllowed, Allowed: nowAllowed})
	}

	if s.buffer.Eof() && s.buffer.IsEmpty() {
		s.terminate(ReasonOK)
	}
	return nil
}

// SetEof marks the sender's upload as finished. Terminal OK is only
// reached once the buffer subsequently drains (spec §4.3).
func (s *TransferSession) SetEof() error {
	if !s.buffer.SetEof() {
		s.logger.Warn().Msg("setEof called on a buffer that already reached eof")
		return nil
	}
	s.bus.Publish(SessionEvent{Kind: EventFileUploadFinished})
	if s.buffer.IsEmpty() {
		s.terminate(ReasonOK)
	}
	return nil
}

// ManualTerminate implements the sender's terminate() inbound event.
func (s *TransferSession) ManualTerminate() {
	s.terminate(ReasonSenderGone)
}

// --- Freeze ----------------------------------------------------------------

// dropInitialFreezeFromTimer is the freeze timer's callback.
func (s *TransferSession) dropInitialFreezeFromTimer() {
	s.DropInitialFreeze()
}

// DropInitialFreeze lifts the freeze (idempotent) and applies the §4.3
// rules for what happens next: empty membership -> NoReceivers, no file
// info yet -> SenderGone, otherwise publish ChunksAreUnfrozen.
func (s *TransferSession) DropInitialFreeze() {
	s.freezeTimer.Stop()

	evicted, ok := s.buffer.DropInitialFreeze()
	if !ok {
		return // already lifted
	}
	if len(evicted) > 0 {
		s.bus.Publish(SessionEvent{Kind: EventChunksRemoved, RemovedIndices: evicted})
	}

	s.membersMu.RLock()
	empty := len(s.members) == 0
	s.membersMu.RUnlock()

	if empty {
		s.terminate(ReasonNoReceivers)
		return
	}

	_, hasFile := s.FileInfo()
	if !hasFile {
		s.terminate(ReasonSenderGone)
		return
	}

	s.bus.Publish(SessionEvent{Kind: EventChunksAreUnfrozen})

	if s.buffer.Eof() && s.buffer.IsEmpty() {
		s.terminate(ReasonOK)
	}
}

// --- Sender/receiver destruction --------------------------------------------

// onClientDestroyed reacts to ClientRegistry.Destroyed for any client
// (sender or receiver) this session cares about (spec §4.3 "sender-gone
// semantics").
func (s *TransferSession) onClientDestroyed(c *Client) {
	if c == nil {
		return
	}
	if c.PublicID() == s.sender.PublicID() {
		if s.buffer.Eof() {
			return // file fully submitted; sender leaving is benign
		}
		s.terminate(ReasonSenderGone)
		return
	}

	s.membersMu.RLock()
	_, isMember := s.members[c.PublicID()]
	s.membersMu.RUnlock()
	if isMember {
		s.RemoveReceiver(c.PublicID())
	}
}

// --- Terminal state ---------------------------------------------------------

func (s *TransferSession) onLifetimeExpired() {
	s.terminate(ReasonTimeout)
}

// terminate transitions the session to reason, publishing Complete
// exactly once and asking the registry to drop its reference. Safe to
// call more than once or concurrently; only the first call has effect,
// per spec §7's "Terminal" kind and §5's "timer firing during teardown
// must be a no-op".
func (s *TransferSession) terminate(reason TerminalReason) {
	s.stateMu.Lock()
	if s.terminal {
		s.stateMu.Unlock()
		return
	}
	s.terminal = true
	s.state = reason
	s.stateMu.Unlock()

	s.freezeTimer.Stop()
	s.lifetimeTimer.Stop()
	if s.destroyedSub != nil {
		// destroyedSub is owned by the ClientRegistry's bus; nothing to
		// unsubscribe explicitly, the weak reference expires with s.
		s.destroyedSub = nil
	}

	s.logger.Info().Str("reason", string(reason)).Msg("session terminated")
	s.bus.Publish(SessionEvent{Kind: EventComplete, Reason: reason})

	if s.onTerminal != nil {
		s.onTerminal(s.id)
	}
}
