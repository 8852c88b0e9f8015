package core

// TerminalReason is one of the four terminal states a session can reach
// (spec §3, §4.3). Published exactly once per session via Complete.
type TerminalReason string

const (
	ReasonOK          TerminalReason = "OK"
	ReasonTimeout     TerminalReason = "Timeout"
	ReasonSenderGone  TerminalReason = "SenderGone"
	ReasonNoReceivers TerminalReason = "NoReceivers"
)

// SessionEventKind tags the variant carried by a SessionEvent, matching
// the TransferSession topic enumerated in spec §4.3. Static dispatch via
// field presence would work equally well; a tagged union keeps one
// subscriber signature per topic instead of one per event kind (twelve
// here), which mirrors how the
// teacher's Hub passes a single []byte envelope to every subscriber.
type SessionEventKind int

const (
	EventNewReceiver SessionEventKind = iota
	EventReceiverRemoved
	EventFileInfoUpdated
	EventChunkDownloadStarted
	EventChunkDownloadFinished
	EventNewChunkAvailable
	EventChunksRemoved
	EventBytesInUpdated
	EventBytesOutUpdated
	EventChunksAreUnfrozen
	EventFileUploadFinished
	EventComplete
)

// SessionEvent is published on the per-session "TransferSession" topic,
// visible to every member (sender + receivers).
type SessionEvent struct {
	Kind SessionEventKind

	// NewReceiver
	Receiver *Client
	// ReceiverRemoved
	RemovedPublicID string
	// FileInfoUpdated
	FileInfo FileInfo
	// ChunkDownloadStarted / ChunkDownloadFinished
	DownloadPublicID string
	ChunkIndex       ChunkIndex
	// NewChunkAvailable
	NewChunkSize int
	// ChunksRemoved
	RemovedIndices []ChunkIndex
	// BytesInUpdated / BytesOutUpdated: Bytes is the session's running
	// total, Delta is the amount this event added to it.
	Bytes uint64
	Delta uint64
	// Complete
	Reason TerminalReason
}

// SenderEventKind tags the single-member "TransferSessionForSender" topic.
type SenderEventKind int

const (
	EventNewChunkIsAllowed SenderEventKind = iota
)

// SenderEvent is published only to the sender of a session.
type SenderEvent struct {
	Kind    SenderEventKind
	Allowed bool
}

// ClientEventKind tags the peer-to-peer "ClientDirect" topic (spec §4.3),
// which is owned by the client graph, not the session.
type ClientEventKind int

const (
	EventClientConnected ClientEventKind = iota
	EventClientDisconnected
	EventClientNameChanged
)

// ClientEvent is published directly between members, bypassing the
// session's own event bus.
type ClientEvent struct {
	Kind     ClientEventKind
	PublicID string
	Name     string
}
