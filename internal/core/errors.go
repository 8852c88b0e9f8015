package core

import "errors"

// Sentinel errors for the InputRejected kind (spec §7). Callers compare
// with errors.Is; the session surfaces these as benign failure events
// rather than closing the transport.
var (
	ErrChunkTooLarge        = errors.New("core: chunk payload exceeds maxChunkSize")
	ErrEmptyChunk           = errors.New("core: chunk payload is empty")
	ErrQueueFull            = errors.New("core: buffer queue is at capacity")
	ErrEOFAlreadySet        = errors.New("core: buffer already reached eof")
	ErrUnknownChunk         = errors.New("core: chunk index unknown or already evicted")
	ErrConsumerSetFrozen    = errors.New("core: a chunk has already been evicted, no new receivers admitted")
	ErrConsumerSetFull      = errors.New("core: maxConsumers reached")
	ErrDuplicateReceiver    = errors.New("core: client is already a receiver of this session")
	ErrInvalidFileInfo      = errors.New("core: file name or size invalid")
	ErrFreezeAlreadyDropped = errors.New("core: initial freeze already lifted")

	ErrSessionLimitReached = errors.New("core: session limit reached")
	ErrSessionExists       = errors.New("core: a session already exists for this sender")
	ErrSessionNotFound     = errors.New("core: session not found")

	ErrClientExists       = errors.New("core: client already registered")
	ErrClientLimitReached = errors.New("core: client limit reached")
	ErrClientNotFound     = errors.New("core: client not found")
)
