package transport

import "github.com/adred-codev/filerelay/internal/core"

// inboundEnvelope is the JSON shape of every text control frame a
// client sends (spec §6's inbound events, minus addChunk which travels
// as a binary frame). Unused fields are left zero for a given Type.
type inboundEnvelope struct {
	Type string `json:"type"`

	// setFileInfo
	Name string `json:"name,omitempty"`
	Size uint64 `json:"size,omitempty"`

	// kickReceiver
	PublicID string `json:"publicId,omitempty"`

	// getChunk / ackChunk
	Index uint64 `json:"index,omitempty"`
}

const (
	inSetFileInfo  = "setFileInfo"
	inSetEof       = "setEof"
	inKickReceiver = "kickReceiver"
	inTerminate    = "terminate"
	inGetChunk     = "getChunk"
	inAckChunk     = "ackChunk"
)

// outboundEnvelope is the JSON shape of every server-to-client event,
// covering all three topics spec §4.3 lists (TransferSession,
// TransferSessionForSender, ClientDirect) plus a handful of
// locally-originated notices (joined, parseError, unknownMessage, and
// the *Failure replies).
type outboundEnvelope struct {
	Type string `json:"type"`

	PublicID  string   `json:"publicId,omitempty"`
	Name      string   `json:"name,omitempty"`
	Size      uint64   `json:"size,omitempty"`
	Index     uint64   `json:"index,omitempty"`
	ChunkSize int      `json:"chunkSize,omitempty"`
	Indices   []uint64 `json:"indices,omitempty"`
	Bytes     uint64   `json:"bytes,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	Allowed   bool     `json:"allowed,omitempty"`
	SessionID string   `json:"sessionId,omitempty"`
	Error     string   `json:"error,omitempty"`
	Available []uint64 `json:"availableChunks,omitempty"`
}

func fromSessionEvent(ev core.SessionEvent) outboundEnvelope {
	switch ev.Kind {
	case core.EventNewReceiver:
		return outboundEnvelope{Type: "newReceiver", PublicID: ev.Receiver.PublicID()}
	case core.EventReceiverRemoved:
		return outboundEnvelope{Type: "receiverRemoved", PublicID: ev.RemovedPublicID}
	case core.EventFileInfoUpdated:
		return outboundEnvelope{Type: "fileInfoUpdated", Name: ev.FileInfo.Name, Size: ev.FileInfo.Size}
	case core.EventChunkDownloadStarted:
		return outboundEnvelope{Type: "chunkDownloadStarted", PublicID: ev.DownloadPublicID, Index: uint64(ev.ChunkIndex)}
	case core.EventChunkDownloadFinished:
		return outboundEnvelope{Type: "chunkDownloadFinished", PublicID: ev.DownloadPublicID, Index: uint64(ev.ChunkIndex)}
	case core.EventNewChunkAvailable:
		return outboundEnvelope{Type: "newChunkAvailable", Index: uint64(ev.ChunkIndex), ChunkSize: ev.NewChunkSize}
	case core.EventChunksRemoved:
		return outboundEnvelope{Type: "chunksRemoved", Indices: toUint64Slice(ev.RemovedIndices)}
	case core.EventBytesInUpdated:
		return outboundEnvelope{Type: "bytesInUpdated", Bytes: ev.Bytes}
	case core.EventBytesOutUpdated:
		return outboundEnvelope{Type: "bytesOutUpdated", Bytes: ev.Bytes}
	case core.EventChunksAreUnfrozen:
		return outboundEnvelope{Type: "chunksAreUnfrozen"}
	case core.EventFileUploadFinished:
		return outboundEnvelope{Type: "fileUploadFinished"}
	case core.EventComplete:
		return outboundEnvelope{Type: "complete", Reason: string(ev.Reason)}
	default:
		return outboundEnvelope{Type: "unknown"}
	}
}

func fromSenderEvent(ev core.SenderEvent) outboundEnvelope {
	return outboundEnvelope{Type: "newChunkIsAllowed", Allowed: ev.Allowed}
}

func fromClientEvent(ev core.ClientEvent) outboundEnvelope {
	switch ev.Kind {
	case core.EventClientConnected:
		return outboundEnvelope{Type: "peerConnected", PublicID: ev.PublicID}
	case core.EventClientDisconnected:
		return outboundEnvelope{Type: "peerDisconnected", PublicID: ev.PublicID}
	case core.EventClientNameChanged:
		return outboundEnvelope{Type: "peerNameChanged", PublicID: ev.PublicID, Name: ev.Name}
	default:
		return outboundEnvelope{Type: "unknown"}
	}
}

func toUint64Slice(indices []core.ChunkIndex) []uint64 {
	out := make([]uint64, len(indices))
	for i, idx := range indices {
		out[i] = uint64(idx)
	}
	return out
}
