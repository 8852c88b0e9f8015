package transport

import "sync"

// envelopeBuffer is a reusable scratch buffer for assembling outbound
// binary chunk frames (index header + payload, see Conn.sendChunk),
// grounded on go-server/pkg/websocket's MessagePool size-class pooling:
// a []byte target that can grow, returned to its size class on Put.
// JSON envelopes are marshaled with json.Marshal and do not use it.
type envelopeBuffer struct {
	data []byte
}

type envelopePool struct {
	small  sync.Pool // 256 bytes
	medium sync.Pool // 1KB
	large  sync.Pool // 4KB
}

var globalEnvelopePool = newEnvelopePool()

func newEnvelopePool() *envelopePool {
	return &envelopePool{
		small:  sync.Pool{New: func() interface{} { return &envelopeBuffer{data: make([]byte, 0, 256)} }},
		medium: sync.Pool{New: func() interface{} { return &envelopeBuffer{data: make([]byte, 0, 1024)} }},
		large:  sync.Pool{New: func() interface{} { return &envelopeBuffer{data: make([]byte, 0, 4096)} }},
	}
}

func (p *envelopePool) get(sizeHint int) *envelopeBuffer {
	var buf *envelopeBuffer
	switch {
	case sizeHint <= 256:
		buf = p.small.Get().(*envelopeBuffer)
	case sizeHint <= 1024:
		buf = p.medium.Get().(*envelopeBuffer)
	default:
		buf = p.large.Get().(*envelopeBuffer)
	}
	buf.data = buf.data[:0]
	return buf
}

func (p *envelopePool) put(buf *envelopeBuffer) {
	if buf == nil {
		return
	}
	switch cap(buf.data) {
	case 256:
		p.small.Put(buf)
	case 1024:
		p.medium.Put(buf)
	case 4096:
		p.large.Put(buf)
	default:
		// grew past a size class while being filled; let it be collected
	}
}
