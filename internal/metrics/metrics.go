// Package metrics exposes Prometheus gauges/counters for the transfer
// engine, grounded on go-server/internal/metrics and
// go-server-3/internal/metrics's promauto-registered collector style,
// restyled around file-relay sessions instead of WebSocket connections.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the transport layer updates.
type Metrics struct {
	sessionsActive   prometheus.Gauge
	sessionsTotal    prometheus.Counter
	sessionsByReason *prometheus.CounterVec

	receiversActive prometheus.Gauge
	clientsActive   prometheus.Gauge

	chunksBuffered prometheus.Gauge
	chunksAdded    prometheus.Counter
	chunksEvicted  prometheus.Counter
	chunkRejects   *prometheus.CounterVec

	bytesIn  prometheus.Counter
	bytesOut prometheus.Counter

	connectionsTotal prometheus.Counter
	connectionErrors *prometheus.CounterVec
	messageLatency   prometheus.Histogram
}

// New constructs and registers every collector against the default
// registry, the way promauto.New* does throughout the pack.
func New() *Metrics {
	return &Metrics{
		sessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "filerelay_sessions_active",
			Help: "Number of transfer sessions currently active.",
		}),
		sessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "filerelay_sessions_total",
			Help: "Total number of transfer sessions created.",
		}),
		sessionsByReason: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "filerelay_sessions_terminated_total",
			Help: "Total sessions terminated, labeled by terminal reason.",
		}, []string{"reason"}),

		receiversActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "filerelay_receivers_active",
			Help: "Number of receivers currently attached across all sessions.",
		}),
		clientsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "filerelay_clients_active",
			Help: "Number of clients currently registered.",
		}),

		chunksBuffered: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "filerelay_chunks_buffered",
			Help: "Number of chunks currently held in memory across all sessions.",
		}),
		chunksAdded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "filerelay_chunks_added_total",
			Help: "Total chunks accepted into a session buffer.",
		}),
		chunksEvicted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "filerelay_chunks_evicted_total",
			Help: "Total chunks evicted after every expected consumer acked.",
		}),
		chunkRejects: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "filerelay_chunk_rejects_total",
			Help: "Total chunks rejected at admission, labeled by reason.",
		}, []string{"reason"}),

		bytesIn: promauto.NewCounter(prometheus.CounterOpts{
			Name: "filerelay_bytes_in_total",
			Help: "Total payload bytes accepted from senders.",
		}),
		bytesOut: promauto.NewCounter(prometheus.CounterOpts{
			Name: "filerelay_bytes_out_total",
			Help: "Total payload bytes served to receivers.",
		}),

		connectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "filerelay_ws_connections_total",
			Help: "Total WebSocket connections accepted.",
		}),
		connectionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "filerelay_ws_errors_total",
			Help: "Total WebSocket-layer errors, labeled by kind.",
		}, []string{"kind"}),
		messageLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "filerelay_message_latency_seconds",
			Help:    "Latency of inbound message handling.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) SessionCreated()                { m.sessionsActive.Inc(); m.sessionsTotal.Inc() }
func (m *Metrics) SessionTerminated(reason string) { m.sessionsActive.Dec(); m.sessionsByReason.WithLabelValues(reason).Inc() }

func (m *Metrics) ReceiverJoined()  { m.receiversActive.Inc() }
func (m *Metrics) ReceiverLeft()    { m.receiversActive.Dec() }
func (m *Metrics) ClientConnected() { m.clientsActive.Inc() }
func (m *Metrics) ClientRemoved()   { m.clientsActive.Dec() }

func (m *Metrics) ChunkAdded(size int) {
	m.chunksBuffered.Inc()
	m.chunksAdded.Inc()
	m.bytesIn.Add(float64(size))
}

func (m *Metrics) ChunksEvicted(n int) {
	m.chunksBuffered.Sub(float64(n))
	m.chunksEvicted.Add(float64(n))
}

func (m *Metrics) ChunkRejected(reason string) { m.chunkRejects.WithLabelValues(reason).Inc() }
func (m *Metrics) BytesOut(n int)               { m.bytesOut.Add(float64(n)) }

func (m *Metrics) ConnectionAccepted()           { m.connectionsTotal.Inc() }
func (m *Metrics) ConnectionError(kind string)   { m.connectionErrors.WithLabelValues(kind).Inc() }
func (m *Metrics) RecordLatency(d time.Duration) { m.messageLatency.Observe(d.Seconds()) }
