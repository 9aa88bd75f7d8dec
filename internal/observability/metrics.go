package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the firmware core.
type Metrics struct {
	// Chunk Manager
	ChunksSentTotal       prometheus.Counter
	FramesSentTotal       prometheus.Counter
	FramesCompletedTotal  prometheus.Counter
	ChunkDuplicatesTotal  prometheus.Counter
	ReassemblyTimeouts    prometheus.Counter
	ReassemblyContextsActive prometheus.Gauge

	// Security1
	HandshakesTotal       *prometheus.CounterVec
	HandshakeDuration     prometheus.Histogram
	BytesEncryptedTotal   prometheus.Counter
	BytesDecryptedTotal   prometheus.Counter
	SessionStateGauge     *prometheus.GaugeVec

	// Transports
	TransportStateGauge   *prometheus.GaugeVec
	BackoffDelayMsGauge   *prometheus.GaugeVec
	CircuitBreakerOpenGauge *prometheus.GaugeVec
	SendFailuresTotal     *prometheus.CounterVec
	ReconnectsTotal       *prometheus.CounterVec

	// Error Manager
	ErrorsTotal           *prometheus.CounterVec
	RecoveryAttemptsTotal *prometheus.CounterVec
	RecoverySuccessTotal  *prometheus.CounterVec

	// Router
	RouterDispatchDuration *prometheus.HistogramVec
	RouterUnknownOpsTotal  prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		ChunksSentTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "corectl_chunks_sent_total",
			Help: "Total chunks emitted on the send path",
		}),
		FramesSentTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "corectl_frames_sent_total",
			Help: "Total application frames handed to the chunk manager",
		}),
		FramesCompletedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "corectl_frames_completed_total",
			Help: "Total frames fully reassembled",
		}),
		ChunkDuplicatesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "corectl_chunk_duplicates_total",
			Help: "Chunks dropped as duplicates during reassembly",
		}),
		ReassemblyTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "corectl_reassembly_timeouts_total",
			Help: "Reassembly contexts reclaimed by the expiration sweep",
		}),
		ReassemblyContextsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "corectl_reassembly_contexts_active",
			Help: "Currently active reassembly contexts",
		}),

		HandshakesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "corectl_security1_handshakes_total",
			Help: "Security1 handshake attempts by outcome",
		}, []string{"result"}),
		HandshakeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "corectl_security1_handshake_duration_seconds",
			Help:    "Security1 handshake completion latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}),
		BytesEncryptedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "corectl_security1_bytes_encrypted_total",
			Help: "Plaintext bytes encrypted",
		}),
		BytesDecryptedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "corectl_security1_bytes_decrypted_total",
			Help: "Ciphertext bytes decrypted",
		}),
		SessionStateGauge: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "corectl_security1_session_state",
			Help: "Current Security1 session state (enum value)",
		}, []string{"transport"}),

		TransportStateGauge: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "corectl_transport_state",
			Help: "Current transport state (enum value)",
		}, []string{"transport"}),
		BackoffDelayMsGauge: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "corectl_transport_backoff_delay_ms",
			Help: "Current scheduled backoff delay in milliseconds",
		}, []string{"transport"}),
		CircuitBreakerOpenGauge: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "corectl_transport_circuit_breaker_open",
			Help: "1 if the transport's send circuit breaker is open",
		}, []string{"transport"}),
		SendFailuresTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "corectl_transport_send_failures_total",
			Help: "Send failures observed on the back-pressure path",
		}, []string{"transport"}),
		ReconnectsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "corectl_transport_reconnects_total",
			Help: "Reconnect attempts",
		}, []string{"transport", "result"}),

		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "corectl_errors_total",
			Help: "Error reports ingested by the Error Manager",
		}, []string{"component", "category", "severity"}),
		RecoveryAttemptsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "corectl_recovery_attempts_total",
			Help: "Recovery attempts by component and strategy",
		}, []string{"component", "strategy"}),
		RecoverySuccessTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "corectl_recovery_success_total",
			Help: "Successful recoveries by component and strategy",
		}, []string{"component", "strategy"}),

		RouterDispatchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "corectl_router_dispatch_duration_seconds",
			Help:    "Command dispatch latency by op",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		RouterUnknownOpsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "corectl_router_unknown_ops_total",
			Help: "Commands dispatched with an unrecognized op",
		}),
	}
}

// Handler exposes the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
