package telemetry

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/nfs3client/internal/rpc"
)

// SessionMetrics is the Prometheus instrumentation for one
// transport.Session's lifetime: bytes moved, calls issued, and RPC
// latency, grouped by the three programs this client speaks. A nil
// receiver is a no-op, so a caller that built a Client without metrics
// enabled can call these methods unconditionally.
type SessionMetrics struct {
	callsTotal    *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	bytesSent     prometheus.Counter
	bytesReceived prometheus.Counter
	errorsTotal   *prometheus.CounterVec
}

// defaultRegistry is this package's own Prometheus registry, separate
// from prometheus.DefaultRegisterer so embedding a copy of this client in
// a process that already runs its own collectors never collides on
// metric names.
var defaultRegistry = prometheus.NewRegistry()

// Registry returns the registry this package's metrics are registered
// against, for a host process that wants to expose it via its own
// /metrics handler.
func Registry() *prometheus.Registry {
	return defaultRegistry
}

// sharedMetrics holds the collectors registered exactly once against
// defaultRegistry. Every enabled SessionMetrics points at the same
// collectors, distinguished only by the label values each call passes —
// promauto panics on a second registration of the same metric name, and
// a process that Dials more than one Client with metrics enabled must
// not trip that panic just for calling NewSessionMetrics again.
var (
	sharedOnce          sync.Once
	sharedCallsTotal    *prometheus.CounterVec
	sharedCallDuration  *prometheus.HistogramVec
	sharedBytesSent     prometheus.Counter
	sharedBytesReceived prometheus.Counter
	sharedErrorsTotal   *prometheus.CounterVec
)

func registerShared() {
	sharedOnce.Do(func() {
		sharedCallsTotal = promauto.With(defaultRegistry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nfs3client_rpc_calls_total",
				Help: "Total RPC calls issued, by program and procedure.",
			},
			[]string{"program", "procedure"},
		)
		sharedCallDuration = promauto.With(defaultRegistry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "nfs3client_rpc_call_duration_seconds",
				Help: "RPC round-trip latency, by program and procedure.",
				Buckets: []float64{
					0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5,
				},
			},
			[]string{"program", "procedure"},
		)
		sharedBytesSent = promauto.With(defaultRegistry).NewCounter(
			prometheus.CounterOpts{
				Name: "nfs3client_bytes_sent_total",
				Help: "Total bytes written to all session sockets.",
			},
		)
		sharedBytesReceived = promauto.With(defaultRegistry).NewCounter(
			prometheus.CounterOpts{
				Name: "nfs3client_bytes_received_total",
				Help: "Total bytes read from all session sockets.",
			},
		)
		sharedErrorsTotal = promauto.With(defaultRegistry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nfs3client_rpc_errors_total",
				Help: "RPC calls that returned an error, by program and kind.",
			},
			[]string{"program", "kind"},
		)
	})
}

// NewSessionMetrics returns a SessionMetrics bound to this package's
// shared, once-registered collectors, or nil if enabled is false. Safe
// to call any number of times, including concurrently, across however
// many Clients a process Dials.
func NewSessionMetrics(enabled bool) *SessionMetrics {
	if !enabled {
		return nil
	}

	registerShared()
	return &SessionMetrics{
		callsTotal:    sharedCallsTotal,
		callDuration:  sharedCallDuration,
		bytesSent:     sharedBytesSent,
		bytesReceived: sharedBytesReceived,
		errorsTotal:   sharedErrorsTotal,
	}
}

// ObserveCall records one completed RPC call's outcome and latency.
func (m *SessionMetrics) ObserveCall(program, procedure string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(program, procedure).Inc()
	m.callDuration.WithLabelValues(program, procedure).Observe(d.Seconds())
	if err != nil {
		m.errorsTotal.WithLabelValues(program, errorKind(err)).Inc()
	}
}

// AddBytesSent adds n to the cumulative bytes-sent counter.
func (m *SessionMetrics) AddBytesSent(n uint64) {
	if m == nil {
		return
	}
	m.bytesSent.Add(float64(n))
}

// AddBytesReceived adds n to the cumulative bytes-received counter.
func (m *SessionMetrics) AddBytesReceived(n uint64) {
	if m == nil {
		return
	}
	m.bytesReceived.Add(float64(n))
}

// errorKind classifies err for the errors_total label using
// internal/rpc's Error.Kind when present, falling back to "unknown" for
// errors originating elsewhere (e.g. a plain wrapped net.Error).
func errorKind(err error) string {
	var rpcErr *rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Kind
	}
	return "unknown"
}
