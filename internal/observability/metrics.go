// Package observability provides metrics and log handler setup for wxlog.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wxlog"

// Rejection reasons used as the "reason" label.
const (
	ReasonAuth          = "auth"
	ReasonDialect       = "dialect"
	ReasonUnimplemented = "unimplemented"
	ReasonDecode        = "decode"
)

// Metrics holds the Prometheus collectors for the ingest path.
type Metrics struct {
	DatagramsReceived prometheus.Counter
	ReadingsStored    prometheus.Counter
	StorageErrors     prometheus.Counter
	PublishErrors     prometheus.Counter
	ListenerRunning   prometheus.Gauge

	Rejections        *prometheus.CounterVec // labels: reason={auth,dialect,unimplemented,decode}
	MalformedFields   *prometheus.CounterVec // labels: key
	ReadingsByStation *prometheus.CounterVec // labels: station

	AppendDuration prometheus.Histogram
	DatagramBytes  prometheus.Histogram
}

func newMetrics() *Metrics {
	return &Metrics{
		DatagramsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_received_total",
			Help:      "Total UDP datagrams read from the socket.",
		}),
		ReadingsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_stored_total",
			Help:      "Total readings appended to a partition.",
		}),
		StorageErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_errors_total",
			Help:      "Total failed partition appends.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Total failed MQTT republishes.",
		}),
		ListenerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "listener_running",
			Help:      "1 while the UDP listener is bound, 0 otherwise.",
		}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Dropped datagrams by reason.",
		}, []string{"reason"}),
		MalformedFields: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_fields_total",
			Help:      "Recognized fields whose value could not be parsed, by key.",
		}, []string{"key"}),
		ReadingsByStation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "station_readings_total",
			Help:      "Stored readings by station ID.",
		}, []string{"station"}),
		AppendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "append_duration_seconds",
			Help:      "Duration of one partition append, including open and close.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5},
		}),
		DatagramBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "datagram_bytes",
			Help:      "Size of received datagrams in bytes.",
			Buckets:   []float64{64, 128, 256, 512, 1024, 2048, 4096},
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.DatagramsReceived,
		m.ReadingsStored,
		m.StorageErrors,
		m.PublishErrors,
		m.ListenerRunning,
		m.Rejections,
		m.MalformedFields,
		m.ReadingsByStation,
		m.AppendDuration,
		m.DatagramBytes,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered with a fresh registry to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() (*Metrics, *prometheus.Registry) {
	m := newMetrics()
	reg := prometheus.NewRegistry()
	reg.MustRegister(m.collectors()...)
	return m, reg
}
