package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the indexer's Prometheus collectors. It implements engine.Recorder.
type Metrics struct {
	Registry *prometheus.Registry

	EventsApplied  *prometheus.CounterVec
	EventsSkipped  *prometheus.CounterVec
	ApplyDuration  *prometheus.HistogramVec
	ReadFailures   *prometheus.CounterVec
	LastBlock      prometheus.Gauge
	ScannedBlock   prometheus.Gauge
	LogsFetched    prometheus.Counter
	TrackedPools   prometheus.Gauge
	PublishErrors  prometheus.Counter
	RangeDurations prometheus.Histogram
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		EventsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "musd_events_applied_total",
			Help: "Events reduced and committed",
		}, []string{"event"}),

		EventsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "musd_events_skipped_total",
			Help: "Events skipped (replay)",
		}, []string{"event", "reason"}),

		ApplyDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "musd_event_apply_duration_seconds",
			Help:    "Time to reduce and commit one event, including chain reads",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"event"}),

		ReadFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "musd_chain_read_failures_total",
			Help: "Failed authoritative reads; the stored value was kept",
		}, []string{"method"}),

		LastBlock: f.NewGauge(prometheus.GaugeOpts{
			Name: "musd_cursor_block",
			Help: "Block of the last committed event",
		}),

		ScannedBlock: f.NewGauge(prometheus.GaugeOpts{
			Name: "musd_scanned_block",
			Help: "Last block whose logs were fully processed",
		}),

		LogsFetched: f.NewCounter(prometheus.CounterOpts{
			Name: "musd_logs_fetched_total",
			Help: "Logs returned by eth_getLogs",
		}),

		TrackedPools: f.NewGauge(prometheus.GaugeOpts{
			Name: "musd_tracked_pools",
			Help: "Pools whose logs are being fetched",
		}),

		PublishErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "musd_publish_errors_total",
			Help: "Entity change publications that failed",
		}),

		RangeDurations: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "musd_range_duration_seconds",
			Help:    "Time to fetch and reduce one block range",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
}

func (m *Metrics) EventApplied(name string, took time.Duration) {
	m.EventsApplied.WithLabelValues(name).Inc()
	m.ApplyDuration.WithLabelValues(name).Observe(took.Seconds())
}

func (m *Metrics) EventSkipped(name, reason string) {
	m.EventsSkipped.WithLabelValues(name, reason).Inc()
}

func (m *Metrics) ReadFailed(method string) {
	m.ReadFailures.WithLabelValues(method).Inc()
}

func (m *Metrics) CursorAdvanced(block uint64) {
	m.LastBlock.Set(float64(block))
}

// RangeProcessed records a fully reduced block range.
func (m *Metrics) RangeProcessed(to uint64, logs int, took time.Duration) {
	m.ScannedBlock.Set(float64(to))
	m.LogsFetched.Add(float64(logs))
	m.RangeDurations.Observe(took.Seconds())
}

func (m *Metrics) PoolsTracked(n int) {
	m.TrackedPools.Set(float64(n))
}

func (m *Metrics) PublishFailed() {
	m.PublishErrors.Inc()
}
