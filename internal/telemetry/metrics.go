package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds ripple's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	memories      prometheus.Gauge
	adds          *prometheus.CounterVec
	searches      *prometheus.CounterVec
	embedDuration prometheus.Histogram
	backups       *prometheus.CounterVec
	pruned        prometheus.Counter
	lastBackup    prometheus.Gauge
	uploads       *prometheus.CounterVec
	sessions      prometheus.Gauge
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		memories: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ripple_memories",
			Help: "Number of memories in the vector index.",
		}),
		adds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ripple_memory_adds_total",
			Help: "Memory add calls by outcome.",
		}, []string{"status"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ripple_memory_searches_total",
			Help: "Memory search calls by outcome.",
		}, []string{"status"}),
		embedDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ripple_embed_duration_seconds",
			Help:    "Latency of embedding provider calls.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		backups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ripple_backups_total",
			Help: "Backup attempts by outcome.",
		}, []string{"status"}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ripple_backup_files_pruned_total",
			Help: "Backup files deleted by the retention sweep.",
		}),
		lastBackup: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ripple_backup_last_success_timestamp_seconds",
			Help: "Unix time of the last successful backup.",
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ripple_backup_uploads_total",
			Help: "Offsite backup uploads by outcome.",
		}, []string{"status"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ripple_sessions",
			Help: "Number of sessions held by the registry.",
		}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.memories, m.adds, m.searches, m.embedDuration,
		m.backups, m.pruned, m.lastBackup, m.uploads, m.sessions,
	)
	return m
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SetMemories(n int) {
	if m == nil {
		return
	}
	m.memories.Set(float64(n))
}

func (m *Metrics) ObserveAdd(status string) {
	if m == nil {
		return
	}
	m.adds.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveSearch(status string) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveEmbed(d time.Duration) {
	if m == nil {
		return
	}
	m.embedDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveBackup(status string, at time.Time) {
	if m == nil {
		return
	}
	m.backups.WithLabelValues(status).Inc()
	if status == "ok" {
		m.lastBackup.Set(float64(at.Unix()))
	}
}

func (m *Metrics) AddPruned(n int) {
	if m == nil {
		return
	}
	m.pruned.Add(float64(n))
}

func (m *Metrics) ObserveUpload(status string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(status).Inc()
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}
