package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsSubmitted      = prometheus.NewCounter(prometheus.CounterOpts{Name: "conversion_jobs_submitted_total", Help: "Total conversion jobs submitted"})
	JobsCompleted      = prometheus.NewCounter(prometheus.CounterOpts{Name: "conversion_jobs_completed_total", Help: "Jobs that produced an artifact"})
	JobsFailed         = prometheus.NewCounter(prometheus.CounterOpts{Name: "conversion_jobs_failed_total", Help: "Jobs resolved to error"})
	JobsCancelled      = prometheus.NewCounter(prometheus.CounterOpts{Name: "conversion_jobs_cancelled_total", Help: "Jobs cancelled by request"})
	JobsActive         = prometheus.NewGauge(prometheus.GaugeOpts{Name: "conversion_jobs_active", Help: "Jobs with a live worker process"})
	MergesTotal        = prometheus.NewCounter(prometheus.CounterOpts{Name: "document_merges_total", Help: "Synchronous merge requests served"})
	ProtocolViolations = prometheus.NewCounter(prometheus.CounterOpts{Name: "conversion_protocol_violations_total", Help: "Worker status writes that broke the progress contract"})
	ConversionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "conversion_duration_seconds",
		Help:    "Wall time from spawn to worker exit",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobsSubmitted,
			JobsCompleted,
			JobsFailed,
			JobsCancelled,
			JobsActive,
			MergesTotal,
			ProtocolViolations,
			ConversionDuration,
		)
	})
	return promhttp.Handler()
}
