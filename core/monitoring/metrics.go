package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for comparison lookups and generation
var (
	// artifactFetches counts comparison artifact fetches.
	// Labels: result (found, missing, error)
	artifactFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "validation_viewer",
		Subsystem: "comparison",
		Name:      "fetches_total",
		Help:      "Comparison artifact fetches by result",
	}, []string{"result"})

	// generationRequests counts generation requests sent to the backend.
	// Labels: result (accepted, error)
	generationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "validation_viewer",
		Subsystem: "generation",
		Name:      "requests_total",
		Help:      "Comparison generation requests by result",
	}, []string{"result"})

	// progressPolls counts progress polls.
	// Labels: result (no_status, in_progress, complete, transport_error)
	progressPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "validation_viewer",
		Subsystem: "generation",
		Name:      "polls_total",
		Help:      "Progress polls by result",
	}, []string{"result"})

	// generationDuration measures time from generation request to completion
	generationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "validation_viewer",
		Subsystem: "generation",
		Name:      "duration_seconds",
		Help:      "Time from generation request to completion",
		Buckets:   []float64{1, 2, 5, 10, 30, 60, 120, 300, 600, 1200},
	})

	// lookupsFinished counts finished lookups by terminal phase.
	// Labels: phase (found, error, canceled)
	lookupsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "validation_viewer",
		Subsystem: "comparison",
		Name:      "lookups_total",
		Help:      "Finished comparison lookups by terminal phase",
	}, []string{"phase"})

	// activeLookups tracks lookups currently in flight
	activeLookups = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "validation_viewer",
		Subsystem: "comparison",
		Name:      "active_lookups",
		Help:      "Comparison lookups currently in flight",
	})
)

// RecordFetch records an artifact fetch result: "found", "missing" or "error"
func RecordFetch(result string) {
	artifactFetches.WithLabelValues(result).Inc()
}

// RecordGenerationRequest records a generation request result: "accepted" or "error"
func RecordGenerationRequest(result string) {
	generationRequests.WithLabelValues(result).Inc()
}

// RecordPoll records a progress poll result
func RecordPoll(result string) {
	progressPolls.WithLabelValues(result).Inc()
}

// RecordGenerationDuration records how long a generation took
func RecordGenerationDuration(d time.Duration) {
	generationDuration.Observe(d.Seconds())
}

// LookupStarted marks a lookup as in flight
func LookupStarted() {
	activeLookups.Inc()
}

// LookupFinished records a lookup's terminal phase
func LookupFinished(phase string) {
	activeLookups.Dec()
	lookupsFinished.WithLabelValues(phase).Inc()
}
