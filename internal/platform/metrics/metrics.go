package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the submission pipeline and
// the archive. All methods are nil-safe so components can run without them.
type Metrics struct {
	SubmissionOutcomes *prometheus.CounterVec
	SubmissionDuration *prometheus.HistogramVec
	SubmissionRetries  *prometheus.CounterVec
	FallbacksOffered   *prometheus.CounterVec

	HandshakeResults  *prometheus.CounterVec
	HandshakeDuration prometheus.Histogram

	UnfilledFields *prometheus.CounterVec

	SnapshotPhotos     *prometheus.CounterVec
	SnapshotsDeleted   prometheus.Counter
	SnapshotBytesFreed prometheus.Counter
	OrphansReclaimed   prometheus.Counter
}

// New registers all collectors with reg (prometheus.DefaultRegisterer when nil).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		SubmissionOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "entrypass_submission_outcomes_total",
			Help: "Submission attempts by method, result and failure category",
		}, []string{"method", "result", "category"}),
		SubmissionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "entrypass_submission_duration_seconds",
			Help:    "Duration of a single submission attempt by method",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"method"}),
		SubmissionRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "entrypass_submission_retries_total",
			Help: "Automatic retries by method",
		}, []string{"method"}),
		FallbacksOffered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "entrypass_submission_fallbacks_total",
			Help: "Fallback strategies offered or run, by target method and mode",
		}, []string{"method", "mode"}),
		HandshakeResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "entrypass_handshake_results_total",
			Help: "Token handshake terminal states",
		}, []string{"state"}),
		HandshakeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "entrypass_handshake_duration_seconds",
			Help:    "Time from browser load to a terminal handshake state",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60},
		}),
		UnfilledFields: f.NewCounterVec(prometheus.CounterOpts{
			Name: "entrypass_form_fill_unfilled_fields_total",
			Help: "Fields the automated form fill gave up on",
		}, []string{"field"}),
		SnapshotPhotos: f.NewCounterVec(prometheus.CounterOpts{
			Name: "entrypass_snapshot_photos_total",
			Help: "Snapshot photo manifest entries by status",
		}, []string{"status"}),
		SnapshotsDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "entrypass_snapshots_deleted_total",
			Help: "Snapshots removed by retention cleanup",
		}),
		SnapshotBytesFreed: f.NewCounter(prometheus.CounterOpts{
			Name: "entrypass_snapshot_bytes_freed_total",
			Help: "Bytes reclaimed by retention and orphan cleanup",
		}),
		OrphansReclaimed: f.NewCounter(prometheus.CounterOpts{
			Name: "entrypass_snapshot_orphans_reclaimed_total",
			Help: "Snapshot asset directories removed because no record referenced them",
		}),
	}
}

func (m *Metrics) ObserveSubmission(method, result, category string, d time.Duration) {
	if m != nil {
		m.SubmissionOutcomes.WithLabelValues(method, result, category).Inc()
		m.SubmissionDuration.WithLabelValues(method).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementRetry(method string) {
	if m != nil {
		m.SubmissionRetries.WithLabelValues(method).Inc()
	}
}

func (m *Metrics) IncrementFallback(method, mode string) {
	if m != nil {
		m.FallbacksOffered.WithLabelValues(method, mode).Inc()
	}
}

func (m *Metrics) ObserveHandshake(state string, d time.Duration) {
	if m != nil {
		m.HandshakeResults.WithLabelValues(state).Inc()
		m.HandshakeDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementUnfilled(field string) {
	if m != nil {
		m.UnfilledFields.WithLabelValues(field).Inc()
	}
}

func (m *Metrics) IncrementSnapshotPhoto(status string) {
	if m != nil {
		m.SnapshotPhotos.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) RecordCleanup(deleted int, freedBytes int64) {
	if m != nil {
		m.SnapshotsDeleted.Add(float64(deleted))
		m.SnapshotBytesFreed.Add(float64(freedBytes))
	}
}

func (m *Metrics) RecordOrphans(reclaimed int, freedBytes int64) {
	if m != nil {
		m.OrphansReclaimed.Add(float64(reclaimed))
		m.SnapshotBytesFreed.Add(float64(freedBytes))
	}
}
