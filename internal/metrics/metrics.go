// Package metrics defines the Prometheus instrumentation shared across
// janitord's services. Unlike prow/kube's package-level metric vars,
// Metrics is an explicit handle constructed once in main and threaded
// into every component that needs it, so tests can register a private
// registry instead of fighting the default global one.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every counter/histogram janitord's services touch.
type Metrics struct {
	QueueLength        *prometheus.GaugeVec
	RunsStarted        *prometheus.CounterVec
	RunsFinished        *prometheus.CounterVec
	RunDuration         *prometheus.HistogramVec
	PublishAttempts     *prometheus.CounterVec
	ProposalsOpen       *prometheus.GaugeVec
	ArtifactStoreErrors *prometheus.CounterVec
	LogStoreErrors      *prometheus.CounterVec
	AptGenerations       prometheus.Counter
	DiffCacheHits        prometheus.Counter
	DiffCacheMisses      prometheus.Counter
	DebsignFailedTotal   *prometheus.CounterVec
	UploadFailedTotal    *prometheus.CounterVec
}

// New constructs a Metrics bundle and registers every metric with reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		QueueLength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "janitord_queue_length",
			Help: "Number of unclaimed items in the queue, by bucket.",
		}, []string{"bucket"}),
		RunsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "janitord_runs_started_total",
			Help: "Number of runs dispatched to a worker.",
		}, []string{"campaign"}),
		RunsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "janitord_runs_finished_total",
			Help: "Number of runs that reached a terminal result.",
		}, []string{"campaign", "code"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "janitord_run_duration_seconds",
			Help:    "Wall-clock duration of finished runs.",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12),
		}, []string{"campaign"}),
		PublishAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "janitord_publish_attempts_total",
			Help: "Number of publish attempts, by outcome code.",
		}, []string{"mode", "code"}),
		ProposalsOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "janitord_proposals_open",
			Help: "Number of open merge proposals, by rate-limit bucket.",
		}, []string{"bucket"}),
		ArtifactStoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "janitord_artifact_store_errors_total",
			Help: "Number of artifact store operation failures, by operation.",
		}, []string{"operation"}),
		LogStoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "janitord_log_store_errors_total",
			Help: "Number of log store operation failures, by operation.",
		}, []string{"operation"}),
		AptGenerations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "janitord_apt_generations_total",
			Help: "Number of times the APT archive was regenerated.",
		}),
		DiffCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "janitord_diff_cache_hits_total",
			Help: "Number of diff requests served from cache.",
		}),
		DiffCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "janitord_diff_cache_misses_total",
			Help: "Number of diff requests that required recomputation.",
		}),
		DebsignFailedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "janitord_debsign_failed_total",
			Help: "Number of .changes files that failed to sign during auto-upload.",
		}, []string{"distribution"}),
		UploadFailedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "janitord_upload_failed_total",
			Help: "Number of .changes files that failed to upload during auto-upload.",
		}, []string{"distribution"}),
	}
	reg.MustRegister(
		m.QueueLength, m.RunsStarted, m.RunsFinished, m.RunDuration, m.PublishAttempts,
		m.ProposalsOpen, m.ArtifactStoreErrors, m.LogStoreErrors, m.AptGenerations,
		m.DiffCacheHits, m.DiffCacheMisses, m.DebsignFailedTotal, m.UploadFailedTotal,
	)
	return m
}
