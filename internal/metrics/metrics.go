// Package metrics exposes Prometheus counters for probes and installs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/greenwave/gwupdate/internal/types"
)

var (
	probesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gwupdate_probes_total",
		Help: "Directory probes by resulting status",
	}, []string{"status"}) // status=missing|new_dir|empty_dir|corrupt_dir|found|error

	installsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gwupdate_installs_total",
		Help: "Installs by terminal outcome",
	}, []string{"outcome"}) // outcome=success|bad_hash|failed

	installDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gwupdate_install_duration_seconds",
		Help:    "Wall time of installs from request to terminal outcome",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"outcome"})

	downloadedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gwupdate_downloaded_bytes_total",
		Help: "Bytes streamed from the release origin to disk",
	})

	quarantinedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gwupdate_quarantined_total",
		Help: "Downloads moved to quarantine after failing verification",
	})

	retireErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gwupdate_retire_errors_total",
		Help: "Superseded releases that could not be removed",
	})

	installJobsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gwupdate_install_jobs_active",
		Help: "Asynchronous install jobs not yet finished",
	})
)

// Every status and outcome is exported from the start, at zero.
func init() {
	for _, s := range types.AllProbeStatuses() {
		probesTotal.WithLabelValues(s.String())
	}
	for _, o := range types.AllOutcomes() {
		installsTotal.WithLabelValues(o.String())
	}
}

func IncProbe(status string) { probesTotal.WithLabelValues(status).Inc() }

// RecordInstall records one finished install.
func RecordInstall(outcome string, bytes int64, elapsed time.Duration) {
	installsTotal.WithLabelValues(outcome).Inc()
	installDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	if bytes > 0 {
		downloadedBytes.Add(float64(bytes))
	}
}

func IncQuarantined() { quarantinedTotal.Inc() }
func IncRetireError() { retireErrorsTotal.Inc() }
func IncActiveJobs()  { installJobsActive.Inc() }
func DecActiveJobs()  { installJobsActive.Dec() }
