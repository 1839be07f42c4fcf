// Package metrics provides Prometheus metrics for conda-publish.
//
// A publish is a short-lived batch job, so metrics live in their own
// registry and are written once at exit in the node-exporter textfile
// format rather than served over HTTP.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "conda_publish"

// Recorder holds the metrics of one invocation. All methods are safe to
// call on a nil *Recorder, which records nothing.
type Recorder struct {
	registry *prometheus.Registry

	Uploads        *prometheus.CounterVec
	UploadBytes    prometheus.Counter
	LockOutcomes   *prometheus.CounterVec
	PassDuration   *prometheus.HistogramVec
	CacheRowsReset prometheus.Gauge
	LastSuccess    prometheus.Gauge
	StagedPackages prometheus.Gauge
}

// New creates a Recorder with a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		Uploads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "uploads_total",
				Help:      "Files uploaded to the channel, by kind",
			},
			[]string{"kind"},
		),
		UploadBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "upload_bytes_total",
				Help:      "Bytes uploaded to the channel",
			},
		),
		LockOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "lock_outcomes_total",
				Help:      "Channel lock attempts, by final state",
			},
			[]string{"outcome"},
		),
		PassDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "reconcile_pass_duration_seconds",
				Help:      "Duration of each reconciliation pass",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~400s
			},
			[]string{"pass"},
		),
		CacheRowsReset: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "cache_rows_reset",
				Help:      "Cache rows moved back to stage fs before the final pass",
			},
		),
		LastSuccess: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time the last successful publish finished",
			},
		),
		StagedPackages: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "packages_staged",
				Help:      "Packages staged by the last rebuild",
			},
		),
	}
}

// Registry returns the registry the metrics are registered in.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) ObserveUpload(kind string, bytes int64) {
	if r == nil {
		return
	}
	r.Uploads.WithLabelValues(kind).Inc()
	r.UploadBytes.Add(float64(bytes))
}

func (r *Recorder) ObservePass(pass int, d time.Duration) {
	if r == nil {
		return
	}
	r.PassDuration.WithLabelValues(passLabel(pass)).Observe(d.Seconds())
}

func (r *Recorder) SetRowsReset(n int) {
	if r == nil {
		return
	}
	r.CacheRowsReset.Set(float64(n))
}

// LockOutcome counts one finished lock attempt.
func (r *Recorder) LockOutcome(outcome string) {
	if r == nil {
		return
	}
	r.LockOutcomes.WithLabelValues(outcome).Inc()
}

// PackagesStaged records how many packages a rebuild staged.
func (r *Recorder) PackagesStaged(n int) {
	if r == nil {
		return
	}
	r.StagedPackages.Set(float64(n))
}

// MarkSuccess stamps the time of a successful publish.
func (r *Recorder) MarkSuccess(t time.Time) {
	if r == nil {
		return
	}
	r.LastSuccess.Set(float64(t.Unix()))
}

// WriteTextfile writes every metric to path in the text exposition format.
// An empty path writes nothing.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}

func passLabel(pass int) string {
	switch pass {
	case 1:
		return "1"
	case 2:
		return "2"
	case 3:
		return "3"
	}
	return "other"
}
