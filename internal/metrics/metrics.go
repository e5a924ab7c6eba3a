// Package metrics exports run counters in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "catmig"

// Recorder holds the counters of one command invocation in a private
// registry.
type Recorder struct {
	registry *prometheus.Registry

	rows     *prometheus.CounterVec
	branches *prometheus.CounterVec
	sources  *prometheus.CounterVec
	upserts  *prometheus.CounterVec
	images   *prometheus.CounterVec
	duration *prometheus.GaugeVec
	finished *prometheus.GaugeVec
}

// New creates a recorder with all collectors registered
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Dump rows by outcome (processed, malformed, short, missing, invalid).",
		}, []string{"outcome"}),
		branches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "category_resolutions_total",
			Help:      "Category resolutions by branch.",
		}, []string{"branch"}),
		sources: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_by_source_total",
			Help:      "Migrated products by source tag.",
		}, []string{"source"}),
		upserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upserts_total",
			Help:      "Store upserts by resource and result (created, updated, failed).",
		}, []string{"resource", "result"}),
		images: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_lookups_total",
			Help:      "Image lookups by result (multi, single, placeholder, repaired, unmatched).",
		}, []string{"result"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}, []string{"kind"}),
		finished: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_finished_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}, []string{"kind"}),
	}
	r.registry.MustRegister(r.rows, r.branches, r.sources, r.upserts, r.images, r.duration, r.finished)
	return r
}

// Rows adds n rows with the given outcome
func (r *Recorder) Rows(outcome string, n int) { add(r.rows.WithLabelValues(outcome), n) }

// Branch adds n resolutions for a branch
func (r *Recorder) Branch(branch string, n int) { add(r.branches.WithLabelValues(branch), n) }

// Source adds n products for a source tag
func (r *Recorder) Source(source string, n int) { add(r.sources.WithLabelValues(source), n) }

// Upserts adds n upserts of resource with result
func (r *Recorder) Upserts(resource, result string, n int) {
	add(r.upserts.WithLabelValues(resource, result), n)
}

// Images adds n image lookups with result
func (r *Recorder) Images(result string, n int) { add(r.images.WithLabelValues(result), n) }

// Finish records the run duration and completion time
func (r *Recorder) Finish(kind string, d time.Duration, at time.Time) {
	r.duration.WithLabelValues(kind).Set(d.Seconds())
	r.finished.WithLabelValues(kind).Set(float64(at.Unix()))
}

// Gatherer exposes the registry, mostly for tests
func (r *Recorder) Gatherer() prometheus.Gatherer { return r.registry }

// WriteTextfile atomically writes all metrics to path
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

func add(c prometheus.Counter, n int) {
	if n > 0 {
		c.Add(float64(n))
	}
}
