// Package metrics records upload run metrics in Prometheus form.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rshade/bulkload/pkg/uploader"
)

// PrometheusRecorder implements uploader.Recorder on a private registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	batches       *prometheus.CounterVec
	items         *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	runDuration   prometheus.Gauge
	runBatches    *prometheus.GaugeVec
}

// NewPrometheusRecorder registers the bulkload collectors on a new registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	r := &PrometheusRecorder{
		registry: registry,
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bulkload_batches_total",
			Help: "Settled batches by outcome.",
		}, []string{"outcome"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bulkload_items_total",
			Help: "Items in settled batches by outcome.",
		}, []string{"outcome"}),
		batchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bulkload_batch_duration_seconds",
			Help:    "Upload call duration per batch.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bulkload_run_duration_seconds",
			Help: "Wall time of the last completed run.",
		}),
		runBatches: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bulkload_run_batches",
			Help: "Batch counters of the last completed run.",
		}, []string{"state"}),
	}

	registry.MustRegister(r.batches)
	registry.MustRegister(r.items)
	registry.MustRegister(r.batchDuration)
	registry.MustRegister(r.runDuration)
	registry.MustRegister(r.runBatches)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// BatchSettled records one settled batch.
func (r *PrometheusRecorder) BatchSettled(outcome uploader.Outcome, items int, d time.Duration) {
	label := string(outcome)
	r.batches.WithLabelValues(label).Inc()
	r.items.WithLabelValues(label).Add(float64(items))
	r.batchDuration.WithLabelValues(label).Observe(d.Seconds())
}

// RunFinished records the final counters of a run.
func (r *PrometheusRecorder) RunFinished(c uploader.Counters, d time.Duration) {
	r.runDuration.Set(d.Seconds())
	r.runBatches.WithLabelValues("success").Set(float64(c.Success))
	r.runBatches.WithLabelValues("failure").Set(float64(c.Failure))
	r.runBatches.WithLabelValues("total").Set(float64(c.Total))
}

// WriteTextfile writes every metric to path in the node_exporter textfile
// collector format.
func (r *PrometheusRecorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}

var _ uploader.Recorder = (*PrometheusRecorder)(nil)
