// Package metrics exposes benchmark operation counters and latencies to
// Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for a benchmark process
type Metrics struct {
	// Operation metrics
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec

	// Workload metrics
	recordsLoaded prometheus.Counter

	// Store metrics
	storeKeysTotal     prometheus.Gauge
	storeDataSizeBytes prometheus.Gauge
}

// NewMetrics creates all metrics and registers them on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freyjabench_operations_total",
				Help: "Total number of benchmark operations by outcome",
			},
			[]string{"operation", "status"},
		),

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "freyjabench_operation_duration_seconds",
				Help:    "Benchmark operation duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"operation"},
		),

		recordsLoaded: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "freyjabench_workload_records_loaded",
				Help: "Number of records inserted by the load phase",
			},
		),

		storeKeysTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "freyjabench_store_keys_total",
				Help: "Number of live keys in the store",
			},
		),

		storeDataSizeBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "freyjabench_store_data_size_bytes",
				Help: "Size of the store's data in bytes",
			},
		),
	}
}

// ObserveOperation records one finished operation
func (m *Metrics) ObserveOperation(op, status string, d time.Duration) {
	m.operationsTotal.WithLabelValues(op, status).Inc()
	m.operationDuration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordLoaded counts records written by the load phase
func (m *Metrics) RecordLoaded(n int) {
	m.recordsLoaded.Add(float64(n))
}

// UpdateStoreStats updates store statistics
func (m *Metrics) UpdateStoreStats(keys int, dataSize int64) {
	m.storeKeysTotal.Set(float64(keys))
	m.storeDataSizeBytes.Set(float64(dataSize))
}
