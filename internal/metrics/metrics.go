// ============================================================================
// Beaver-Distbuild Metrics - Prometheus Monitoring
// ============================================================================
//
// Package: internal/metrics
// File: metrics.go
// Purpose: Collect and expose system metrics for Prometheus monitoring
//
// Metric Categories:
//
//   1. Pip counters - cumulative, monotonically increasing:
//      - pips_admitted_total: pip-step requests admitted by a worker
//      - pips_completed_total: pip-step completions reported back
//      - pips_duplicate_total: pip-step requests dropped as duplicate sequence numbers
//      - pips_failed_total: pip-step requests that failed
//
//   2. Distribution metrics (Histogram) - distribution stats:
//      - batch_size_pips: pips per ExecutePips/notification batch
//      - notification_flush_latency_seconds: time from queue to RPC send
//      - execution_log_bytes: size of execution-log blobs sent per flush
//      - attach_duration_seconds: time spent in the Hello/Attach handshake
//
//   3. Status metrics (Gauge) - instantaneous values:
//      - workers_attached: currently attached remote workers
//      - pips_in_flight: pip steps awaiting completion
//
// HTTP Endpoint:
//   Exposed via /metrics endpoint, scraped by Prometheus.
//   Default port: 9090.
//
// ============================================================================

package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector collects Prometheus metrics for a worker or orchestrator process.
type Collector struct {
	pipsAdmitted  prometheus.Counter
	pipsCompleted prometheus.Counter
	pipsDuplicate prometheus.Counter
	pipsFailed    prometheus.Counter

	batchSize             prometheus.Histogram
	notificationFlushTime prometheus.Histogram
	executionLogBytes     prometheus.Histogram
	attachDuration        prometheus.Histogram

	workersAttached prometheus.Gauge
	pipsInFlight    prometheus.Gauge
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	c := &Collector{
		pipsAdmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "distbuild_pips_admitted_total",
			Help: "Total number of pip-step requests admitted by a worker",
		}),
		pipsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "distbuild_pips_completed_total",
			Help: "Total number of pip-step completions reported back to the orchestrator",
		}),
		pipsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "distbuild_pips_duplicate_total",
			Help: "Total number of pip-step requests dropped as duplicate sequence numbers",
		}),
		pipsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "distbuild_pips_failed_total",
			Help: "Total number of pip-step requests that failed",
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "distbuild_batch_size_pips",
			Help:    "Number of pips per ExecutePips/notification batch",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
		}),
		notificationFlushTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "distbuild_notification_flush_latency_seconds",
			Help:    "Time from a result/event being queued to its RPC being sent",
			Buckets: prometheus.DefBuckets,
		}),
		executionLogBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "distbuild_execution_log_bytes",
			Help:    "Size of execution-log blobs sent per flush",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		}),
		attachDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "distbuild_attach_duration_seconds",
			Help:    "Time spent in the Hello/Attach handshake",
			Buckets: prometheus.DefBuckets,
		}),
		workersAttached: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "distbuild_workers_attached",
			Help: "Current number of attached remote workers",
		}),
		pipsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "distbuild_pips_in_flight",
			Help: "Current number of pip steps awaiting completion",
		}),
	}

	prometheus.MustRegister(c.pipsAdmitted)
	prometheus.MustRegister(c.pipsCompleted)
	prometheus.MustRegister(c.pipsDuplicate)
	prometheus.MustRegister(c.pipsFailed)
	prometheus.MustRegister(c.batchSize)
	prometheus.MustRegister(c.notificationFlushTime)
	prometheus.MustRegister(c.executionLogBytes)
	prometheus.MustRegister(c.attachDuration)
	prometheus.MustRegister(c.workersAttached)
	prometheus.MustRegister(c.pipsInFlight)

	return c
}

// RecordAdmitted records a pip-step request admitted by a worker.
func (c *Collector) RecordAdmitted() {
	c.pipsAdmitted.Inc()
}

// RecordCompleted records a pip-step completion.
func (c *Collector) RecordCompleted() {
	c.pipsCompleted.Inc()
}

// RecordDuplicate records a pip-step request dropped as a duplicate sequence number.
func (c *Collector) RecordDuplicate() {
	c.pipsDuplicate.Inc()
}

// RecordFailed records a pip-step request that failed.
func (c *Collector) RecordFailed() {
	c.pipsFailed.Inc()
}

// ObserveBatchSize records the pip count of a sent batch.
func (c *Collector) ObserveBatchSize(pips int) {
	c.batchSize.Observe(float64(pips))
}

// ObserveNotificationFlushLatency records queue-to-send latency in seconds.
func (c *Collector) ObserveNotificationFlushLatency(seconds float64) {
	c.notificationFlushTime.Observe(seconds)
}

// ObserveExecutionLogBytes records the size of a sent execution-log blob.
func (c *Collector) ObserveExecutionLogBytes(bytes int) {
	c.executionLogBytes.Observe(float64(bytes))
}

// ObserveAttachDuration records the time spent completing the attach handshake.
func (c *Collector) ObserveAttachDuration(seconds float64) {
	c.attachDuration.Observe(seconds)
}

// SetWorkersAttached updates the current attached-worker gauge.
func (c *Collector) SetWorkersAttached(n int) {
	c.workersAttached.Set(float64(n))
}

// SetPipsInFlight updates the current in-flight pip-step gauge.
func (c *Collector) SetPipsInFlight(n int) {
	c.pipsInFlight.Set(float64(n))
}

// StartServer starts the Prometheus metrics HTTP server.
func StartServer(port int) error {
	http.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, nil)
}
