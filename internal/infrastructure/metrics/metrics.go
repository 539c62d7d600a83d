// Package metrics exposes Prometheus metrics for the ingest pipeline and the
// HTTP API.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for clausecheck. It implements
// ports.IngestMetrics.
type Metrics struct {
	SegmentationsTotal *prometheus.CounterVec
	ClausesPerContract *prometheus.HistogramVec
	SegmentDuration    *prometheus.HistogramVec
	IngestsTotal       *prometheus.CounterVec

	HTTPRequestsTotal *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// NewMetrics creates and registers the metrics on the default registry.
//
// Registration happens once per process; later calls return the same
// instance.
//
// Metrics:
//   - clausecheck_segmentations_total{tier}
//   - clausecheck_clauses_per_contract{tier}
//   - clausecheck_segment_duration_seconds{tier}
//   - clausecheck_ingests_total{outcome}
//   - clausecheck_http_requests_total{method,route,status}
//   - clausecheck_http_request_duration_seconds{method,route}
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			SegmentationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "clausecheck_segmentations_total",
					Help: "Total number of documents segmented",
				},
				[]string{"tier"}, // "numbered" or "paragraph"
			),

			ClausesPerContract: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "clausecheck_clauses_per_contract",
					Help:    "Number of clauses produced per segmented document",
					Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100, 200, 500},
				},
				[]string{"tier"},
			),

			SegmentDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "clausecheck_segment_duration_seconds",
					Help:    "Duration of clause segmentation in seconds",
					Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8), // 100µs to ~1.6s
				},
				[]string{"tier"},
			),

			IngestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "clausecheck_ingests_total",
					Help: "Total number of uploads processed, by outcome",
				},
				[]string{"outcome"},
			),

			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "clausecheck_http_requests_total",
					Help: "Total HTTP requests by method, route and status code",
				},
				[]string{"method", "route", "status"},
			),

			HTTPDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "clausecheck_http_request_duration_seconds",
					Help:    "HTTP request duration in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "route"},
			),
		}
	})

	return globalMetrics
}

// ObserveSegmentation records one segmentation run.
func (m *Metrics) ObserveSegmentation(tier string, clauses int, elapsed time.Duration) {
	m.SegmentationsTotal.WithLabelValues(tier).Inc()
	m.ClausesPerContract.WithLabelValues(tier).Observe(float64(clauses))
	m.SegmentDuration.WithLabelValues(tier).Observe(elapsed.Seconds())
}

// ObserveIngest records the outcome of one upload.
func (m *Metrics) ObserveIngest(outcome string) {
	m.IngestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRequest records one HTTP request. route is the registered path
// pattern, not the raw URL, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
