// Package metrics records Prometheus metrics for a single usage-report run.
//
// A batch run has no scrape endpoint, so the registry is written out in the
// node-exporter textfile format at the end of the run when a metrics file is
// configured.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "usage_report"

// Request outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeHTTP    = "http_error"
	OutcomeNetwork = "network_error"
	OutcomeDecode  = "decode_error"
)

// Collector holds the metrics for one run. A nil *Collector is valid and
// records nothing.
type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RecordsFetched  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	LastRun         *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// New creates a collector on a fresh private registry.
func New() *Collector {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates a collector registered with reg.
func NewWithRegistry(reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Analytics requests issued, by data source and outcome",
			},
			[]string{"data_source", "outcome"},
		),
		RecordsFetched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_fetched_total",
				Help:      "Usage records extracted from analytics responses",
			},
			[]string{"data_source"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Analytics request duration in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"data_source"},
		),
		LastRun: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix timestamp of the last completed report run",
			},
			[]string{"report"},
		),
		gatherer: reg,
	}
}

// ObserveRequest records one analytics request.
func (c *Collector) ObserveRequest(dataSource, outcome string, elapsed time.Duration, records int) {
	if c == nil {
		return
	}
	c.RequestsTotal.WithLabelValues(dataSource, outcome).Inc()
	c.RequestDuration.WithLabelValues(dataSource).Observe(elapsed.Seconds())
	if records > 0 {
		c.RecordsFetched.WithLabelValues(dataSource).Add(float64(records))
	}
}

// MarkRun stamps the completion time of a report.
func (c *Collector) MarkRun(report string, at time.Time) {
	if c == nil {
		return
	}
	c.LastRun.WithLabelValues(report).Set(float64(at.Unix()))
}

// Gatherer exposes the underlying registry.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return prometheus.NewRegistry()
	}
	return c.gatherer
}

// WriteTextfile writes every metric to path in the textfile collector format.
// An empty path is a no-op.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.gatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
