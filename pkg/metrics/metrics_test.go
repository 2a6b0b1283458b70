package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	t.Fatalf("metric family %s not found", name)
	return nil
}

func TestObserveRequest(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.ObserveRequest("QUERY_DATA_SOURCE_USER_DATA", OutcomeSuccess, 120*time.Millisecond, 7)
	m.ObserveRequest("QUERY_DATA_SOURCE_USER_DATA", OutcomeSuccess, 80*time.Millisecond, 3)
	m.ObserveRequest("QUERY_DATA_SOURCE_USER_DATA", OutcomeHTTP, 10*time.Millisecond, 0)

	requests := findFamily(t, reg, "usage_report_requests_total")
	var success, failed float64
	for _, metric := range requests.GetMetric() {
		for _, l := range metric.GetLabel() {
			if l.GetName() != "outcome" {
				continue
			}
			switch l.GetValue() {
			case OutcomeSuccess:
				success = metric.GetCounter().GetValue()
			case OutcomeHTTP:
				failed = metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 2.0, success)
	assert.Equal(t, 1.0, failed)

	records := findFamily(t, reg, "usage_report_records_fetched_total")
	require.Len(t, records.GetMetric(), 1)
	assert.Equal(t, 10.0, records.GetMetric()[0].GetCounter().GetValue())

	duration := findFamily(t, reg, "usage_report_request_duration_seconds")
	assert.Equal(t, uint64(3), duration.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestMarkRun(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)
	m.MarkRun("cascade", time.Unix(1736899200, 0))

	last := findFamily(t, reg, "usage_report_last_run_timestamp_seconds")
	require.Len(t, last.GetMetric(), 1)
	assert.Equal(t, 1736899200.0, last.GetMetric()[0].GetGauge().GetValue())
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveRequest("QUERY_DATA_SOURCE_CASCADE_DATA", OutcomeSuccess, time.Second, 1)

	path := filepath.Join(t.TempDir(), "usage_report.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path) // nolint:gosec
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `usage_report_requests_total{data_source="QUERY_DATA_SOURCE_CASCADE_DATA",outcome="success"} 1`))

	assert.NoError(t, m.WriteTextfile(""))
}

func TestNilCollector(t *testing.T) {
	t.Parallel()

	var m *Collector
	m.ObserveRequest("x", OutcomeSuccess, time.Second, 1)
	m.MarkRun("x", time.Now())
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "never.prom")))
	assert.NotNil(t, m.Gatherer())
}
