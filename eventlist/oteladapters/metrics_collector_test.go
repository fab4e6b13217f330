package oteladapters_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/stolsvik/glazedlists/eventlist"
	"github.com/stolsvik/glazedlists/eventlist/oteladapters"
)

func givenMetricsCollector() (*oteladapters.MetricsCollector, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return oteladapters.NewMetricsCollector(provider.Meter("eventlist-test")), reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var resourceMetrics metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &resourceMetrics), "failed to collect metrics")

	return resourceMetrics
}

func Test_MetricsCollector_RecordsListWrites(t *testing.T) {
	ctx := context.Background()
	collector, reader := givenMetricsCollector()

	list, err := eventlist.New[string](eventlist.WithName("cars"), eventlist.WithMetrics(collector))
	require.NoError(t, err)

	require.NoError(t, list.Append(ctx, "Mustang", "Camaro"))
	_, err = list.Remove(ctx, 7)
	require.ErrorIs(t, err, eventlist.ErrIndexOutOfBounds)

	resourceMetrics := collect(t, reader)

	histogram := findHistogramMetric(t, resourceMetrics, "eventlist_write_duration_seconds")
	successAttrs := attribute.NewSet(
		attribute.String("operation", "Append"),
		attribute.String("list", "cars"),
		attribute.String("status", "success"),
	)
	assert.True(t, hasHistogramPoint(histogram, successAttrs), "missing duration of the Append")

	counter := findCounterMetric(t, resourceMetrics, "eventlist_precondition_violations_total")
	require.Len(t, counter.DataPoints, 1)
	assert.Equal(t, int64(1), counter.DataPoints[0].Value)
	expectedAttrs := attribute.NewSet(
		attribute.String("operation", "Remove"),
		attribute.String("list", "cars"),
		attribute.String("error_type", "index_out_of_bounds"),
	)
	assert.True(t, counter.DataPoints[0].Attributes.Equals(&expectedAttrs))

	gauge := findGaugeMetric(t, resourceMetrics, "eventlist_changes_published")
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, 1.0, gauge.DataPoints[0].Value)
}

func Test_MetricsCollector_RecordDuration_InSeconds(t *testing.T) {
	collector, reader := givenMetricsCollector()

	collector.RecordDuration("eventlist_write_duration_seconds", 150*time.Millisecond, map[string]string{"operation": "Add"})
	collector.RecordDurationContext(context.Background(), "eventlist_write_duration_seconds", 50*time.Millisecond, map[string]string{"operation": "Add"})

	histogram := findHistogramMetric(t, collect(t, reader), "eventlist_write_duration_seconds")
	require.Len(t, histogram.DataPoints, 1)
	assert.Equal(t, uint64(2), histogram.DataPoints[0].Count)
	assert.InDelta(t, 0.2, histogram.DataPoints[0].Sum, 0.001)
}

func Test_MetricsCollector_InstrumentReuse(t *testing.T) {
	collector, reader := givenMetricsCollector()

	collector.IncrementCounter("reused_counter", nil)
	collector.IncrementCounterContext(context.Background(), "reused_counter", nil)
	collector.IncrementCounter("reused_counter", nil)
	collector.RecordValue("reused_gauge", 10, nil)
	collector.RecordValueContext(context.Background(), "reused_gauge", 20, nil)

	resourceMetrics := collect(t, reader)

	assert.Equal(t, int64(3), findCounterMetric(t, resourceMetrics, "reused_counter").DataPoints[0].Value)
	assert.Equal(t, 20.0, findGaugeMetric(t, resourceMetrics, "reused_gauge").DataPoints[0].Value)
}

func Test_MetricsCollector_ConcurrentUse(t *testing.T) {
	collector, reader := givenMetricsCollector()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				collector.IncrementCounter("concurrent_counter", map[string]string{"list": "shared"})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(800), findCounterMetric(t, collect(t, reader), "concurrent_counter").DataPoints[0].Value)
}

func Test_MetricsCollector_InstrumentCreationErrors(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	collector := oteladapters.NewMetricsCollector(&errorInjectingMeter{Meter: provider.Meter("test")})
	ctx := context.Background()

	assert.NotPanics(t, func() {
		collector.RecordDuration("error_histogram", time.Millisecond, nil)
		collector.IncrementCounter("error_counter", nil)
		collector.RecordValue("error_gauge", 1, nil)
		collector.RecordDurationContext(ctx, "error_histogram", time.Millisecond, nil)
		collector.IncrementCounterContext(ctx, "error_counter", nil)
		collector.RecordValueContext(ctx, "error_gauge", 1, nil)
	})
}

// errorInjectingMeter fails to create instruments whose name starts with "error_".
type errorInjectingMeter struct {
	metric.Meter
}

var errInstrument = errors.New("instrument creation failed")

func (m *errorInjectingMeter) Float64Histogram(name string, options ...metric.Float64HistogramOption) (metric.Float64Histogram, error) {
	if name == "error_histogram" {
		return nil, errInstrument
	}
	return m.Meter.Float64Histogram(name, options...)
}

func (m *errorInjectingMeter) Int64Counter(name string, options ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	if name == "error_counter" {
		return nil, errInstrument
	}
	return m.Meter.Int64Counter(name, options...)
}

func (m *errorInjectingMeter) Float64Gauge(name string, options ...metric.Float64GaugeOption) (metric.Float64Gauge, error) {
	if name == "error_gauge" {
		return nil, errInstrument
	}
	return m.Meter.Float64Gauge(name, options...)
}

func hasHistogramPoint(histogram *metricdata.Histogram[float64], attrs attribute.Set) bool {
	for _, dataPoint := range histogram.DataPoints {
		if dataPoint.Attributes.Equals(&attrs) {
			return true
		}
	}

	return false
}

func findMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) metricdata.Aggregation {
	t.Helper()

	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name == name {
				return m.Data
			}
		}
	}
	t.Fatalf("metric %s not found", name)

	return nil
}

func findHistogramMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) *metricdata.Histogram[float64] {
	t.Helper()

	h, ok := findMetric(t, resourceMetrics, name).(metricdata.Histogram[float64])
	require.True(t, ok, "metric %s is not a float64 histogram", name)

	return &h
}

func findCounterMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) *metricdata.Sum[int64] {
	t.Helper()

	c, ok := findMetric(t, resourceMetrics, name).(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", name)

	return &c
}

func findGaugeMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) *metricdata.Gauge[float64] {
	t.Helper()

	g, ok := findMetric(t, resourceMetrics, name).(metricdata.Gauge[float64])
	require.True(t, ok, "metric %s is not a float64 gauge", name)

	return &g
}
