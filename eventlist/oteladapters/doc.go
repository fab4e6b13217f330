// Package oteladapters connects the eventlist observability interfaces to OpenTelemetry.
//
// MetricsCollector maps durations to histograms, counters to counters, and values to gauges.
// TracingCollector starts one span per list write. SlogBridgeLogger and OTelLogger are
// ContextualLogger implementations whose records carry the trace of the write that produced them.
package oteladapters
