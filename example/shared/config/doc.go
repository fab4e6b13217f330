// Package config sets up OpenTelemetry providers for the example programs: OTLP gRPC exporters for a
// collector and Jaeger, or a Prometheus scrape endpoint.
package config
