// Package otel publishes engine counters through OpenTelemetry observable
// instruments: one Int64ObservableCounter per counter and one gauge per latency
// bucket. Callers own the MeterProvider.
package otel
