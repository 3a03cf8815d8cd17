// Package otel binds fleetAuth engine counters to OpenTelemetry observable instruments.
//
// [NewExporter] registers one Int64ObservableCounter per engine counter and one
// Int64ObservableGauge per histogram bucket. A single callback reads
// [fleetAuth.Engine.MetricsSnapshot] on each collection. Callers own the MeterProvider.
package otel
