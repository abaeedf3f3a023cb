// Package otel binds engine counters to OpenTelemetry observable instruments.
//
// [NewExporter] creates one Int64ObservableCounter per counter and one
// Int64ObservableGauge per latency bucket, all read by a single callback from
// [jwtauth.Engine.MetricsSnapshot]. The caller owns the MeterProvider.
package otel
