// Package otel publishes taroAuth engine metrics through OpenTelemetry.
//
// [NewOTelExporter] registers an Int64ObservableCounter per engine counter.
// The validate latency histogram becomes two gauges: <name>_bucket, with one
// data point per "le" attribute, and <name>_count. One callback reads
// [taroAuth.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
