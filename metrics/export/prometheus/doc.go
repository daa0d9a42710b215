// Package prometheus renders taroAuth engine metrics in Prometheus text
// exposition format without depending on the Prometheus client library.
//
// Counters are named taroauth_*_total. The single histogram is
// taroauth_validate_latency_seconds. [PrometheusExporter.Handler] streams the
// output; [PrometheusExporter.Render] returns it as a string for tests and logs.
package prometheus
