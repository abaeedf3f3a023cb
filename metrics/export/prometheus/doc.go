// Package prometheus exposes engine counters as a prometheus.Collector.
//
// Counters are named jwtauth_*_total; decode latency, when enabled, is the
// jwtauth_decode_latency_seconds histogram. Register the [Collector] with any
// registry, or mount [Handler] for a standalone /metrics endpoint.
package prometheus
