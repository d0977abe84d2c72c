// Package metrics defines the observability hooks of the dispatch engine.
// A Sink records assignments, auto-assignment outcomes, transitions and
// notifier failures. Prometheus and InfluxDB sinks live in infra/metrics and
// can be combined with infra/metrics.NewMultiSink.
package metrics
