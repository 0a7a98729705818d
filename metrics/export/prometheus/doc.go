// Package prometheus exposes the engine's counters and the verification
// latency histogram as a [prometheus.Collector].
//
// [NewExporter] wraps an engine; [Exporter.Handler] serves the metrics from
// a private registry for processes that do not already run one. Counter
// names are prefixed rbacauth_*_total; the single histogram is
// rbacauth_verify_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry. Callers choose
//     where the Exporter is registered.
//   - Mutate engine state.
package prometheus
