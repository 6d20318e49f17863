// Package instrumentation provides OpenTelemetry-based metrics for the
// task backend.
//
// Provider owns the meter provider and its exporter (Prometheus by
// default, OTLP or stdout via configuration). Metrics records the
// domain's counters and histograms: HTTP requests, authentication
// attempts, store operations and tool invocations. When instrumentation
// is disabled the recorder methods are no-ops, so call sites never need
// nil checks.
package instrumentation
