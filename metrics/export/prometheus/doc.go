// Package prometheus renders scopeauth session metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts a [scopeauth.Client] and exposes an
// http.Handler that renders all counters and the request-latency histogram.
// Counter names are prefixed scopeauth_*_total; the single histogram is
// scopeauth_request_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the
//     Handler.
//   - Mutate client state.
package prometheus
