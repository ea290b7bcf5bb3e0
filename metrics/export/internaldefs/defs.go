package internaldefs

import (
	scopeauth "github.com/insiderscope/scopeauth"
)

// CounterDef binds a [scopeauth.MetricID] to its exported metric name.
type CounterDef struct {
	ID   scopeauth.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram [scopeauth.MetricID] to its exported
// metric name.
type HistogramDef struct {
	ID   scopeauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter, in snapshot order.
var CounterDefs = []CounterDef{
	{ID: scopeauth.MetricLoginSuccess, Name: "scopeauth_login_success_total", Help: "Successful logins."},
	{ID: scopeauth.MetricLoginFailure, Name: "scopeauth_login_failure_total", Help: "Logins rejected by the server."},
	{ID: scopeauth.MetricRotationSuccess, Name: "scopeauth_rotation_success_total", Help: "Rotation exchanges that produced a new token pair."},
	{ID: scopeauth.MetricRotationFailure, Name: "scopeauth_rotation_failure_total", Help: "Rotation exchanges that cleared the session."},
	{ID: scopeauth.MetricRotationCoalesced, Name: "scopeauth_rotation_coalesced_total", Help: "Rotation calls that shared an in-flight exchange."},
	{ID: scopeauth.MetricUnauthorizedRetry, Name: "scopeauth_unauthorized_retry_total", Help: "Wrapped requests re-issued after a 401."},
	{ID: scopeauth.MetricRetryStillUnauthorized, Name: "scopeauth_retry_still_unauthorized_total", Help: "Retried requests that returned 401 again."},
	{ID: scopeauth.MetricWatchdogRotation, Name: "scopeauth_watchdog_rotation_total", Help: "Rotations triggered by the expiry watchdog."},
	{ID: scopeauth.MetricLogout, Name: "scopeauth_logout_total", Help: "Explicit logouts."},
	{ID: scopeauth.MetricStoreWriteFailure, Name: "scopeauth_store_write_failure_total", Help: "Swallowed persistent-store write failures."},
	{ID: scopeauth.MetricProfileRefreshSuccess, Name: "scopeauth_profile_refresh_success_total", Help: "Successful profile resolutions."},
	{ID: scopeauth.MetricProfileRefreshFailure, Name: "scopeauth_profile_refresh_failure_total", Help: "Failed profile resolutions."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: scopeauth.MetricRequestLatency, Name: "scopeauth_request_latency_seconds", Help: "Wrapped-request latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds, Prometheus
// notation.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix mirrors HistogramBounds with characters valid inside
// OTel instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts non-cumulative bucket counts to the cumulative
// form both exporters publish.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
