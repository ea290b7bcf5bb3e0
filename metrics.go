package scopeauth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one client-side counter or histogram.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful logins (password or federated).
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts logins rejected by the server.
	MetricLoginFailure
	// MetricRotationSuccess counts rotation exchanges that produced a new pair.
	MetricRotationSuccess
	// MetricRotationFailure counts rotation exchanges that cleared the session.
	MetricRotationFailure
	// MetricRotationCoalesced counts rotate() calls whose result was shared
	// with other concurrent callers instead of each performing an exchange.
	MetricRotationCoalesced
	// MetricUnauthorizedRetry counts wrapped requests re-issued after a 401.
	MetricUnauthorizedRetry
	// MetricRetryStillUnauthorized counts retried requests that came back 401
	// again and were returned to the caller as-is.
	MetricRetryStillUnauthorized
	// MetricWatchdogRotation counts rotations triggered by the expiry watchdog.
	MetricWatchdogRotation
	// MetricLogout counts explicit logouts.
	MetricLogout
	// MetricStoreWriteFailure counts persistent-store writes that were
	// swallowed, leaving that value in-memory only.
	MetricStoreWriteFailure
	// MetricProfileRefreshSuccess counts successful profile resolutions.
	MetricProfileRefreshSuccess
	// MetricProfileRefreshFailure counts failed profile resolutions.
	MetricProfileRefreshFailure
	// MetricRequestLatency is the wrapped-request latency histogram.
	MetricRequestLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds the client-side counters. All methods are safe for
// concurrent use; a nil or disabled Metrics is a no-op.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and histograms,
// keyed by [MetricID]. Histogram buckets are non-cumulative.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a wrapped-request latency sample. Only
// [MetricRequestLatency] carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricRequestLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricRequestLatency].buckets[i])
		}
		s.Histograms[MetricRequestLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
