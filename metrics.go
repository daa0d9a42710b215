package taroAuth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one in-process counter or histogram.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginLocked
	MetricLogout
	MetricSessionCreated
	MetricSessionValidated
	MetricSessionInvalid
	MetricSessionRevoked
	MetricSessionExpiredQueued
	MetricSessionSwept
	MetricCacheHit
	MetricCacheMiss
	MetricCacheError
	MetricRegistrationSuccess
	MetricRegistrationDuplicate
	MetricGuestLogin
	MetricProfileUpdated
	MetricDirectiveEmitted
	MetricRouteCommandError
	MetricSignupThrottled
	// MetricValidateLatency is the only histogram; its counter slot stays zero.
	MetricValidateLatency
	metricIDCount
)

// validateLatencyBounds are the inclusive upper edges of the first seven
// buckets. The eighth bucket takes everything slower.
var validateLatencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const histBucketCount = len(validateLatencyBounds) + 1

// paddedCounter keeps hot counters on separate cache lines.
type paddedCounter struct {
	atomic.Uint64
	_ [56]byte
}

// Metrics is a fixed-size, lock-free counter registry with one latency
// histogram for session validation.
//
// All methods are safe for concurrent use and nil-safe.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	latency       [histBucketCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a registry. With cfg.Enabled false every call is a no-op.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add adds n to counter id. Unknown ids are ignored.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || n == 0 || id >= metricIDCount {
		return
	}
	m.counters[id].Add(n)
}

// Observe records d for MetricValidateLatency. Other ids have no histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricValidateLatency {
		return
	}
	m.latency[latencyBucket(d)].Add(1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot copies every counter and the latency histogram. It returns empty
// maps, never nil maps, when metrics are disabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if m == nil || !m.enabled {
		return s
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = m.counters[id].Load()
	}
	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = m.latency[i].Load()
		}
		s.Histograms[MetricValidateLatency] = buckets
	}
	return s
}

func latencyBucket(d time.Duration) int {
	for i, bound := range validateLatencyBounds {
		if d <= bound {
			return i
		}
	}
	return len(validateLatencyBounds)
}
