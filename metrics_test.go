package taroAuth

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledRecordsNothing(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false, EnableLatencyHistograms: true})
	m.Inc(MetricLoginSuccess)
	m.Observe(MetricValidateLatency, time.Millisecond)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	snap := m.Snapshot()
	if snap.Counters == nil || snap.Histograms == nil {
		t.Fatal("snapshot maps must never be nil")
	}
	if len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}

	var nilMetrics *Metrics
	nilMetrics.Inc(MetricLoginSuccess)
	if len(nilMetrics.Snapshot().Counters) != 0 {
		t.Fatal("nil registry must snapshot empty")
	}
}

func TestMetricsAddIgnoresZeroAndUnknown(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricSessionSwept)
	m.Add(MetricSessionSwept, 41)
	m.Add(MetricSessionSwept, 0)
	m.Add(metricIDCount+3, 7)

	if got := m.Value(MetricSessionSwept); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	if got := m.Value(metricIDCount + 3); got != 0 {
		t.Fatalf("unknown id must read zero, got %d", got)
	}
}

func TestMetricsConcurrentIncrements(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers, perWorker = 16, 5000
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id MetricID) {
			defer wg.Done()
			<-start
			for j := 0; j < perWorker; j++ {
				m.Inc(id)
			}
		}([]MetricID{MetricCacheHit, MetricCacheMiss}[i%2])
	}
	close(start)
	wg.Wait()

	want := uint64(workers / 2 * perWorker)
	for _, id := range []MetricID{MetricCacheHit, MetricCacheMiss} {
		if got := m.Value(id); got != want {
			t.Fatalf("metric %d: expected %d, got %d", id, want, got)
		}
	}
}

func TestLatencyBuckets(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{5 * time.Millisecond, 0},
		{5*time.Millisecond + time.Microsecond, 1},
		{10 * time.Millisecond, 1},
		{25 * time.Millisecond, 2},
		{50 * time.Millisecond, 3},
		{100 * time.Millisecond, 4},
		{250 * time.Millisecond, 5},
		{500 * time.Millisecond, 6},
		{700 * time.Millisecond, 7},
		{time.Minute, 7},
	}
	for _, tc := range cases {
		if got := latencyBucket(tc.d); got != tc.want {
			t.Fatalf("latencyBucket(%s) = %d, want %d", tc.d, got, tc.want)
		}
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Inc(MetricLoginSuccess)
	m.Add(MetricLoginFailure, 2)
	m.Observe(MetricValidateLatency, 2*time.Millisecond)
	m.Observe(MetricValidateLatency, 2*time.Second)
	m.Observe(MetricLoginSuccess, time.Millisecond)

	snap := m.Snapshot()
	if len(snap.Counters) != int(metricIDCount) {
		t.Fatalf("expected every metric id in snapshot, got %d", len(snap.Counters))
	}
	if snap.Counters[MetricLoginSuccess] != 1 || snap.Counters[MetricLoginFailure] != 2 {
		t.Fatalf("unexpected counters: %+v", snap.Counters)
	}

	buckets := snap.Histograms[MetricValidateLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("expected %d buckets, got %d", histBucketCount, len(buckets))
	}
	if buckets[0] != 1 || buckets[histBucketCount-1] != 1 {
		t.Fatalf("unexpected buckets: %v", buckets)
	}
	if _, ok := snap.Histograms[MetricLoginSuccess]; ok {
		t.Fatal("counters must not grow a histogram")
	}

	// The snapshot is a copy.
	buckets[0] = 99
	if m.Snapshot().Histograms[MetricValidateLatency][0] != 1 {
		t.Fatal("mutating a snapshot must not affect the registry")
	}

	noLatency := NewMetrics(MetricsConfig{Enabled: true})
	noLatency.Observe(MetricValidateLatency, time.Millisecond)
	if _, ok := noLatency.Snapshot().Histograms[MetricValidateLatency]; ok {
		t.Fatal("histogram must be absent when latency recording is off")
	}
}
