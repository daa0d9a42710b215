package otel

import (
	"context"
	"sync"
	"testing"

	taroAuth "github.com/MrEthical07/taroAuth"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot taroAuth.MetricsSnapshot
	dropped  uint64
	expired  uint64
}

func (f *fakeSource) MetricsSnapshot() taroAuth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := taroAuth.MetricsSnapshot{
		Counters:   make(map[taroAuth.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[taroAuth.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func (f *fakeSource) ExpiryQueueDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.expired
}

func newMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func sumValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			require.NotEmpty(t, sum.DataPoints)
			return sum.DataPoints[0].Value
		}
	}
	t.Fatalf("metric %s not collected", name)
	return 0
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newMeter(t)

	src := &fakeSource{
		snapshot: taroAuth.MetricsSnapshot{
			Counters: map[taroAuth.MetricID]uint64{
				taroAuth.MetricLoginSuccess: 3,
			},
			Histograms: map[taroAuth.MetricID][]uint64{
				taroAuth.MetricValidateLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
		expired: 4,
	}

	exp, err := NewOTelExporterFromSource(provider.Meter("taroauth-test"), src)
	require.NoError(t, err)
	defer func() { require.NoError(t, exp.Close()) }()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Equal(t, int64(3), sumValue(t, rm, "taroauth_login_success_total"))
	require.Equal(t, int64(1), sumValue(t, rm, "taroauth_audit_dropped_total"))
	require.Equal(t, int64(4), sumValue(t, rm, "taroauth_expiry_queue_dropped_total"))
}

func TestExporterLatencyBucketsCarryLeAttribute(t *testing.T) {
	reader, provider := newMeter(t)
	src := &fakeSource{
		snapshot: taroAuth.MetricsSnapshot{
			Counters: map[taroAuth.MetricID]uint64{},
			Histograms: map[taroAuth.MetricID][]uint64{
				taroAuth.MetricValidateLatency: {2, 0, 1, 0, 0, 0, 0, 1},
			},
		},
	}
	exp, err := NewOTelExporterFromSource(provider.Meter("taroauth-test"), src)
	require.NoError(t, err)
	defer func() { require.NoError(t, exp.Close()) }()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	byLe := map[string]int64{}
	var count int64 = -1
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case "taroauth_validate_latency_seconds_bucket":
				g, ok := m.Data.(metricdata.Gauge[int64])
				require.True(t, ok)
				for _, dp := range g.DataPoints {
					le, ok := dp.Attributes.Value("le")
					require.True(t, ok)
					byLe[le.AsString()] = dp.Value
				}
			case "taroauth_validate_latency_seconds_count":
				g, ok := m.Data.(metricdata.Gauge[int64])
				require.True(t, ok)
				require.Len(t, g.DataPoints, 1)
				count = g.DataPoints[0].Value
			}
		}
	}

	require.Len(t, byLe, 8)
	require.Equal(t, int64(2), byLe["0.005"])
	require.Equal(t, int64(3), byLe["0.025"])
	require.Equal(t, int64(4), byLe["+Inf"])
	require.Equal(t, int64(4), count)
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newMeter(t)

	_, err := NewOTelExporterFromSource(provider.Meter("taroauth-test"), nil)
	require.ErrorIs(t, err, ErrNilSource)

	_, err = NewOTelExporterFromSource(nil, &fakeSource{})
	require.ErrorIs(t, err, ErrNilMeter)

	_, err = NewOTelExporter(provider.Meter("taroauth-test"), nil)
	require.ErrorIs(t, err, ErrNilSource)
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newMeter(t)

	src := &fakeSource{
		snapshot: taroAuth.MetricsSnapshot{
			Counters: map[taroAuth.MetricID]uint64{
				taroAuth.MetricLoginSuccess: 1,
			},
			Histograms: map[taroAuth.MetricID][]uint64{
				taroAuth.MetricValidateLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporterFromSource(provider.Meter("taroauth-test"), src)
	require.NoError(t, err)
	defer func() { require.NoError(t, exp.Close()) }()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[taroAuth.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
