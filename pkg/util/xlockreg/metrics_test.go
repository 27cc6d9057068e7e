package xlockreg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectInt64(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += dp.Value
				}
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += dp.Value
				}
			}
		}
	}
	return out
}

func TestRegisterMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	r := newTestRegistry(t)
	reg, err := RegisterMetrics(mp.Meter("test"), r)
	require.NoError(t, err)
	defer func() { _ = reg.Unregister() }()

	h1 := mustAcquire(t, r, "agent", "a1")
	h2 := mustAcquire(t, r, "tenant", "t1")
	require.NoError(t, h1.Lock())
	idle := mustAcquire(t, r, "agent", "a2")
	require.NoError(t, idle.Release())

	got := collectInt64(t, reader)
	assert.Equal(t, int64(3), got[MetricEntries])
	assert.Equal(t, int64(2), got[MetricCategories])
	assert.Equal(t, int64(2), got[MetricOutstanding])
	assert.Equal(t, int64(1), got[MetricHeld])
	assert.Equal(t, int64(3), got[MetricAcquires])
	assert.Equal(t, int64(0), got[MetricReclaimRuns])

	r.ReclaimUnused()
	got = collectInt64(t, reader)
	assert.Equal(t, int64(2), got[MetricEntries])
	assert.Equal(t, int64(1), got[MetricReclaimRuns])
	assert.Equal(t, int64(1), got[MetricReclaimed])

	require.NoError(t, h1.Release())
	require.NoError(t, h2.Release())
}

func TestRegisterMetrics_Nil(t *testing.T) {
	mp := sdkmetric.NewMeterProvider()
	defer func() { _ = mp.Shutdown(context.Background()) }()

	_, err := RegisterMetrics(nil, newTestRegistry(t))
	assert.ErrorIs(t, err, ErrNilMeter)
	_, err = RegisterMetrics(mp.Meter("test"), nil)
	assert.ErrorIs(t, err, ErrNilMeter)
}

func TestClampInt64(t *testing.T) {
	assert.Equal(t, int64(7), clampInt64(7))
	assert.Equal(t, int64(1<<63-1), clampInt64(1<<64-1))
}
