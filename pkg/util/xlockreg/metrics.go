package xlockreg

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// 指标名称。
const (
	MetricEntries     = "xlockreg.entries"
	MetricCategories  = "xlockreg.categories"
	MetricOutstanding = "xlockreg.handles.outstanding"
	MetricHeld        = "xlockreg.entries.held"
	MetricAcquires    = "xlockreg.acquire.total"
	MetricReclaimRuns = "xlockreg.reclaim.runs.total"
	MetricReclaimed   = "xlockreg.reclaim.removed.total"
)

// RegisterMetrics 在 meter 上注册 r 的异步指标，采集时读取 r.Stats()。
// 返回的 Registration 用于注销回调。
func RegisterMetrics(meter metric.Meter, r Registry) (metric.Registration, error) {
	if meter == nil || r == nil {
		return nil, ErrNilMeter
	}

	entries, err := meter.Int64ObservableGauge(MetricEntries,
		metric.WithDescription("lock entries currently in the registry"),
		metric.WithUnit("{entry}"))
	if err != nil {
		return nil, fmt.Errorf("xlockreg: create gauge %s: %w", MetricEntries, err)
	}
	categories, err := meter.Int64ObservableGauge(MetricCategories,
		metric.WithDescription("distinct categories currently in the registry"),
		metric.WithUnit("{category}"))
	if err != nil {
		return nil, fmt.Errorf("xlockreg: create gauge %s: %w", MetricCategories, err)
	}
	outstanding, err := meter.Int64ObservableGauge(MetricOutstanding,
		metric.WithDescription("handles checked out and not yet released"),
		metric.WithUnit("{handle}"))
	if err != nil {
		return nil, fmt.Errorf("xlockreg: create gauge %s: %w", MetricOutstanding, err)
	}
	held, err := meter.Int64ObservableGauge(MetricHeld,
		metric.WithDescription("lock entries currently held"),
		metric.WithUnit("{entry}"))
	if err != nil {
		return nil, fmt.Errorf("xlockreg: create gauge %s: %w", MetricHeld, err)
	}
	acquires, err := meter.Int64ObservableCounter(MetricAcquires,
		metric.WithDescription("successful Acquire calls"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("xlockreg: create counter %s: %w", MetricAcquires, err)
	}
	runs, err := meter.Int64ObservableCounter(MetricReclaimRuns,
		metric.WithDescription("reclaim passes"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("xlockreg: create counter %s: %w", MetricReclaimRuns, err)
	}
	reclaimed, err := meter.Int64ObservableCounter(MetricReclaimed,
		metric.WithDescription("lock entries removed by reclamation"),
		metric.WithUnit("{entry}"))
	if err != nil {
		return nil, fmt.Errorf("xlockreg: create counter %s: %w", MetricReclaimed, err)
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		st := r.Stats()
		o.ObserveInt64(entries, int64(st.Entries))
		o.ObserveInt64(categories, int64(st.Categories))
		o.ObserveInt64(outstanding, int64(st.Outstanding))
		o.ObserveInt64(held, int64(st.Held))
		o.ObserveInt64(acquires, clampInt64(st.Acquires))
		o.ObserveInt64(runs, clampInt64(st.ReclaimRuns))
		o.ObserveInt64(reclaimed, clampInt64(st.Reclaimed))
		return nil
	}, entries, categories, outstanding, held, acquires, runs, reclaimed)
}

func clampInt64(v uint64) int64 {
	const maxInt64 = 1<<63 - 1
	if v > maxInt64 {
		return maxInt64
	}
	return int64(v)
}
