package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"runtime"
	"slices"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/google/uuid"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xlockkit/internal/appcfg"
	"github.com/omeyang/xlockkit/pkg/config/xconf"
	"github.com/omeyang/xlockkit/pkg/lifecycle/xrun"
	"github.com/omeyang/xlockkit/pkg/observability/xlog"
	"github.com/omeyang/xlockkit/pkg/observability/xmetrics"
	"github.com/omeyang/xlockkit/pkg/util/xlockreg"
)

const instrumentationName = "github.com/omeyang/xlockkit/cmd/xlockctl"

var (
	// errBusy 表示 TryLock 未获得锁，由 retry-go 重试。
	errBusy = errors.New("lock busy")
	// errWorkloadDone 表示负载正常结束，用于让 xrun 停止其余服务。
	errWorkloadDone = errors.New("workload done")
)

var defaultCategories = []string{"agent", "conversation", "tenant", "job"}

// stressRunner 在一个注册表上运行压测负载，同时运行 Janitor 与配置监视器。
type stressRunner struct {
	cfg    appcfg.Config
	logger xlog.LoggerWithLevel
	// signals 为 true 时监听 SIGINT/SIGTERM，收到信号后提前结束并输出已有结果。
	signals bool
	// watch 非 nil 时监视配置文件并热更新日志级别。
	watch xconf.Config
}

// keyState 是单个 (category, key) 的临界区观测状态。
// count 只在持有该 key 的锁时读写，互斥失效会表现为丢失更新。
type keyState struct {
	category string
	key      string
	inside   atomic.Int32
	count    uint64
}

type stressCounters struct {
	ops           atomic.Uint64
	tryExhausted  atomic.Uint64
	rejected      atomic.Uint64
	violations    atomic.Uint64
	mismatches    atomic.Uint64
	janitorPasses atomic.Uint64
	reclaimed     atomic.Uint64
}

// stressReport 是一次压测的结果。
type stressReport struct {
	Mode               string           `json:"mode"`
	Workers            int              `json:"workers"`
	Keys               int              `json:"keys"`
	Elapsed            time.Duration    `json:"elapsed"`
	Interrupted        bool             `json:"interrupted"`
	Operations         uint64           `json:"operations"`
	TryExhausted       uint64           `json:"try_exhausted"`
	Rejected           uint64           `json:"rejected"`
	Violations         uint64           `json:"violations"`
	IdentityMismatches uint64           `json:"identity_mismatches"`
	LostUpdates        uint64           `json:"lost_updates"`
	JanitorPasses      uint64           `json:"janitor_passes"`
	JanitorReclaimed   uint64           `json:"janitor_reclaimed"`
	Registry           xlockreg.Stats   `json:"registry"`
	Metrics            map[string]int64 `json:"metrics"`
}

// OK 报告压测是否没有发现任何正确性问题。
func (r *stressReport) OK() bool {
	return r.Violations == 0 && r.IdentityMismatches == 0 && r.LostUpdates == 0
}

// WriteText 以人类可读的格式输出报告。
func (r *stressReport) WriteText(w io.Writer) error {
	status := "OK"
	if !r.OK() {
		status = "FAILED"
	}
	if r.Interrupted {
		status += " (interrupted)"
	}

	var opsPerSec float64
	if r.Elapsed > 0 {
		opsPerSec = float64(r.Operations) / r.Elapsed.Seconds()
	}

	lines := []string{
		fmt.Sprintf("status:              %s", status),
		fmt.Sprintf("mode:                %s", r.Mode),
		fmt.Sprintf("workers:             %d", r.Workers),
		fmt.Sprintf("keys:                %d", r.Keys),
		fmt.Sprintf("elapsed:             %s", r.Elapsed.Round(time.Millisecond)),
		fmt.Sprintf("operations:          %d (%.0f/s)", r.Operations, opsPerSec),
		fmt.Sprintf("try exhausted:       %d", r.TryExhausted),
		fmt.Sprintf("rejected:            %d", r.Rejected),
		fmt.Sprintf("violations:          %d", r.Violations),
		fmt.Sprintf("identity mismatches: %d", r.IdentityMismatches),
		fmt.Sprintf("lost updates:        %d", r.LostUpdates),
		fmt.Sprintf("janitor passes:      %d (reclaimed %d)", r.JanitorPasses, r.JanitorReclaimed),
		fmt.Sprintf("registry:            entries=%d categories=%d outstanding=%d held=%d acquires=%d reclaimed=%d",
			r.Registry.Entries, r.Registry.Categories, r.Registry.Outstanding, r.Registry.Held,
			r.Registry.Acquires, r.Registry.Reclaimed),
	}
	if len(r.Metrics) > 0 {
		lines = append(lines, "metrics:")
		names := make([]string, 0, len(r.Metrics))
		for name := range r.Metrics {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			lines = append(lines, fmt.Sprintf("  %-34s %d", name, r.Metrics[name]))
		}
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// Run 执行压测并返回报告。
// 注册表配置错误、Janitor 调度无效等返回 error；正确性问题记录在报告中。
func (s *stressRunner) Run(ctx context.Context) (*stressReport, error) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	opts := append(s.cfg.RegistryOptions(), xlockreg.WithLogger(s.logger))
	reg, err := xlockreg.New(opts...)
	if err != nil {
		return nil, &usageError{err: err}
	}
	defer func() { _ = reg.Close() }()

	metricsReg, err := xlockreg.RegisterMetrics(mp.Meter(instrumentationName), reg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = metricsReg.Unregister() }()

	obs, err := xmetrics.NewOTelObserver(
		xmetrics.WithMeterProvider(mp),
		xmetrics.WithInstrumentationName(instrumentationName),
	)
	if err != nil {
		return nil, err
	}

	var c stressCounters
	var services []func(context.Context) error

	if s.cfg.Janitor.Enabled {
		j, err := xlockreg.NewJanitor(reg,
			xlockreg.WithSchedule(s.cfg.Janitor.Schedule),
			xlockreg.WithJanitorLogger(s.logger),
			xlockreg.WithObserver(obs),
			xlockreg.WithOnReclaim(func(rep xlockreg.ReclaimReport) {
				c.janitorPasses.Add(1)
				c.reclaimed.Add(uint64(rep.Removed))
			}),
		)
		if err != nil {
			return nil, &usageError{err: err}
		}
		services = append(services, j.Run)
	}

	if s.watch != nil {
		w, err := xconf.Watch(s.watch, s.onConfigChange)
		if err != nil {
			return nil, err
		}
		services = append(services, w.Run)
	}

	states := s.buildKeys()
	start := time.Now()
	services = append(services, func(ctx context.Context) error {
		if err := s.workload(ctx, reg, states, &c); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errWorkloadDone
	})

	runOpts := []xrun.Option{
		xrun.WithName("xlockctl"),
		xrun.WithLogger(xlog.Slog(s.logger)),
	}
	if s.signals {
		runOpts = append(runOpts, xrun.WithSignals([]os.Signal{syscall.SIGINT, syscall.SIGTERM}))
	} else {
		runOpts = append(runOpts, xrun.WithoutSignalHandler())
	}

	s.logger.Info(ctx, "stress started",
		slog.String("mode", s.cfg.Stress.Mode),
		slog.Int("workers", s.cfg.Stress.Workers),
		slog.Int("keys", len(states)),
		slog.Int("iterations", s.cfg.Stress.Iterations),
		slog.Duration("duration", s.cfg.Stress.Duration),
	)

	interrupted := false
	err = xrun.RunWithOptions(ctx, runOpts, services...)
	switch {
	case err == nil:
		interrupted = ctx.Err() != nil
	case errors.Is(err, errWorkloadDone):
	case errors.Is(err, xrun.ErrSignal), ctx.Err() != nil:
		interrupted = true
	default:
		return nil, err
	}

	rep := &stressReport{
		Mode:               s.cfg.Stress.Mode,
		Workers:            s.cfg.Stress.Workers,
		Keys:               len(states),
		Elapsed:            time.Since(start),
		Interrupted:        interrupted,
		Operations:         c.ops.Load(),
		TryExhausted:       c.tryExhausted.Load(),
		Rejected:           c.rejected.Load(),
		Violations:         c.violations.Load(),
		IdentityMismatches: c.mismatches.Load(),
		JanitorPasses:      c.janitorPasses.Load(),
		JanitorReclaimed:   c.reclaimed.Load(),
		Registry:           reg.Stats(),
	}
	var counted uint64
	for _, st := range states {
		counted += st.count
	}
	if counted != rep.Operations {
		rep.LostUpdates = max(rep.Operations, counted) - min(rep.Operations, counted)
	}
	rep.Metrics, err = snapshotMetrics(ctx, reader)
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if !rep.OK() {
		level = slog.LevelError
	}
	logAttrs := []slog.Attr{
		slog.Uint64("operations", rep.Operations),
		slog.Uint64("violations", rep.Violations),
		slog.Uint64("identity_mismatches", rep.IdentityMismatches),
		slog.Uint64("lost_updates", rep.LostUpdates),
		slog.Duration("elapsed", rep.Elapsed),
	}
	if level == slog.LevelError {
		s.logger.Error(context.WithoutCancel(ctx), "stress finished with failures", logAttrs...)
	} else {
		s.logger.Info(context.WithoutCancel(ctx), "stress finished", logAttrs...)
	}
	return rep, nil
}

// buildKeys 为每个 category 生成一组 uuid key，模拟 agent/会话等记录标识。
func (s *stressRunner) buildKeys() []*keyState {
	st := s.cfg.Stress
	states := make([]*keyState, 0, st.Categories*st.Keys)
	for i := range st.Categories {
		category := fmt.Sprintf("category-%d", i)
		if i < len(defaultCategories) {
			category = defaultCategories[i]
		}
		for range st.Keys {
			states = append(states, &keyState{category: category, key: uuid.NewString()})
		}
	}
	return states
}

// workload 启动 worker 并等待全部结束。ctx 取消或达到时长后 worker 尽快退出。
func (s *stressRunner) workload(ctx context.Context, reg xlockreg.Registry, states []*keyState, c *stressCounters) error {
	st := s.cfg.Stress
	if st.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, st.Duration)
		defer cancel()
	}

	g, ctx := errgroup.WithContext(ctx)
	for w := range st.Workers {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(w)))
			for i := 0; st.Iterations == 0 || i < st.Iterations; i++ {
				if ctx.Err() != nil {
					return nil
				}
				if err := s.once(ctx, reg, states[rng.IntN(len(states))], c); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// once 执行一次 签出 → 加锁 → 临界区 → 归还。
func (s *stressRunner) once(ctx context.Context, reg xlockreg.Registry, st *keyState, c *stressCounters) error {
	h, err := reg.Acquire(st.category, st.key)
	if errors.Is(err, xlockreg.ErrMaxEntriesExceeded) {
		c.rejected.Add(1)
		return nil
	}
	if err != nil {
		return err
	}
	defer func() { _ = h.Release() }()

	switch s.cfg.Stress.Mode {
	case appcfg.ModeTry:
		err := retry.New(
			retry.Attempts(s.cfg.Stress.TryAttempts),
			retry.Delay(s.cfg.Stress.TryDelay),
			retry.DelayType(retry.FixedDelay),
			retry.Context(ctx),
			retry.LastErrorOnly(true),
		).Do(func() error {
			if h.TryLock() {
				return nil
			}
			return errBusy
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, errBusy) {
				c.tryExhausted.Add(1)
				return nil
			}
			return err
		}
	default:
		if err := h.LockContext(ctx); err != nil {
			return err
		}
	}

	if st.inside.Add(1) != 1 {
		c.violations.Add(1)
	}

	// 持锁期间条目不可能被回收，再次签出必须得到同一个条目。
	h2, err := reg.Acquire(st.category, st.key)
	if err != nil {
		st.inside.Add(-1)
		return err
	}
	if h2.Entry() != h.Entry() {
		c.mismatches.Add(1)
	}
	_ = h2.Release()

	// count 与 ops 只在整次操作成功时一起递增，中途失败不会被记为丢失更新。
	st.count++
	runtime.Gosched()
	st.inside.Add(-1)
	c.ops.Add(1)
	return nil
}

// onConfigChange 在配置文件变更后热更新日志级别。
func (s *stressRunner) onConfigChange(cfg xconf.Config, err error) {
	ctx := context.Background()
	if err != nil {
		s.logger.Warn(ctx, "config reload failed", slog.Any("error", err))
		return
	}
	var lc appcfg.LogConfig
	if err := cfg.Unmarshal("log", &lc); err != nil {
		s.logger.Warn(ctx, "config reload failed", slog.Any("error", err))
		return
	}
	level, err := xlog.ParseLevel(lc.Level)
	if err != nil {
		s.logger.Warn(ctx, "ignoring invalid log level", slog.String("level", lc.Level))
		return
	}
	s.logger.SetLevel(level)
	s.logger.Info(ctx, "log level reloaded", slog.String("level", level.String()))
}

// snapshotMetrics 采集一次 int64 指标，返回 指标名 → 数值（多个数据点求和）。
func snapshotMetrics(ctx context.Context, reader *sdkmetric.ManualReader) (map[string]int64, error) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.WithoutCancel(ctx), &rm); err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}
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
	return out, nil
}
