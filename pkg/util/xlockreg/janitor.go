package xlockreg

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/omeyang/xlockkit/pkg/observability/xlog"
	"github.com/omeyang/xlockkit/pkg/observability/xmetrics"
)

// DefaultSchedule 是 Janitor 默认的回收周期。
const DefaultSchedule = "@every 1m"

// Reclaimer 是 Janitor 依赖的回收接口，[Registry] 满足该接口。
type Reclaimer interface {
	Reclaim() ReclaimReport
}

// JanitorOption 定义 Janitor 可选配置。
type JanitorOption func(*janitorOptions)

type janitorOptions struct {
	schedule  string
	logger    xlog.Logger
	observer  xmetrics.Observer
	onReclaim func(ReclaimReport)
}

func defaultJanitorOptions() *janitorOptions {
	return &janitorOptions{
		schedule: DefaultSchedule,
		logger:   xlog.Discard(),
		observer: xmetrics.NoopObserver{},
	}
}

// WithSchedule 设置回收周期，使用 robfig/cron 语法，
// 如 "@every 30s"、"*/5 * * * *"。空字符串时忽略。
func WithSchedule(spec string) JanitorOption {
	return func(o *janitorOptions) {
		if spec != "" {
			o.schedule = spec
		}
	}
}

// WithJanitorLogger 设置 Janitor 日志记录器，nil 时忽略。
func WithJanitorLogger(l xlog.Logger) JanitorOption {
	return func(o *janitorOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver 设置观测器，每轮回收记录一个 reclaim 跨度。nil 时忽略。
func WithObserver(obs xmetrics.Observer) JanitorOption {
	return func(o *janitorOptions) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithOnReclaim 设置每轮回收结束后的回调。
// 回调在调度 goroutine 中同步执行，应保持轻量。
func WithOnReclaim(fn func(ReclaimReport)) JanitorOption {
	return func(o *janitorOptions) {
		o.onReclaim = fn
	}
}

// Janitor 按 cron 周期调用 Reclaim，限制注册表的内存增长。
//
// 两轮回收不会重叠：上一轮未结束时到期的调度会被跳过。
// Janitor 只是建议性维护，停止或从不启动都不影响锁的正确性。
type Janitor struct {
	reclaimer Reclaimer
	cron      *cron.Cron
	opts      *janitorOptions

	mu      sync.Mutex
	running bool
}

// NewJanitor 创建 Janitor，但不启动调度。
// r 为 nil 返回 [ErrNilReclaimer]；cron 表达式无效返回 [ErrInvalidSchedule]。
func NewJanitor(r Reclaimer, opts ...JanitorOption) (*Janitor, error) {
	if r == nil {
		return nil, ErrNilReclaimer
	}
	o := defaultJanitorOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	j := &Janitor{
		reclaimer: r,
		opts:      o,
		cron: cron.New(
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
			cron.WithLogger(cron.DiscardLogger),
		),
	}
	if _, err := j.cron.AddFunc(o.schedule, func() { j.RunOnce() }); err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, o.schedule, err)
	}
	return j, nil
}

// Schedule 返回 Janitor 使用的 cron 表达式。
func (j *Janitor) Schedule() string {
	return j.opts.schedule
}

// RunOnce 立即执行一轮回收并返回结果，不受调度影响。
func (j *Janitor) RunOnce() ReclaimReport {
	ctx, span := xmetrics.Start(context.Background(), j.opts.observer, xmetrics.SpanOptions{
		Component: "xlockreg",
		Operation: "reclaim",
		Kind:      xmetrics.KindInternal,
	})

	rep := j.reclaimer.Reclaim()

	span.End(xmetrics.Result{Attrs: []xmetrics.Attr{
		xmetrics.Int("scanned", rep.Scanned),
		xmetrics.Int("removed", rep.Removed),
		xmetrics.Int("retained", rep.Retained),
	}})

	if rep.Removed > 0 {
		j.opts.logger.Info(ctx, "reclaimed unused lock entries",
			slog.Int("removed", rep.Removed),
			slog.Int("retained", rep.Retained),
			slog.Int("removed_categories", rep.RemovedCategories),
			slog.Duration("duration", rep.Duration),
		)
	}
	if j.opts.onReclaim != nil {
		j.opts.onReclaim(rep)
	}
	return rep
}

// Start 启动周期回收（非阻塞），重复调用无效果。
func (j *Janitor) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return
	}
	j.running = true
	j.cron.Start()
	j.opts.logger.Debug(context.Background(), "lock registry janitor started",
		slog.String("schedule", j.opts.schedule))
}

// Stop 停止调度，返回的 context 在正在执行的回收结束后 Done。
// 未启动时返回已 Done 的 context。
func (j *Janitor) Stop() context.Context {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	j.running = false
	j.opts.logger.Debug(context.Background(), "lock registry janitor stopping")
	return j.cron.Stop()
}

// Run 启动调度并阻塞到 ctx 结束，然后等待正在执行的回收完成。
// 可直接作为 xrun 服务使用。
func (j *Janitor) Run(ctx context.Context) error {
	j.Start()
	<-ctx.Done()
	<-j.Stop().Done()
	return nil
}
