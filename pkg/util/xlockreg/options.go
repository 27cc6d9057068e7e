package xlockreg

import (
	"fmt"

	"github.com/omeyang/xlockkit/pkg/observability/xlog"
)

const (
	defaultShardCount = 32
	maxShardCount     = 1 << 16 // 65536
	defaultIdlePasses = 1
)

// Option 定义 Registry 可选配置。
type Option func(*options)

type options struct {
	shardCount   int
	maxEntries   int
	idlePasses   int
	eagerReclaim bool
	logger       xlog.Logger
}

func defaultOptions() *options {
	return &options{
		shardCount: defaultShardCount,
		idlePasses: defaultIdlePasses,
		logger:     xlog.Discard(),
	}
}

// WithShardCount 设置分片数量，每个分片拥有独立的元锁。
// n 必须为正整数且为 2 的幂，上限 65536，否则 New 返回 [ErrInvalidShardCount]。默认 32。
func WithShardCount(n int) Option {
	return func(o *options) {
		o.shardCount = n
	}
}

// WithMaxEntries 设置最大条目数量。
// 达到上限时，需要新建条目的 Acquire 返回 [ErrMaxEntriesExceeded]；
// 已存在条目的 Acquire 不受影响。n <= 0 表示不限制（默认）。
func WithMaxEntries(n int) Option {
	if n < 0 {
		n = 0
	}
	return func(o *options) {
		o.maxEntries = n
	}
}

// WithIdlePasses 设置条目被回收前需要连续观察到空闲的 Reclaim 轮次。
// 默认 1：首次观察到无签出句柄且未持有即回收。
// 大于 1 时，期间任何一次签出都会把计数清零。
func WithIdlePasses(n int) Option {
	return func(o *options) {
		o.idlePasses = n
	}
}

// WithEagerReclaim 在条目最后一个句柄归还时立即删除该条目。
// Reclaim 仍会清扫遗留条目。
func WithEagerReclaim() Option {
	return func(o *options) {
		o.eagerReclaim = true
	}
}

// WithLogger 设置日志记录器，nil 时忽略。
func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func (o *options) validate() error {
	sc := o.shardCount
	if sc <= 0 || sc > maxShardCount || sc&(sc-1) != 0 {
		return fmt.Errorf("%w: must be a positive power of 2 (max %d), got %d",
			ErrInvalidShardCount, maxShardCount, sc)
	}
	if o.idlePasses < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidIdlePasses, o.idlePasses)
	}
	return nil
}
