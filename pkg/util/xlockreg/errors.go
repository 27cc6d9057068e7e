package xlockreg

import "errors"

var (
	// ErrInvalidCategory 表示 category 为空或只包含空白字符。
	// 属于编程错误，不应重试。
	ErrInvalidCategory = errors.New("xlockreg: invalid category")

	// ErrClosed 表示 Registry 已关闭。
	// Close 后调用 Acquire，或 LockContext 等待期间 Registry 被关闭时返回。
	ErrClosed = errors.New("xlockreg: closed")

	// ErrMaxEntriesExceeded 表示已达到最大条目数限制。
	ErrMaxEntriesExceeded = errors.New("xlockreg: max entries exceeded")

	// ErrNotLocked 表示句柄当前未持有锁。
	ErrNotLocked = errors.New("xlockreg: lock not held by handle")

	// ErrHandleReleased 表示句柄已归还。
	// Release 第二次及后续调用、归还后再加锁时返回。
	ErrHandleReleased = errors.New("xlockreg: handle released")

	// ErrInvalidShardCount 表示分片数量不是 [1, 65536] 内 2 的幂。
	ErrInvalidShardCount = errors.New("xlockreg: invalid shard count")

	// ErrInvalidIdlePasses 表示空闲轮次参数小于 1。
	ErrInvalidIdlePasses = errors.New("xlockreg: idle passes must be at least 1")

	// ErrNilFunc 表示传入的回调函数为 nil。
	ErrNilFunc = errors.New("xlockreg: nil func")

	// ErrNilReclaimer 表示创建 Janitor 时传入的 Reclaimer 为 nil。
	ErrNilReclaimer = errors.New("xlockreg: nil reclaimer")

	// ErrNilMeter 表示注册指标时传入的 meter 或 Registry 为 nil。
	ErrNilMeter = errors.New("xlockreg: nil meter or registry")

	// ErrInvalidSchedule 表示 Janitor 的 cron 表达式无法解析。
	ErrInvalidSchedule = errors.New("xlockreg: invalid schedule")
)
