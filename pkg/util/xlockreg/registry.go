package xlockreg

import (
	"io"
	"time"
)

// Registry 按 (category, key) 分配可复用的互斥锁条目。
// 所有方法都是并发安全的。
type Registry interface {
	io.Closer

	// Acquire 查找或创建 (category, key) 对应的条目，并签出一个句柄。
	//
	// 只要仍有未归还的句柄，同一 (category, key) 返回的句柄都指向同一个 [Entry]。
	// Acquire 不会阻塞在条目上，加锁通过返回的 [Handle] 完成；
	// 使用完毕必须调用 [Handle.Release] 归还，否则条目永远不会被回收。
	//
	// category 为空或只包含空白字符时返回 [ErrInvalidCategory]。
	// key 不做校验，空字符串和任意 unicode 内容均合法。
	// Registry 已关闭时返回 [ErrClosed]。
	Acquire(category, key string) (*Handle, error)

	// Reclaim 回收既没有签出句柄、也未被持有的条目，然后删除变空的 category 映射。
	// 与 Acquire 在同一把元锁下判断和删除，不会回收正被 Acquire 签出的条目。
	// 从不返回错误；无法确认空闲的条目一律保留。
	Reclaim() ReclaimReport

	// ReclaimUnused 与 Reclaim 相同，但不返回报告。
	ReclaimUnused()

	// Len 返回当前条目数量（单次原子读取）。
	Len() int

	// Keys 返回当前所有条目的标识快照，仅用于调试。
	// 不保证跨分片原子性。
	Keys() []LockKey

	// Stats 返回注册表统计快照。
	Stats() Stats
}

// LockKey 是条目的组合标识。
type LockKey struct {
	Category string
	Key      string
}

// String 返回 "category/key" 形式的字符串。
func (k LockKey) String() string {
	return k.Category + "/" + k.Key
}

// ReclaimReport 描述一次 Reclaim 的结果。
type ReclaimReport struct {
	// Scanned 扫描的条目数。
	Scanned int
	// Removed 被删除的条目数。
	Removed int
	// Retained 保留的条目数（仍在使用，或空闲轮次不足）。
	Retained int
	// RemovedCategories 被删除的空 category 映射数（按分片计）。
	RemovedCategories int
	// Duration 本次回收耗时。
	Duration time.Duration
}

// New 创建一个新的 Registry 实例。
// 配置无效时返回错误（如分片数不是 2 的幂）。
func New(opts ...Option) (Registry, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return newRegistry(o), nil
}
