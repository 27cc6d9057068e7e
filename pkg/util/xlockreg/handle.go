package xlockreg

import (
	"context"
	"sync/atomic"
)

// Entry 是绑定到某个 (category, key) 的互斥原语。
//
// ch 是 size=1 的 channel，用作互斥量：
//   - 发送成功 = 获取锁
//   - 发送阻塞 = 锁被占用（等待者按到达顺序排队）
//   - 接收 = 释放锁
//
// 条目创建后注册表不再修改它，持有状态完全由 ch 决定。
type Entry struct {
	ch chan struct{}
	id uint64
}

func newEntry(id uint64) *Entry {
	return &Entry{ch: make(chan struct{}, 1), id: id}
}

// ID 返回条目在所属 Registry 内的唯一编号，仅用于调试和日志。
// 判断是否为同一把锁请直接比较 *Entry 指针。
func (e *Entry) ID() uint64 {
	return e.id
}

func (e *Entry) held() bool {
	return len(e.ch) > 0
}

// Handle 是一次签出的条目引用，由 [Registry.Acquire] 返回。
//
// 加锁/解锁都通过句柄完成；句柄用完后必须 Release 归还。
// 锁不可重入：同一句柄重复 Lock 会永久阻塞。
type Handle struct {
	reg      *registry
	shard    *shard
	slot     *slot
	category string
	key      string
	entry    *Entry
	locked   atomic.Bool
	released atomic.Bool
}

// Category 返回句柄的 category。
func (h *Handle) Category() string { return h.category }

// Key 返回句柄的 key。Release 之后仍返回原值。
func (h *Handle) Key() string { return h.key }

// Entry 返回句柄指向的条目。
// 同一 (category, key) 在条目被回收前签出的句柄返回同一指针。
func (h *Handle) Entry() *Entry { return h.entry }

// Locked 报告该句柄当前是否持有锁。
func (h *Handle) Locked() bool { return h.locked.Load() }

// Lock 阻塞直到获得锁。
// 句柄已归还时返回 [ErrHandleReleased]。
func (h *Handle) Lock() error {
	if h.released.Load() {
		return ErrHandleReleased
	}
	h.entry.ch <- struct{}{}
	if !h.acquired() {
		return ErrHandleReleased
	}
	return nil
}

// LockContext 阻塞直到获得锁、ctx 结束或 Registry 关闭。
// ctx 结束时返回 ctx.Err()；Registry 关闭时返回 [ErrClosed]。
// 两者同时发生时返回哪一个不确定。ctx 不得为 nil，否则 panic。
func (h *Handle) LockContext(ctx context.Context) error {
	if ctx == nil {
		panic("xlockreg: nil Context")
	}
	if h.released.Load() {
		return ErrHandleReleased
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case h.entry.ch <- struct{}{}:
		if !h.acquired() {
			return ErrHandleReleased
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.reg.done:
		return ErrClosed
	}
}

// TryLock 非阻塞获取锁，锁被占用或句柄已归还时返回 false。
func (h *Handle) TryLock() bool {
	if h.released.Load() {
		return false
	}
	select {
	case h.entry.ch <- struct{}{}:
		return h.acquired()
	default:
		return false
	}
}

// acquired 在发送成功后登记持有状态。
// 等待期间句柄被 Release 时撤销这次获取并返回 false；
// 与 Release 之间只有一方能把 locked 从 true 置回 false，因此令牌恰好被取回一次。
func (h *Handle) acquired() bool {
	h.locked.Store(true)
	if !h.released.Load() {
		return true
	}
	if h.locked.CompareAndSwap(true, false) {
		<-h.entry.ch
	}
	return false
}

// Unlock 释放锁。
// 句柄未持有锁时返回 [ErrNotLocked]，已归还时返回 [ErrHandleReleased]。
func (h *Handle) Unlock() error {
	if h.released.Load() {
		return ErrHandleReleased
	}
	if !h.locked.CompareAndSwap(true, false) {
		return ErrNotLocked
	}
	<-h.entry.ch
	return nil
}

// Release 将句柄归还给 Registry，仍持有锁时先释放锁。
// 同一句柄上仍在等待的 Lock/LockContext 获得锁后会立即放弃，并返回 [ErrHandleReleased]。
// 幂等：第一次调用返回 nil，后续调用返回 [ErrHandleReleased]。
func (h *Handle) Release() error {
	if !h.released.CompareAndSwap(false, true) {
		return ErrHandleReleased
	}
	if h.locked.CompareAndSwap(true, false) {
		<-h.entry.ch
	}
	h.reg.checkIn(h)
	return nil
}
