// Package xlockreg 提供按 (category, key) 组合标识分配的进程内互斥锁注册表。
//
// 同一 (category, key) 在仍有调用方使用时，Acquire 总是返回指向同一个
// [Entry] 的 [Handle]（指针同一性），从而跨独立调用点实现互斥；
// 不再使用的条目由 [Registry.Reclaim] 回收，避免注册表随进程生命周期无限增长。
//
// # 回收策略
//
//	策略                 触发                         适用
//	───────────────────────────────────────────────────────────────
//	Reclaim（默认）       调用方或 Janitor 周期调用       key 空间大、复用频繁
//	WithIdlePasses(n)    连续 n 轮观察到空闲才删除        短暂空闲后很快复用的 key
//	WithEagerReclaim     最后一个句柄归还时立即删除       key 基本不复用
//
// # 签出/归还协议
//
// Acquire 只负责查找或创建条目并签出一个句柄，不会阻塞在条目本身上；
// 加锁通过句柄完成。句柄在 Release 之前一直计入条目的引用计数，
// 引用计数大于零或锁被持有的条目永远不会被回收：
//
//	h, err := reg.Acquire("agent", agentID)
//	if err != nil {
//	    return err
//	}
//	defer h.Release()
//	if err := h.LockContext(ctx); err != nil {
//	    return err
//	}
//	// 临界区
//
// 更常见的写法是 [WithLock]，它保证在正常返回、错误返回和 panic 时都会释放。
//
// # 元锁
//
// 注册表内部按 xxhash(category, key) 分片，每个分片一把元锁，
// 只在 O(1) 的查找/插入/回收扫描期间持有，从不在调用方临界区内持有。
// 不同 key 之间只在这段簿记窗口内可能竞争。
//
// # 使用约束
//
//   - 锁不可重入，与 sync.Mutex 一致
//   - 不同 key 之间没有顺序保证；同时持有多个 key 的调用方需自行保证加锁顺序一致
//   - 注册表不提供超时参数，超时/取消通过 LockContext 的 ctx 表达
//   - 仅限进程内，不是分布式锁
package xlockreg
