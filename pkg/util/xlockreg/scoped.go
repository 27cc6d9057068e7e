package xlockreg

import "context"

// WithLock 获取 (category, key) 的锁后执行 fn，并保证在正常返回、
// 错误返回和 panic 时都释放锁并归还句柄。
//
// 等待锁期间 ctx 结束返回 ctx.Err()，fn 不会被执行。
// fn 的返回值原样返回。ctx 不得为 nil。
//
//	err := xlockreg.WithLock(ctx, reg, "agent", agentID, func(ctx context.Context) error {
//	    return repo.UpdateAgent(ctx, agentID, patch)
//	})
func WithLock(ctx context.Context, r Registry, category, key string, fn func(ctx context.Context) error) error {
	if fn == nil {
		return ErrNilFunc
	}
	h, err := r.Acquire(category, key)
	if err != nil {
		return err
	}
	defer func() { _ = h.Release() }()

	if err := h.LockContext(ctx); err != nil {
		return err
	}
	return fn(ctx)
}

// TryWithLock 非阻塞地尝试获取锁并执行 fn。
// 锁被占用时返回 (false, nil)，fn 不会被执行；
// 获取成功时返回 (true, fn 的返回值)。
func TryWithLock(r Registry, category, key string, fn func() error) (bool, error) {
	if fn == nil {
		return false, ErrNilFunc
	}
	h, err := r.Acquire(category, key)
	if err != nil {
		return false, err
	}
	defer func() { _ = h.Release() }()

	if !h.TryLock() {
		return false, nil
	}
	return true, fn()
}
