package xlockreg

import (
	"sync"
	"sync/atomic"
)

// =============================================================================
// 进程级默认 Registry
//
// 定位：脚手架/小工具等简单场景的单一访问点。
// 服务端推荐显式构造并注入 Registry，测试应使用 New 创建独立实例。
// =============================================================================

var (
	defaultRegistry atomic.Pointer[Registry]
	defaultMu       sync.Mutex
)

// Default 返回进程级默认 Registry。
// 首次调用时以默认配置创建；可用 SetDefault 替换。
func Default() Registry {
	if r := defaultRegistry.Load(); r != nil {
		return *r
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if r := defaultRegistry.Load(); r != nil {
		return *r
	}
	// 默认配置必然通过校验。
	r, err := New()
	if err != nil {
		panic(err)
	}
	defaultRegistry.Store(&r)
	return r
}

// SetDefault 替换进程级默认 Registry，nil 时忽略。
// 旧实例不会被关闭，已签出的句柄继续有效。
func SetDefault(r Registry) {
	if r == nil {
		return
	}
	defaultRegistry.Store(&r)
}

// Acquire 在默认 Registry 上签出 (category, key) 的句柄。
func Acquire(category, key string) (*Handle, error) {
	return Default().Acquire(category, key)
}
