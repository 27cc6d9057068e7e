// Package xrun 基于 errgroup 管理多个长期运行服务的并发启动与协调关闭。
//
// 任一服务返回错误、父 context 取消或收到系统信号时，所有服务都会收到取消信号。
//
//	err := xrun.RunWithOptions(ctx, []xrun.Option{xrun.WithName("xlockctl")},
//	    janitor.Run,
//	    watcher.Run,
//	    workload,
//	)
//	if errors.Is(err, xrun.ErrSignal) {
//	    // 正常的信号退出
//	}
package xrun
