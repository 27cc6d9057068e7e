// Package xlog 基于 log/slog 提供 context 优先的结构化日志。
//
// # 设计理念
//
//   - 方法签名强制传入 context.Context，只接受 slog.Attr
//   - 动态级别：Build 返回的 Logger 同时实现 Leveler，运行时可调整级别
//   - 输出：text/json 两种格式，可选 lumberjack 文件轮转
//   - 生命周期：Build 返回 cleanup 函数，负责关闭轮转文件
//
// # 使用示例
//
//	logger, cleanup, err := xlog.New().
//		SetLevelString("debug").
//		SetFormat("json").
//		SetRotation("/var/log/app.log", xlog.WithMaxSizeMB(100)).
//		Build()
//	if err != nil {
//		return err
//	}
//	defer cleanup()
//
//	logger.Info(ctx, "lock acquired", slog.String("category", "agent"))
//
// 库代码默认使用 [Discard]，由调用方注入真正的 Logger。
package xlog
