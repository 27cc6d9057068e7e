// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展，支持动态级别和文件轮转
//   - xmetrics: 统一可观测性接口（跨度 + 指标），提供 OpenTelemetry 实现
//
// 设计原则：
//   - 遵循 OpenTelemetry 语义规范
//   - 日志方法统一以 context 为第一个参数
//   - 支持动态级别控制
package observability
