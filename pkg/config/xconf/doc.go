// Package xconf 提供基于 koanf 的最小化配置加载器。
//
// 负责文件/字节数据的加载、反序列化和热重载；必选字段校验、默认值注入
// 由上层按需实现（见 internal/appcfg）。
//
// # 支持的格式
//
//   - YAML（默认，推荐）：.yaml, .yml
//   - JSON：.json
//
// # 并发安全
//
// Reload 通过互斥锁串行化，解析成功后原子替换 koanf 实例；
// 解析失败时保留旧配置。Client 返回的指针在 Reload 后仍然有效，但指向旧快照。
//
// # 配置监视
//
// [Watch] 基于 fsnotify 监视配置文件所在目录，内置防抖，兼容编辑器的
// rename 原子写入。Watcher.Run 阻塞到 ctx 结束，可直接作为 xrun 服务运行。
package xconf
