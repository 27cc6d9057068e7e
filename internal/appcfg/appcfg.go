// Package appcfg 定义 xlockctl 的配置结构、默认值与校验，
// 并负责把配置翻译成 xlockreg 选项。
package appcfg

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/omeyang/xlockkit/pkg/config/xconf"
	"github.com/omeyang/xlockkit/pkg/observability/xlog"
	"github.com/omeyang/xlockkit/pkg/util/xlockreg"
)

// ErrInvalidConfig 表示配置校验失败。
var ErrInvalidConfig = errors.New("appcfg: invalid config")

// 锁模式。
const (
	ModeLock = "lock"
	ModeTry  = "try"
)

// Config 是 xlockctl 的完整配置。
type Config struct {
	Registry RegistryConfig `koanf:"registry" json:"registry"`
	Janitor  JanitorConfig  `koanf:"janitor" json:"janitor"`
	Log      LogConfig      `koanf:"log" json:"log"`
	Stress   StressConfig   `koanf:"stress" json:"stress"`
}

// RegistryConfig 对应 xlockreg.New 的选项。
type RegistryConfig struct {
	ShardCount   int  `koanf:"shard_count" json:"shard_count"`
	MaxEntries   int  `koanf:"max_entries" json:"max_entries"`
	IdlePasses   int  `koanf:"idle_passes" json:"idle_passes"`
	EagerReclaim bool `koanf:"eager_reclaim" json:"eager_reclaim"`
}

// JanitorConfig 周期回收配置。
type JanitorConfig struct {
	Enabled  bool   `koanf:"enabled" json:"enabled"`
	Schedule string `koanf:"schedule" json:"schedule"`
}

// LogConfig 日志配置。File 为空时输出到 stderr。
type LogConfig struct {
	Level      string `koanf:"level" json:"level"`
	Format     string `koanf:"format" json:"format"`
	File       string `koanf:"file" json:"file,omitempty"`
	MaxSizeMB  int    `koanf:"max_size_mb" json:"max_size_mb,omitempty"`
	MaxBackups int    `koanf:"max_backups" json:"max_backups,omitempty"`
}

// StressConfig 压测负载配置。
type StressConfig struct {
	Workers    int           `koanf:"workers" json:"workers"`
	Categories int           `koanf:"categories" json:"categories"`
	Keys       int           `koanf:"keys" json:"keys"`
	Iterations int           `koanf:"iterations" json:"iterations"`
	Duration   time.Duration `koanf:"duration" json:"duration"`
	Mode       string        `koanf:"mode" json:"mode"`
	// TryAttempts 是 try 模式下每次加锁的最大尝试次数。
	TryAttempts uint          `koanf:"try_attempts" json:"try_attempts"`
	TryDelay    time.Duration `koanf:"try_delay" json:"try_delay"`
}

// Default 返回默认配置。
func Default() Config {
	return Config{
		Registry: RegistryConfig{
			ShardCount: 32,
			IdlePasses: 1,
		},
		Janitor: JanitorConfig{
			Enabled:  true,
			Schedule: xlockreg.DefaultSchedule,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Stress: StressConfig{
			Workers:     8,
			Categories:  2,
			Keys:        16,
			Iterations:  1000,
			Mode:        ModeLock,
			TryAttempts: 50,
			TryDelay:    time.Millisecond,
		},
	}
}

// Load 在默认配置之上叠加配置文件内容。path 为空时返回默认配置。
// 返回的 xconf.Config 供热重载使用，path 为空时为 nil。
func Load(path string) (Config, xconf.Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil, nil
	}
	src, err := xconf.New(path)
	if err != nil {
		return cfg, nil, err
	}
	if err := src.Unmarshal("", &cfg); err != nil {
		return cfg, nil, err
	}
	return cfg, src, nil
}

// Validate 校验配置，返回包装 ErrInvalidConfig 的错误。
func (c Config) Validate() error {
	var errs []error

	if r, err := xlockreg.New(c.RegistryOptions()...); err != nil {
		errs = append(errs, fmt.Errorf("registry: %w", err))
	} else {
		_ = r.Close()
	}
	if c.Janitor.Enabled && strings.TrimSpace(c.Janitor.Schedule) == "" {
		errs = append(errs, errors.New("janitor.schedule: must not be empty"))
	}
	if _, err := xlog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unsupported %q", c.Log.Format))
	}

	s := c.Stress
	if s.Workers < 1 {
		errs = append(errs, fmt.Errorf("stress.workers: must be >= 1, got %d", s.Workers))
	}
	if s.Categories < 1 {
		errs = append(errs, fmt.Errorf("stress.categories: must be >= 1, got %d", s.Categories))
	}
	if s.Keys < 1 {
		errs = append(errs, fmt.Errorf("stress.keys: must be >= 1, got %d", s.Keys))
	}
	if s.Iterations < 0 || s.Duration < 0 {
		errs = append(errs, errors.New("stress.iterations and stress.duration must not be negative"))
	}
	if s.Iterations == 0 && s.Duration == 0 {
		errs = append(errs, errors.New("stress: one of iterations or duration must be set"))
	}
	switch s.Mode {
	case ModeLock:
	case ModeTry:
		if s.TryAttempts < 1 {
			errs = append(errs, errors.New("stress.try_attempts: must be >= 1"))
		}
	default:
		errs = append(errs, fmt.Errorf("stress.mode: unsupported %q", s.Mode))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// RegistryOptions 把 registry 段翻译为 xlockreg 选项。
func (c Config) RegistryOptions() []xlockreg.Option {
	opts := []xlockreg.Option{
		xlockreg.WithShardCount(c.Registry.ShardCount),
		xlockreg.WithMaxEntries(c.Registry.MaxEntries),
		xlockreg.WithIdlePasses(c.Registry.IdlePasses),
	}
	if c.Registry.EagerReclaim {
		opts = append(opts, xlockreg.WithEagerReclaim())
	}
	return opts
}

// LogLevel 返回解析后的日志级别，无法解析时返回 info。
func (c Config) LogLevel() xlog.Level {
	level, err := xlog.ParseLevel(c.Log.Level)
	if err != nil {
		return xlog.LevelInfo
	}
	return level
}
