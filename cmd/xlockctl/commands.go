package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xlockkit/internal/appcfg"
	"github.com/omeyang/xlockkit/pkg/config/xconf"
	"github.com/omeyang/xlockkit/pkg/observability/xlog"
)

// exitError 表示需要非零退出码但已完成输出的场景。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// usageError 表示参数或配置错误，对应退出码 2。
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// isCLIUsageError 判断是否为 urfave/cli 产生的参数解析错误。
func isCLIUsageError(err error) bool {
	msg := err.Error()
	for _, prefix := range []string{
		"flag provided but not defined",
		"invalid value",
		"No help topic for",
		"flag needs an argument",
	} {
		if strings.Contains(msg, prefix) {
			return true
		}
	}
	return false
}

func createCommands() []*cli.Command {
	return []*cli.Command{
		createStressCommand(),
		createConfigCommand(),
	}
}

func createStressCommand() *cli.Command {
	return &cli.Command{
		Name:  "stress",
		Usage: "并发压测锁注册表，校验互斥性与条目同一性",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "并发 worker 数"},
			&cli.IntFlag{Name: "categories", Usage: "category 数量"},
			&cli.IntFlag{Name: "keys", Aliases: []string{"k"}, Usage: "每个 category 的 key 数量"},
			&cli.IntFlag{Name: "iterations", Aliases: []string{"n"}, Usage: "每个 worker 的迭代次数（0 表示只受 --duration 限制）"},
			&cli.DurationFlag{Name: "duration", Aliases: []string{"d"}, Usage: "压测时长（0 表示只受 --iterations 限制）"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Usage: "加锁方式: lock（阻塞）或 try（TryLock + 重试）"},
			&cli.StringFlag{Name: "schedule", Usage: "Janitor 回收周期（cron 语法）"},
			&cli.BoolFlag{Name: "watch", Usage: "监视配置文件并热更新日志级别"},
			&cli.BoolFlag{Name: "json", Usage: "以 JSON 输出报告"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, src, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Bool("watch") && src == nil {
				return &usageError{err: errors.New("--watch requires --config")}
			}

			logger, cleanup, err := buildLogger(cfg.Log, cmd.Root().ErrWriter)
			if err != nil {
				return &usageError{err: err}
			}
			defer func() { _ = cleanup() }()

			runner := &stressRunner{
				cfg:     cfg,
				logger:  logger,
				signals: true,
			}
			if cmd.Bool("watch") {
				runner.watch = src
			}

			rep, err := runner.Run(ctx)
			if err != nil {
				return err
			}
			out := cmd.Root().Writer
			if cmd.Bool("json") {
				err = writeJSON(out, rep)
			} else {
				err = rep.WriteText(out)
			}
			if err != nil {
				return err
			}
			if !rep.OK() {
				return &exitError{code: 1}
			}
			return nil
		},
	}
}

func createConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "加载、校验并打印生效配置",
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return writeJSON(cmd.Root().Writer, cfg)
		},
	}
}

// loadConfig 加载配置文件，再用命令行显式设置的参数覆盖，最后校验。
func loadConfig(cmd *cli.Command) (appcfg.Config, xconf.Config, error) {
	cfg, src, err := appcfg.Load(cmd.String("config"))
	if err != nil {
		return cfg, nil, &usageError{err: err}
	}

	if cmd.IsSet("workers") {
		cfg.Stress.Workers = cmd.Int("workers")
	}
	if cmd.IsSet("categories") {
		cfg.Stress.Categories = cmd.Int("categories")
	}
	if cmd.IsSet("keys") {
		cfg.Stress.Keys = cmd.Int("keys")
	}
	if cmd.IsSet("iterations") {
		cfg.Stress.Iterations = cmd.Int("iterations")
	}
	if cmd.IsSet("duration") {
		cfg.Stress.Duration = cmd.Duration("duration")
	}
	if cmd.IsSet("mode") {
		cfg.Stress.Mode = cmd.String("mode")
	}
	if cmd.IsSet("schedule") {
		cfg.Janitor.Schedule = cmd.String("schedule")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, nil, &usageError{err: err}
	}
	return cfg, src, nil
}

// buildLogger 根据 log 段构建日志记录器。配置了文件时按大小轮转写入文件。
func buildLogger(c appcfg.LogConfig, stderr io.Writer) (xlog.LoggerWithLevel, func() error, error) {
	if stderr == nil {
		stderr = os.Stderr
	}
	b := xlog.New().
		SetOutput(stderr).
		SetLevelString(c.Level).
		SetFormat(c.Format).
		SetAttrs(slog.String("app", "xlockctl"))
	if c.File != "" {
		var opts []xlog.RotationOption
		if c.MaxSizeMB > 0 {
			opts = append(opts, xlog.WithMaxSizeMB(c.MaxSizeMB))
		}
		if c.MaxBackups > 0 {
			opts = append(opts, xlog.WithMaxBackups(c.MaxBackups))
		}
		b = b.SetRotation(c.File, opts...)
	}
	return b.Build()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
