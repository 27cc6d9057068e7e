package xlog

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrInvalidLevel 表示无法识别的日志级别字符串。
var ErrInvalidLevel = errors.New("xlog: unknown level")

// Level 日志级别，数值与 slog.Level 一致，可直接用于配置文件反序列化。
type Level slog.Level

const (
	LevelDebug = Level(slog.LevelDebug)
	LevelInfo  = Level(slog.LevelInfo)
	LevelWarn  = Level(slog.LevelWarn)
	LevelError = Level(slog.LevelError)
)

var levelNames = map[string]Level{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

// String 标准级别返回 DEBUG/INFO/WARN/ERROR，其余交给 slog（如 "INFO+2"）。
func (l Level) String() string {
	return slog.Level(l).String()
}

// MarshalText 实现 encoding.TextMarshaler。
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler，接受 ParseLevel 支持的写法。
func (l *Level) UnmarshalText(data []byte) error {
	parsed, err := ParseLevel(string(data))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel 解析 debug/info/warn/warning/error，忽略大小写和首尾空白。
// 无法识别时返回 LevelInfo 和包装 [ErrInvalidLevel] 的错误。
func ParseLevel(s string) (Level, error) {
	if level, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return level, nil
	}
	return LevelInfo, fmt.Errorf("%w %q", ErrInvalidLevel, s)
}
