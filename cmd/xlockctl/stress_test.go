package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/omeyang/xlockkit/internal/appcfg"
	"github.com/omeyang/xlockkit/pkg/config/xconf"
	"github.com/omeyang/xlockkit/pkg/observability/xlog"
	"github.com/omeyang/xlockkit/pkg/util/xlockreg"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger(t *testing.T, buf *bytes.Buffer) xlog.LoggerWithLevel {
	t.Helper()
	logger, cleanup, err := xlog.New().SetOutput(buf).SetLevel(xlog.LevelDebug).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = cleanup() })
	return logger
}

func smallConfig() appcfg.Config {
	cfg := appcfg.Default()
	cfg.Stress.Workers = 8
	cfg.Stress.Categories = 2
	cfg.Stress.Keys = 4
	cfg.Stress.Iterations = 200
	cfg.Janitor.Schedule = "@every 1s"
	return cfg
}

func TestStressRunner_LockMode(t *testing.T) {
	var logs bytes.Buffer
	r := &stressRunner{cfg: smallConfig(), logger: testLogger(t, &logs)}

	rep, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, rep.OK(), "report: %+v", rep)
	assert.False(t, rep.Interrupted)
	assert.Equal(t, uint64(8*200), rep.Operations)
	assert.Zero(t, rep.Violations)
	assert.Zero(t, rep.IdentityMismatches)
	assert.Zero(t, rep.LostUpdates)
	assert.Equal(t, 8, rep.Keys)
	assert.Zero(t, rep.Registry.Outstanding)
	assert.Zero(t, rep.Registry.Held)
	// 每次操作签出两个句柄
	assert.Equal(t, uint64(2*8*200), rep.Registry.Acquires)
	assert.Equal(t, int64(rep.Registry.Acquires), rep.Metrics[xlockreg.MetricAcquires])
	assert.Contains(t, logs.String(), "stress finished")
}

func TestStressRunner_TryMode(t *testing.T) {
	cfg := smallConfig()
	cfg.Stress.Mode = appcfg.ModeTry
	cfg.Stress.Keys = 1
	cfg.Stress.Categories = 1
	cfg.Stress.TryAttempts = 3
	cfg.Stress.TryDelay = time.Microsecond

	r := &stressRunner{cfg: cfg, logger: testLogger(t, &bytes.Buffer{})}
	rep, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, rep.OK(), "report: %+v", rep)
	assert.Equal(t, uint64(8*200), rep.Operations+rep.TryExhausted)
}

func TestStressRunner_EagerAndMaxEntries(t *testing.T) {
	cfg := smallConfig()
	cfg.Registry.EagerReclaim = true
	cfg.Registry.MaxEntries = 2
	cfg.Janitor.Enabled = false

	r := &stressRunner{cfg: cfg, logger: testLogger(t, &bytes.Buffer{})}
	rep, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, rep.OK(), "report: %+v", rep)
	assert.Equal(t, uint64(8*200), rep.Operations+rep.Rejected)
	assert.Zero(t, rep.JanitorPasses)
	assert.Zero(t, rep.Registry.Entries, "eager reclaim leaves no idle entries")
}

func TestStressRunner_Duration(t *testing.T) {
	cfg := smallConfig()
	cfg.Stress.Iterations = 0
	cfg.Stress.Duration = 2500 * time.Millisecond

	r := &stressRunner{cfg: cfg, logger: testLogger(t, &bytes.Buffer{})}
	rep, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, rep.OK(), "report: %+v", rep)
	assert.False(t, rep.Interrupted)
	assert.Positive(t, rep.Operations)
	assert.GreaterOrEqual(t, rep.Elapsed, 2500*time.Millisecond)
	assert.GreaterOrEqual(t, rep.JanitorPasses, uint64(1))
}

func TestStressRunner_ParentCanceled(t *testing.T) {
	cfg := smallConfig()
	cfg.Stress.Iterations = 0
	cfg.Stress.Duration = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	r := &stressRunner{cfg: cfg, logger: testLogger(t, &bytes.Buffer{})}
	rep, err := r.Run(ctx)
	require.NoError(t, err)
	assert.True(t, rep.Interrupted)
	assert.True(t, rep.OK())
}

func TestStressRunner_InvalidSchedule(t *testing.T) {
	cfg := smallConfig()
	cfg.Janitor.Schedule = "every now and then"

	r := &stressRunner{cfg: cfg, logger: testLogger(t, &bytes.Buffer{})}
	_, err := r.Run(context.Background())
	assert.ErrorIs(t, err, xlockreg.ErrInvalidSchedule)
}

func TestStressRunner_OnConfigChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xlockctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\n"), 0o600))
	src, err := xconf.New(path)
	require.NoError(t, err)

	var logs bytes.Buffer
	logger := testLogger(t, &logs)
	r := &stressRunner{cfg: smallConfig(), logger: logger}

	r.onConfigChange(src, nil)
	assert.Equal(t, xlog.LevelError, logger.GetLevel())

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: nonsense\n"), 0o600))
	require.NoError(t, src.Reload())
	r.onConfigChange(src, nil)
	assert.Equal(t, xlog.LevelError, logger.GetLevel(), "invalid level is ignored")
}

func TestStressRunner_Watch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xlockctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0o600))
	src, err := xconf.New(path)
	require.NoError(t, err)

	cfg := smallConfig()
	cfg.Stress.Iterations = 0
	cfg.Stress.Duration = 2 * time.Second

	logger := testLogger(t, &bytes.Buffer{})
	r := &stressRunner{cfg: cfg, logger: logger, watch: src}

	done := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background())
		done <- err
	}()

	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))
	require.Eventually(t, func() bool {
		return logger.GetLevel() == xlog.LevelDebug
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, <-done)
}

func TestStressReport_WriteText(t *testing.T) {
	rep := &stressReport{
		Mode:       appcfg.ModeLock,
		Workers:    2,
		Keys:       3,
		Elapsed:    time.Second,
		Operations: 10,
		Metrics:    map[string]int64{"b": 2, "a": 1},
	}
	var buf bytes.Buffer
	require.NoError(t, rep.WriteText(&buf))
	out := buf.String()
	assert.Contains(t, out, "status:              OK")
	assert.Contains(t, out, "operations:          10 (10/s)")
	assert.Less(t, strings.Index(out, "  a "), strings.Index(out, "  b "))

	rep.Violations = 1
	rep.Interrupted = true
	buf.Reset()
	require.NoError(t, rep.WriteText(&buf))
	assert.Contains(t, buf.String(), "FAILED (interrupted)")
	assert.False(t, rep.OK())
}

// failSecondAcquire 让同一 key 的第二次签出失败，模拟临界区内的再次签出出错。
type failSecondAcquire struct {
	xlockreg.Registry
	calls int
}

func (f *failSecondAcquire) Acquire(category, key string) (*xlockreg.Handle, error) {
	f.calls++
	if f.calls == 2 {
		return nil, xlockreg.ErrClosed
	}
	return f.Registry.Acquire(category, key)
}

func TestStressRunner_OnceFailureKeepsCountsConsistent(t *testing.T) {
	reg, err := xlockreg.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	r := &stressRunner{cfg: smallConfig(), logger: testLogger(t, &bytes.Buffer{})}
	st := &keyState{category: "agent", key: "k"}
	var c stressCounters

	err = r.once(context.Background(), &failSecondAcquire{Registry: reg}, st, &c)
	require.ErrorIs(t, err, xlockreg.ErrClosed)

	assert.Zero(t, st.count)
	assert.Zero(t, c.ops.Load())
	assert.Zero(t, st.inside.Load())
	assert.Zero(t, reg.Stats().Held)
	assert.Zero(t, reg.Stats().Outstanding)

	// 下一次成功操作后两边计数一致
	require.NoError(t, r.once(context.Background(), reg, st, &c))
	assert.Equal(t, uint64(1), st.count)
	assert.Equal(t, uint64(1), c.ops.Load())
}
