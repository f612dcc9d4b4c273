package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTextFormatter(t *testing.T) {
	f := NewTextFormatter()
	f.ColorOutput = false
	entry := &LogEntry{
		Time:     time.Now(),
		Level:    LogLevelInfo,
		Category: "Test",
		Message:  "Hello",
		Fields:   []Field{{Key: "key", Value: "val"}},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)

	str := string(out)
	assert.Contains(t, str, "INFO")
	assert.Contains(t, str, "[Test]")
	assert.Contains(t, str, "Hello")
	assert.Contains(t, str, "{key=val}")
	assert.True(t, strings.HasSuffix(str, "\n"))
}

func TestJsonFormatter(t *testing.T) {
	f := NewJsonFormatter()
	entry := &LogEntry{
		Time:     time.Now(),
		Level:    LogLevelWarn,
		Category: "Test",
		Message:  "Hello",
		Fields:   []Field{{Key: "key", Value: "val"}, {Key: "error", Value: errors.New("boom")}},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)

	var data map[string]any
	require.NoError(t, json.Unmarshal(out, &data))
	assert.Equal(t, "WARN", data["level"])
	assert.Equal(t, "Test", data["category"])
	fields, ok := data["fields"].(map[string]any)
	require.True(t, ok, "Expected fields map")
	assert.Equal(t, "val", fields["key"])
	assert.Equal(t, "boom", fields["error"])
}

func TestAsyncWriter(t *testing.T) {
	writer := &syncWriter{}
	asyncWriter := NewAsyncWriter(writer, NewJsonFormatter(), 10)

	entry := &LogEntry{Time: time.Now(), Level: LogLevelInfo, Message: "Async"}
	for i := 0; i < 5; i++ {
		asyncWriter.WriteLog(entry)
	}

	// 关闭以刷新
	require.NoError(t, asyncWriter.Close())
	require.NoError(t, asyncWriter.Close())

	// 关闭之后写入被丢弃，不会 panic
	asyncWriter.WriteLog(entry)

	lines := strings.Split(strings.TrimSpace(writer.String()), "\n")
	assert.Len(t, lines, 5)
}

func TestConsoleProviderLevelAndFields(t *testing.T) {
	writer := &syncWriter{}
	factory := NewLoggingBuilder().
		SetMinimumLevel(LogLevelDebug).
		AddConsole(ConsoleLoggerOptions{Output: writer}).
		Build()

	logger := factory.CreateLogger("app").WithFields(Field{Key: "request", Value: 1})
	child := logger.WithFields(Field{Key: "user", Value: "alice"})
	other := logger.WithFields(Field{Key: "user", Value: "bob"})

	logger.Trace("hidden")
	child.Debug("from child")
	other.Info("from other")

	out := writer.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "DEBUG [app] from child {request=1, user=alice}")
	assert.Contains(t, out, "INFO [app] from other {request=1, user=bob}")
}

func TestConsoleProviderAsyncFlushOnClose(t *testing.T) {
	writer := &syncWriter{}
	factory := NewLoggingBuilder().
		AddConsole(ConsoleLoggerOptions{Output: writer, Async: true, BufferSize: 4}).
		Build()

	logger := factory.CreateLogger("async")
	for i := 0; i < 20; i++ {
		logger.Info("line")
	}
	require.NoError(t, factory.(io.Closer).Close())
	assert.Equal(t, 20, strings.Count(writer.String(), "line"))
}

func TestFileProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	factory := NewLoggingBuilder().AddFile(path, FileLoggerOptions{JSON: true}).Build()

	factory.CreateLogger("file").Error("written", Field{Key: "n", Value: 3})
	require.NoError(t, factory.(io.Closer).Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "written", entry["msg"])
	assert.Equal(t, "file", entry["category"])
}

func TestZapProvider(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	provider, err := NewZapProvider(zap.New(core))
	require.NoError(t, err)

	factory := NewLoggingBuilder().SetMinimumLevel(LogLevelDebug).AddProvider(provider).Build()
	logger := factory.CreateLogger("zap").WithFields(Field{Key: "scope", Value: "s1"})
	logger.Debug("disposed", Field{Key: "error", Value: errors.New("close failed")})
	logger.Trace("trace maps to debug but is filtered")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "disposed", entries[0].Message)
	assert.Equal(t, "zap", entries[0].LoggerName)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "s1", ctx["scope"])
	assert.Equal(t, "close failed", ctx["error"])
}

func TestNop(t *testing.T) {
	l := Nop().WithCategory("x").WithFields(Field{Key: "a", Value: 1})
	assert.NotPanics(t, func() {
		l.Info("ignored")
		l.Fatal("ignored too")
	})
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("warning")
	require.NoError(t, err)
	assert.Equal(t, LogLevelWarn, lvl)

	lvl, err = ParseLevel(" Debug ")
	require.NoError(t, err)
	assert.Equal(t, LogLevelDebug, lvl)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

type syncWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *syncWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *syncWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func BenchmarkAsyncLogging(b *testing.B) {
	// 使用 io.Discard 避免 I/O 瓶颈，测试 AsyncWriter 自身的开销
	asyncWriter := NewAsyncWriter(io.Discard, NewTextFormatter(), 10000)
	defer asyncWriter.Close()

	entry := &LogEntry{
		Time:    time.Now(),
		Level:   LogLevelInfo,
		Message: "Benchmark",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		asyncWriter.WriteLog(entry)
	}
}
