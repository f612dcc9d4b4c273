package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// entrySink 接收格式化前的日志条目。
type entrySink interface {
	WriteLog(entry *LogEntry)
}

// syncSink 同步格式化并写入。
type syncSink struct {
	mu        sync.Mutex
	writer    io.Writer
	formatter Formatter
}

func (s *syncSink) WriteLog(entry *LogEntry) {
	data, err := s.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: format error: %v\n", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer.Write(data)
	if len(data) > 0 && data[len(data)-1] != '\n' {
		s.writer.Write([]byte{'\n'})
	}
}

// streamProvider 把日志写到一个 io.Writer，可选异步。
type streamProvider struct {
	sink         entrySink
	async        *AsyncWriter
	minimumLevel atomic.Int32
}

func newStreamProvider(w io.Writer, formatter Formatter, async bool, bufferSize int) *streamProvider {
	p := &streamProvider{}
	if async {
		if bufferSize <= 0 {
			bufferSize = 1024
		}
		p.async = NewAsyncWriter(w, formatter, bufferSize)
		p.sink = p.async
	} else {
		p.sink = &syncSink{writer: w, formatter: formatter}
	}
	p.minimumLevel.Store(int32(LogLevelInfo))
	return p
}

func (p *streamProvider) CreateLogger(category string) Logger {
	return &streamLogger{provider: p, category: category}
}

func (p *streamProvider) SetMinimumLevel(level LogLevel) {
	p.minimumLevel.Store(int32(level))
}

func (p *streamProvider) enabled(level LogLevel) bool {
	return level >= LogLevel(p.minimumLevel.Load())
}

// Close 刷新异步队列
func (p *streamProvider) Close() error {
	if p.async != nil {
		return p.async.Close()
	}
	return nil
}

// streamLogger 读取 provider 当前的级别，修改级别对已创建的 logger 同样生效。
type streamLogger struct {
	provider *streamProvider
	category string
	fields   []Field
}

func (l *streamLogger) Trace(msg string, fields ...Field) { l.Log(LogLevelTrace, msg, fields...) }
func (l *streamLogger) Debug(msg string, fields ...Field) { l.Log(LogLevelDebug, msg, fields...) }
func (l *streamLogger) Info(msg string, fields ...Field)  { l.Log(LogLevelInfo, msg, fields...) }
func (l *streamLogger) Warn(msg string, fields ...Field)  { l.Log(LogLevelWarn, msg, fields...) }
func (l *streamLogger) Error(msg string, fields ...Field) { l.Log(LogLevelError, msg, fields...) }

func (l *streamLogger) Fatal(msg string, fields ...Field) {
	l.Log(LogLevelFatal, msg, fields...)
	_ = l.provider.Close()
	os.Exit(1)
}

func (l *streamLogger) Log(level LogLevel, msg string, fields ...Field) {
	if !l.provider.enabled(level) {
		return
	}
	l.provider.sink.WriteLog(&LogEntry{
		Time:     time.Now(),
		Level:    level,
		Category: l.category,
		Message:  msg,
		Fields:   mergeFields(l.fields, fields),
	})
}

func (l *streamLogger) WithFields(fields ...Field) Logger {
	return &streamLogger{provider: l.provider, category: l.category, fields: mergeFields(l.fields, fields)}
}

func (l *streamLogger) WithCategory(category string) Logger {
	return &streamLogger{provider: l.provider, category: category, fields: l.fields}
}

// ConsoleLoggerOptions 控制台日志选项
type ConsoleLoggerOptions struct {
	IncludeTimestamp bool
	TimestampFormat  string
	ColorOutput      bool
	// JSON 为 true 时输出 JSON 行
	JSON bool
	// Formatter 不为空时优先使用
	Formatter Formatter
	Output    io.Writer
	// Async 通过 AsyncWriter 后台写入
	Async      bool
	BufferSize int
}

func (o ConsoleLoggerOptions) formatter() Formatter {
	if o.Formatter != nil {
		return o.Formatter
	}
	if o.JSON {
		return NewJsonFormatter()
	}
	f := NewTextFormatter()
	f.IncludeTimestamp = o.IncludeTimestamp
	if o.TimestampFormat != "" {
		f.TimestampFormat = o.TimestampFormat
	}
	f.ColorOutput = o.ColorOutput
	return f
}

// ConsoleLoggerProvider 控制台日志提供者
type ConsoleLoggerProvider struct {
	*streamProvider
}

func NewConsoleLoggerProvider(options ConsoleLoggerOptions) *ConsoleLoggerProvider {
	if options.Output == nil {
		options.Output = os.Stdout
	}
	return &ConsoleLoggerProvider{
		streamProvider: newStreamProvider(options.Output, options.formatter(), options.Async, options.BufferSize),
	}
}

// FileLoggerOptions 文件日志选项
type FileLoggerOptions struct {
	Path       string
	JSON       bool
	Async      bool
	BufferSize int
}

// FileLoggerProvider 文件日志提供者，以追加方式写入。
type FileLoggerProvider struct {
	*streamProvider
	file *os.File
}

func NewFileLoggerProvider(options FileLoggerOptions) (*FileLoggerProvider, error) {
	file, err := os.OpenFile(options.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file %s: %w", options.Path, err)
	}

	var formatter Formatter = NewTextFormatter()
	if options.JSON {
		formatter = NewJsonFormatter()
	}
	return &FileLoggerProvider{
		streamProvider: newStreamProvider(file, formatter, options.Async, options.BufferSize),
		file:           file,
	}, nil
}

// Close 刷新队列并关闭文件
func (p *FileLoggerProvider) Close() error {
	err := p.streamProvider.Close()
	if cerr := p.file.Close(); err == nil {
		err = cerr
	}
	return err
}
