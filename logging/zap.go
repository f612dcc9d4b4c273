package logging

import (
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapProvider 把日志桥接到 zap。Trace 映射为 zap 的 Debug。
type ZapProvider struct {
	base         *zap.Logger
	minimumLevel atomic.Int32
}

// NewZapProvider 使用已有的 zap.Logger，nil 时使用 zap.NewProduction。
func NewZapProvider(base *zap.Logger) (*ZapProvider, error) {
	if base == nil {
		var err error
		base, err = zap.NewProduction()
		if err != nil {
			return nil, err
		}
	}
	p := &ZapProvider{base: base}
	p.minimumLevel.Store(int32(LogLevelInfo))
	return p, nil
}

func (p *ZapProvider) CreateLogger(category string) Logger {
	return &zapLogger{provider: p, logger: p.base.Named(category)}
}

func (p *ZapProvider) SetMinimumLevel(level LogLevel) {
	p.minimumLevel.Store(int32(level))
}

// Close 刷新 zap 的缓冲
func (p *ZapProvider) Close() error {
	return p.base.Sync()
}

type zapLogger struct {
	provider *ZapProvider
	logger   *zap.Logger
}

func (l *zapLogger) Trace(msg string, fields ...Field) { l.Log(LogLevelTrace, msg, fields...) }
func (l *zapLogger) Debug(msg string, fields ...Field) { l.Log(LogLevelDebug, msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.Log(LogLevelInfo, msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.Log(LogLevelWarn, msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.Log(LogLevelError, msg, fields...) }
func (l *zapLogger) Fatal(msg string, fields ...Field) { l.Log(LogLevelFatal, msg, fields...) }

func (l *zapLogger) Log(level LogLevel, msg string, fields ...Field) {
	if level < LogLevel(l.provider.minimumLevel.Load()) {
		return
	}
	if ce := l.logger.Check(zapLevel(level), msg); ce != nil {
		ce.Write(zapFields(fields)...)
	}
}

func (l *zapLogger) WithFields(fields ...Field) Logger {
	return &zapLogger{provider: l.provider, logger: l.logger.With(zapFields(fields)...)}
}

func (l *zapLogger) WithCategory(category string) Logger {
	return &zapLogger{provider: l.provider, logger: l.provider.base.Named(category)}
}

func zapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LogLevelTrace, LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelInfo:
		return zapcore.InfoLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.FatalLevel
	}
}

func zapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		if err, ok := f.Value.(error); ok {
			out[i] = zap.NamedError(f.Key, err)
			continue
		}
		out[i] = zap.Any(f.Key, f.Value)
	}
	return out
}
