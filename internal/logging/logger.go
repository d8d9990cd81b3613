package logging

import (
	"context"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity level of a log message
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
	LevelPanic LogLevel = "panic"
	LevelFatal LogLevel = "fatal"
)

// ParseLevel converts a config string into a LogLevel, defaulting to info.
func ParseLevel(s string) LogLevel {
	switch LogLevel(s) {
	case LevelDebug, LevelInfo, LevelWarn, LevelError, LevelPanic, LevelFatal:
		return LogLevel(s)
	default:
		return LevelInfo
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelPanic:
		return zapcore.PanicLevel
	case LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger provides structured JSON logging with correlation ID support
type Logger struct {
	zl      *zap.Logger
	level   zap.AtomicLevel
	output  io.Writer
	service string
	format  string
}

// LoggerOption is a function that configures a Logger
type LoggerOption func(*Logger)

// WithOutput sets the output writer for the logger
func WithOutput(w io.Writer) LoggerOption {
	return func(l *Logger) {
		l.output = w
	}
}

// WithLevel sets the minimum log level
func WithLevel(level LogLevel) LoggerOption {
	return func(l *Logger) {
		l.level.SetLevel(level.zapLevel())
	}
}

// WithService sets the service name for logs
func WithService(service string) LoggerOption {
	return func(l *Logger) {
		l.service = service
	}
}

// WithFormat selects "json" (default) or "console" encoding
func WithFormat(format string) LoggerOption {
	return func(l *Logger) {
		l.format = format
	}
}

// NewLogger creates a new Logger with the specified options
func NewLogger(opts ...LoggerOption) *Logger {
	logger := &Logger{
		level:   zap.NewAtomicLevelAt(zapcore.InfoLevel),
		output:  os.Stdout,
		service: "edfc",
	}

	for _, opt := range opts {
		opt(logger)
	}

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		NameKey:        zapcore.OmitKey,
		CallerKey:      zapcore.OmitKey,
		StacktraceKey:  zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     utcTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	encoder := zapcore.NewJSONEncoder(encoderCfg)
	if logger.format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(
		encoder,
		zapcore.AddSync(logger.output),
		logger.level,
	)
	logger.zl = zap.New(core).With(zap.String("service", logger.service))

	return logger
}

func utcTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format(time.RFC3339Nano))
}

// SetLevel changes the minimum level at runtime.
func (l *Logger) SetLevel(level LogLevel) {
	l.level.SetLevel(level.zapLevel())
}

// Sugar exposes a printf-style logger for libraries that want one.
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.zl.Sugar()
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zl.Sync()
}

func (l *Logger) log(level zapcore.Level, message string, correlationID string, fields []interface{}) {
	ce := l.zl.Check(level, message)
	if ce == nil {
		return
	}
	ce.Write(buildFields(correlationID, fields)...)
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields ...interface{}) {
	correlationID, rest := splitCorrelationID(fields)
	l.log(zapcore.DebugLevel, message, correlationID, rest)
}

// Info logs an info message
func (l *Logger) Info(message string, fields ...interface{}) {
	correlationID, rest := splitCorrelationID(fields)
	l.log(zapcore.InfoLevel, message, correlationID, rest)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields ...interface{}) {
	correlationID, rest := splitCorrelationID(fields)
	l.log(zapcore.WarnLevel, message, correlationID, rest)
}

// Error logs an error message
func (l *Logger) Error(message string, fields ...interface{}) {
	correlationID, rest := splitCorrelationID(fields)
	l.log(zapcore.ErrorLevel, message, correlationID, rest)
}

// Panic logs a panic message and panics
func (l *Logger) Panic(message string, fields ...interface{}) {
	correlationID, rest := splitCorrelationID(fields)
	l.log(zapcore.PanicLevel, message, correlationID, rest)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(message string, fields ...interface{}) {
	correlationID, rest := splitCorrelationID(fields)
	l.log(zapcore.FatalLevel, message, correlationID, rest)
}

// DebugWithContext logs a debug message with correlation ID from context
func (l *Logger) DebugWithContext(ctx context.Context, message string, fields ...interface{}) {
	l.log(zapcore.DebugLevel, message, GetCorrelationID(ctx), fields)
}

// InfoWithContext logs an info message with correlation ID from context
func (l *Logger) InfoWithContext(ctx context.Context, message string, fields ...interface{}) {
	l.log(zapcore.InfoLevel, message, GetCorrelationID(ctx), fields)
}

// WarnWithContext logs a warning message with correlation ID from context
func (l *Logger) WarnWithContext(ctx context.Context, message string, fields ...interface{}) {
	l.log(zapcore.WarnLevel, message, GetCorrelationID(ctx), fields)
}

// ErrorWithContext logs an error message with correlation ID from context
func (l *Logger) ErrorWithContext(ctx context.Context, message string, fields ...interface{}) {
	l.log(zapcore.ErrorLevel, message, GetCorrelationID(ctx), fields)
}

// splitCorrelationID pulls a "correlation_id" pair out of key/value fields.
func splitCorrelationID(fields []interface{}) (string, []interface{}) {
	correlationID := ""
	rest := make([]interface{}, 0, len(fields))

	for i := 0; i+1 < len(fields); i += 2 {
		if key, ok := fields[i].(string); ok && key == "correlation_id" {
			if id, ok := fields[i+1].(string); ok {
				correlationID = id
				continue
			}
		}
		rest = append(rest, fields[i], fields[i+1])
	}

	return correlationID, rest
}

// buildFields converts key/value pairs into zap fields nested under "fields".
// Pairs whose key is not a string are skipped.
func buildFields(correlationID string, fields []interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(fields)/2+2)
	if correlationID != "" {
		out = append(out, zap.String("correlation_id", correlationID))
	}

	pairs := make([]zap.Field, 0, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		if err, ok := fields[i+1].(error); ok {
			pairs = append(pairs, zap.String(key, err.Error()))
			continue
		}
		pairs = append(pairs, zap.Any(key, fields[i+1]))
	}

	if len(pairs) > 0 {
		out = append(out, zap.Namespace("fields"))
		out = append(out, pairs...)
	}
	return out
}
