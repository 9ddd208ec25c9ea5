package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/platinummonkey/jobportal/pkg/contextkeys"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l LogLevel) String() string {
	if l < DebugLevel || l > ErrorLevel {
		return "INFO"
	}
	return levelNames[l]
}

// ParseLogLevel parses debug, info, warn or error. Unknown values yield InfoLevel.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger writes one JSON object per line through slog
type Logger struct {
	logger *slog.Logger
	level  LogLevel
}

var fallbackLogger = NewLogger(InfoLevel, os.Stdout)

// NewLogger creates a JSON logger writing entries at level or above to output
func NewLogger(level LogLevel, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level.slogLevel()})
	return &Logger{logger: slog.New(handler), level: level}
}

// Level returns the minimum level the logger writes
func (l *Logger) Level() LogLevel {
	return l.level
}

func (l *Logger) with(args ...interface{}) *Logger {
	return &Logger{logger: l.logger.With(args...), level: l.level}
}

// WithField returns a logger that adds key to every entry
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.with(key, value)
}

// WithFields returns a logger that adds every field to every entry
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return l.with(args...)
}

// WithError adds err under the "error" key. A nil err returns l unchanged.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.with("error", err.Error())
}

func (l *Logger) Debug(message string) { l.logger.Debug(message) }
func (l *Logger) Info(message string)  { l.logger.Info(message) }
func (l *Logger) Warn(message string)  { l.logger.Warn(message) }
func (l *Logger) Error(message string) { l.logger.Error(message) }

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

// WithRequestID stores the request id on ctx
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextkeys.RequestIDKey, requestID)
}

// GetRequestID returns the request id stored on ctx, or ""
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextkeys.RequestIDKey).(string)
	return id
}

// WithUserID stores the authenticated user's id on ctx
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, contextkeys.UserIDKey, userID)
}

// GetUserID returns the authenticated user's id, or 0 for anonymous requests
func GetUserID(ctx context.Context) int64 {
	id, _ := ctx.Value(contextkeys.UserIDKey).(int64)
	return id
}

// WithLogger stores logger on ctx
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextkeys.LoggerKey, logger)
}

// GetLogger returns the logger stored on ctx, or a stdout logger at info level
func GetLogger(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextkeys.LoggerKey).(*Logger); ok {
		return logger
	}
	return fallbackLogger
}

// FromContext returns the request logger tagged with the request id, the
// user id and, inside a recording span, the trace and span ids
func FromContext(ctx context.Context) *Logger {
	logger := GetLogger(ctx)
	if id := GetRequestID(ctx); id != "" {
		logger = logger.WithField("request_id", id)
	}
	if id := GetUserID(ctx); id != 0 {
		logger = logger.WithField("user_id", id)
	}
	return UpdateLoggerWithTraceContext(ctx, logger)
}
