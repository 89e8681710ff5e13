package log

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Context keys for request-scoped fields
type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	RequestIDKey contextKey = "request_id"
)

var (
	// globalLogger is the default logger instance
	globalLogger *zap.Logger
)

// Init initializes the global logger with the specified level
func Init(level string) error {
	config := zap.NewProductionConfig()

	logLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		logLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(logLevel)

	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	config.Encoding = "json"
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.MessageKey = "message"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	logger, err := config.Build()
	if err != nil {
		return err
	}
	globalLogger = logger
	return nil
}

// InitNop installs a no-op logger, used by tests.
func InitNop() {
	globalLogger = zap.NewNop()
}

// L returns a logger with request-scoped fields from context
func L(ctx context.Context) *zap.Logger {
	if globalLogger == nil {
		logger, _ := zap.NewProduction()
		globalLogger = logger
	}

	logger := globalLogger

	if userID, ok := ctx.Value(UserIDKey).(string); ok && userID != "" {
		logger = logger.With(zap.String("user_id", userID))
	}
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		logger = logger.With(zap.String("request_id", requestID))
	}

	return logger
}

// WithUserID adds user_id to the context for logging
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithRequestID adds request_id to the context for logging
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// Sync flushes any buffered log entries
func Sync() {
	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
}

// Info logs an info message with context
func Info(ctx context.Context, msg string, fields ...zap.Field) {
	L(ctx).Info(msg, fields...)
}

// Error logs an error message with context
func Error(ctx context.Context, msg string, fields ...zap.Field) {
	L(ctx).Error(msg, fields...)
}

// Warn logs a warning message with context
func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	L(ctx).Warn(msg, fields...)
}

// Debug logs a debug message with context
func Debug(ctx context.Context, msg string, fields ...zap.Field) {
	L(ctx).Debug(msg, fields...)
}
