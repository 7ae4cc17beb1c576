package log

import (
	"context"
	"log/slog"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	// Return default logger if not found
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// StructuredLogger provides structured logging methods with context awareness
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogBatchSaved logs the outcome of one coordinated save
func (sl *StructuredLogger) LogBatchSaved(ctx context.Context, batchID string, productID int64, edits int, success, partial bool) {
	fields := NewFields().
		WithBatch(batchID, productID, edits).
		WithOperation(OpSave).
		WithComponent(ComponentCoordinator).
		ToSlice()

	fields = append(fields, FieldSuccess, success, "partial_failure", partial)

	level := slog.LevelInfo
	if !success {
		level = slog.LevelWarn
	}
	sl.logger.Logger.Log(ctx, level, "Save batch completed", fields...)
}

// LogEditFailed logs a mutation the backend rejected. The batch carries on.
func (sl *StructuredLogger) LogEditFailed(ctx context.Context, batchID, phase string, fundID int64, month, fieldType string, err error) {
	fields := NewFields().
		WithCell(fundID, month, fieldType).
		WithError(err).
		WithOperation(OpSave).
		ToSlice()

	fields = append(fields, FieldBatchID, batchID, FieldPhase, phase)
	sl.logger.WarnContext(ctx, "Edit failed", fields...)
}
