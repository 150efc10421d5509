package log

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey string

const loggerContextKey contextKey = "logger"

// NewContext returns ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// FromContext extracts a logger from the context, falling back to the
// process default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// Middleware creates HTTP middleware that adds a logger to the request context
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// StructuredLogger provides the request and ledger log lines shared by the
// HTTP layer and the services.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogHTTPStart logs the start of an HTTP request
func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, requestID, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
		WithRequestID(requestID).
		WithClientIP(clientIP)

	sl.logger.WithComponent(ComponentHTTP).DebugContext(ctx, "HTTP request started", fields.ToSlice()...)
}

// LogHTTPEnd logs the completion of an HTTP request at a level matching its
// status.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, requestID string, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	if statusCode >= 400 && statusCode < 500 {
		level = slog.LevelWarn
	} else if statusCode >= 500 {
		level = slog.LevelError
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "").
		WithHTTPResponse(statusCode, durationMs).
		WithRequestID(requestID).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)

	sl.logger.Logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogLedgerWrite logs a successful write to a user's records.
func (sl *StructuredLogger) LogLedgerWrite(ctx context.Context, op, entity, userID, entityID, amount string) {
	fields := NewFields().
		WithLedgerWrite(entity, entityID, amount).
		WithUserID(userID).
		WithOperation(op)

	sl.logger.WithComponent(ComponentLedger).InfoContext(ctx, "Ledger updated", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields = fields.WithError(err).WithOperation(operation)

	sl.logger.WithComponent(component).ErrorContext(ctx, msg, fields.ToSlice()...)
}
