package log

import (
	"context"
	"log/slog"
	"net/http"
)

type ctxKey struct{}

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext extracts the request logger, falling back to slog's default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{Logger: slog.Default(), component: "unknown"}
}

// Middleware puts a request-scoped logger, tagged with the request id, in the request context.
func Middleware(logger *Logger, requestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := logger
			if requestID != nil {
				if id := requestID(r); id != "" {
					l = logger.With(FieldRequestID, id)
				}
			}
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), l)))
		})
	}
}

// StructuredLogger logs the recurring events of the dashboard with a fixed field set.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogHTTPEnd logs a finished request, at Warn for 4xx and Error for 5xx.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP, requestID string) {
	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()).
		WithHTTPResponse(statusCode, durationMs).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)
	if requestID != "" {
		fields.WithRequestID(requestID)
	}
	sl.logger.Logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogUploadLoaded logs a CSV upload that passed column validation.
func (sl *StructuredLogger) LogUploadLoaded(ctx context.Context, file string, rows, donors, invalidDates, invalidAmounts int) {
	fields := NewFields().
		WithUpload(file, rows, invalidDates, invalidAmounts).
		WithOperation(OpUpload).
		WithComponent(ComponentDashboard)
	fields[FieldDonors] = donors
	sl.logger.Logger.InfoContext(ctx, "Donation table loaded", fields.ToSlice()...)
}

// LogDraftComposed logs a generated message.
func (sl *StructuredLogger) LogDraftComposed(ctx context.Context, id int64, donor, messageType string) {
	fields := NewFields().
		WithDraft(id, donor, messageType).
		WithOperation(OpCompose).
		WithComponent(ComponentComposer)
	sl.logger.Logger.InfoContext(ctx, "Message composed", fields.ToSlice()...)
}

// LogError logs an error with structured context. An empty errorType is
// left out.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component, operation, errorType string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields.WithError(err).WithOperation(operation).WithComponent(component)
	if errorType != "" {
		fields.WithErrorType(errorType)
	}
	sl.logger.Logger.ErrorContext(ctx, msg, fields.ToSlice()...)
}
