package logging

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/redmonkez12/go-events-app/internal/httputil"
)

type ctxKey struct{}

// WithContext stores logger in ctx.
func WithContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the request-scoped logger, if RequestLogger set one.
func FromContext(ctx context.Context) (*Logger, bool) {
	logger, ok := ctx.Value(ctxKey{}).(*Logger)
	return logger, ok
}

// GetLoggerFromContext is FromContext with a development logger as fallback.
func GetLoggerFromContext(ctx context.Context) *Logger {
	if logger, ok := FromContext(ctx); ok {
		return logger
	}
	return NewLogger(true)
}

// RequestLogger attaches a logger carrying the request id to every request
// and logs one line per completed request, at WARN for 4xx and ERROR for 5xx.
// It must run after httputil.CorrelationID.
func RequestLogger(logger *Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLogger := &Logger{Logger: logger.With(
				"request_id", httputil.CorrelationIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
			)}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(WithContext(r.Context(), reqLogger)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			reqLogger.Log(r.Context(), levelFor(status), "request completed",
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		})
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
