package httputil

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type correlationKey struct{}

// CorrelationHeader is echoed on every response
const CorrelationHeader = "X-Correlation-ID"

// CorrelationID takes the id from X-Correlation-ID or X-Request-ID, or generates one,
// stores it in the request context and echoes it in the response header.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationHeader)
		if id == "" {
			id = r.Header.Get("X-Request-ID")
		}
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(CorrelationHeader, id)
		ctx := context.WithValue(r.Context(), correlationKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CorrelationIDFromContext returns the id set by CorrelationID, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// CorrelationIDFromRequest falls back to the request headers and finally a fresh
// uuid when the middleware did not run.
func CorrelationIDFromRequest(r *http.Request) string {
	if id := CorrelationIDFromContext(r.Context()); id != "" {
		return id
	}
	if id := r.Header.Get(CorrelationHeader); id != "" {
		return id
	}
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}
