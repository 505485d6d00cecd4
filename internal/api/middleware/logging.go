package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/carparkfinder/backend/internal/infrastructure/observability"
)

const (
	// RequestIDHeader carries the request id in both directions.
	RequestIDHeader = "X-Request-ID"
	// ClientIDHeader identifies the browser that owns favorites and recent searches.
	ClientIDHeader = "X-Client-ID"
)

// LoggingMiddleware assigns a request id, attaches a request logger to the
// context and logs every completed request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := observability.WithRequestLogger(r.Context(), requestID)
		rw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		req := r.WithContext(ctx)
		next.ServeHTTP(rw, req)

		// the mux records the matched pattern on the request it was handed;
		// copy it back for outer middleware
		r.Pattern = req.Pattern
		route := req.Pattern
		if route == "" {
			route = r.URL.Path
		}

		event := log.Ctx(ctx).Info()
		if rw.statusCode >= http.StatusInternalServerError {
			event = log.Ctx(ctx).Error()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", route).
			Int("status", rw.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// loggingResponseWriter wraps http.ResponseWriter to capture status code
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *loggingResponseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *loggingResponseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
