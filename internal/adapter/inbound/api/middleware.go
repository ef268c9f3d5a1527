package api

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"contentaugment/internal/application/common/logging"
	"contentaugment/internal/application/common/slogger"
	"contentaugment/internal/application/dto"

	"github.com/google/uuid"
)

// HeaderCorrelationID carries the request correlation id in and out.
const HeaderCorrelationID = "X-Correlation-ID"

// Middleware type for middleware chains
type Middleware func(http.Handler) http.Handler

// NewCorrelationIDMiddleware reuses the caller's correlation id or mints one,
// stores it in the request context and echoes it on the response.
func NewCorrelationIDMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			correlationID := r.Header.Get(HeaderCorrelationID)
			if correlationID == "" {
				correlationID = uuid.New().String()
				r.Header.Set(HeaderCorrelationID, correlationID)
			}

			w.Header().Set(HeaderCorrelationID, correlationID)
			next.ServeHTTP(w, r.WithContext(logging.WithCorrelationID(r.Context(), correlationID)))
		})
	}
}

// NewLoggingMiddleware logs one structured line per completed request.
func NewLoggingMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			fields := slogger.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      wrapped.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
				"user_agent":  r.Header.Get("User-Agent"),
				"remote_ip":   clientIP(r),
			}
			if r.URL.RawQuery != "" {
				fields["query"] = r.URL.RawQuery
			}

			if wrapped.statusCode >= http.StatusInternalServerError {
				slogger.Error(r.Context(), "HTTP request completed", fields)
				return
			}
			slogger.Info(r.Context(), "HTTP request completed", fields)
		})
	}
}

// NewCORSMiddleware adds permissive CORS headers and answers preflights.
func NewCORSMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

			allowedHeaders := "Content-Type, Authorization, " + HeaderCorrelationID
			if requestedHeaders := r.Header.Get("Access-Control-Request-Headers"); requestedHeaders != "" {
				allowedHeaders += ", " + requestedHeaders
			}
			w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NewRecoveryMiddleware turns a handler panic into a 500 JSON response.
func NewRecoveryMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					slogger.Error(r.Context(), "Panic recovered in HTTP handler", slogger.Fields{
						"method": r.Method,
						"path":   r.URL.Path,
						"panic":  fmt.Sprint(rec),
					})
					writeJSONOrFail(w, http.StatusInternalServerError,
						dto.NewErrorResponse(dto.ErrorCodeInternalError, "An internal error occurred", nil))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// NewMiddlewareChain applies middlewares so the first one is outermost.
func NewMiddlewareChain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		handler := next
		for i := len(middlewares) - 1; i >= 0; i-- {
			handler = middlewares[i](handler)
		}
		return handler
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first, _, _ := strings.Cut(forwarded, ","); strings.TrimSpace(first) != "" {
			return strings.TrimSpace(first)
		}
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
