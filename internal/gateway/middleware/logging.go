// Package middleware holds the gateway's HTTP middleware.
package middleware

import (
	"bufio"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// responseWriter captures the status code and body size. It forwards
// Hijack for WebSocket upgrades and Flush for SSE.
type responseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// Hijack implements http.Hijacker.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// Flush implements http.Flusher.
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// quietPaths are polled by health checks and scrapers and are not logged.
var quietPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// Logging returns a middleware that logs one line per request. 5xx responses
// log at error level, 4xx at warn.
func Logging(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			if quietPaths[r.URL.Path] {
				return
			}

			var event *zerolog.Event
			switch {
			case wrapped.status >= http.StatusInternalServerError:
				event = log.Error()
			case wrapped.status >= http.StatusBadRequest:
				event = log.Warn()
			default:
				event = log.Info()
			}
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.status).
				Int("bytes", wrapped.bytes).
				Dur("latency", time.Since(start)).
				Str("ip", getClientIP(r)).
				Msg("HTTP request")
		})
	}
}

// getClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then
// RemoteAddr.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
