package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"qwenlink/internal/gateway/handlers"
	"qwenlink/pkg/logger"
)

// Recovery returns a middleware that recovers from panics. http.ErrAbortHandler
// is re-raised so the server aborts the response as usual.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			logger.Error().
				Interface("error", rec).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			handlers.SendError(
				w,
				http.StatusInternalServerError,
				handlers.ErrCodeInternalError,
				"internal server error",
			)
		}()

		next.ServeHTTP(w, r)
	})
}
