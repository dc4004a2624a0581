package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	dErrors "collecta/pkg/domain-errors"
	"collecta/pkg/platform/httputil"
	"collecta/pkg/requestcontext"
)

// Recovery turns a handler panic into a 500 instead of tearing the
// connection down.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.ErrorContext(r.Context(), "handler panic",
						"panic", rec,
						"stack", string(debug.Stack()),
						"request_id", requestcontext.RequestID(r.Context()),
					)
					httputil.WriteError(w, dErrors.Newf(dErrors.CodeInternal, "panic: %v", rec))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
