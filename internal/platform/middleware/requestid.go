// Package middleware holds the HTTP middleware chain: request identity,
// request-scoped time, logging, panic recovery and authentication.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"collecta/pkg/requestcontext"
)

const requestIDHeader = "X-Request-Id"

// RequestID honours an inbound X-Request-Id or assigns a fresh one, stores it
// in context and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
