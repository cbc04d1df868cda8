// Package middleware provides transport-agnostic HTTP middleware shared by
// every route.
package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"validbus/pkg/requestcontext"
)

// HeaderRequestID carries the correlation ID; an inbound value is honored so
// callers can trace across services.
const HeaderRequestID = "X-Request-ID"

// RequestMeta stamps every request with a correlation ID and a request-scoped
// timestamp, so all writes within one request share the same clock reading.
func RequestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		ctx = requestcontext.WithTime(ctx, time.Now().UTC())

		w.Header().Set(HeaderRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
