package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/incidentgw/internal/observability"
)

// RequestID returns a middleware that tags each request with a
// correlation identifier. An identifier supplied by the caller is
// honored so a trace can span the dashboard and the forwarder;
// otherwise a fresh UUID is generated. The identifier is stored in the
// request context and echoed on the response header.
func RequestID() func(http.Handler) http.Handler {
	return RequestIDWithGenerator(func() string {
		return uuid.New().String()
	})
}

// RequestIDWithGenerator returns a middleware that uses a custom ID
// generator.
func RequestIDWithGenerator(generator func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(HeaderXRequestID)
			if requestID == "" {
				requestID = generator()
			}

			ctx := observability.ContextWithRequestID(r.Context(), requestID)
			r = r.WithContext(ctx)

			w.Header().Set(HeaderXRequestID, requestID)

			next.ServeHTTP(w, r)
		})
	}
}
