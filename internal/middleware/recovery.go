package middleware

import (
	"fmt"
	"io"
	"net/http"
	"runtime/debug"

	"github.com/vyrodovalexey/incidentgw/internal/observability"
)

// Recovery returns a middleware that recovers from panics. A fault
// before dispatch still yields a JSON body with the correlation
// identifier, the same contract the client gets on every other path.
func Recovery(logger observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					stack := debug.Stack()
					requestID := observability.RequestIDFromContext(r.Context())

					logger.Error("panic recovered",
						observability.String("path", r.URL.Path),
						observability.String("method", r.Method),
						observability.String("request_id", requestID),
						observability.Any("error", err),
						observability.String("stack", string(stack)),
					)

					GetMiddlewareMetrics().panicsRecovered.Inc()

					w.Header().Set(HeaderContentType, ContentTypeJSON)
					w.WriteHeader(http.StatusBadGateway)
					_, _ = fmt.Fprintf(w,
						`{"error":"internal error","message":"unexpected fault while handling request","request_id":%q}`,
						requestID,
					)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RecoveryWithWriter returns a middleware that recovers from panics and
// additionally writes the panic and stack to a custom writer.
func RecoveryWithWriter(logger observability.Logger, out io.Writer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					stack := debug.Stack()

					logger.Error("panic recovered",
						observability.String("path", r.URL.Path),
						observability.String("method", r.Method),
						observability.Any("error", err),
						observability.String("stack", string(stack)),
					)

					_, _ = fmt.Fprintf(out, "panic: %v\n%s\n", err, stack)

					w.Header().Set(HeaderContentType, ContentTypeJSON)
					w.WriteHeader(http.StatusBadGateway)
					_, _ = io.WriteString(w, ErrInternalFault)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
