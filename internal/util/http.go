package util

import (
	"fmt"
	"net/http"
)

// ServerError signals that a handler produced a 5xx status. The circuit
// breaker returns it from Execute so upstream failures count against
// the breaker without inventing a second error channel.
type ServerError struct {
	StatusCode int
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: status %d", e.StatusCode)
}

// NewServerError creates a new ServerError with the given status code.
func NewServerError(statusCode int) *ServerError {
	return &ServerError{StatusCode: statusCode}
}

// ResponseCapture wraps http.ResponseWriter and records what the
// handler produced: the status code, whether the header went out, and
// how many body bytes were written. It is the single response wrapper
// shared by the logging, metrics, tracing, and circuit breaker
// middleware, so a request is never wrapped twice for the same purpose.
type ResponseCapture struct {
	http.ResponseWriter
	StatusCode    int
	BytesWritten  int
	HeaderWritten bool
}

// NewResponseCapture wraps w with a default status of 200 OK.
func NewResponseCapture(w http.ResponseWriter) *ResponseCapture {
	return &ResponseCapture{
		ResponseWriter: w,
		StatusCode:     http.StatusOK,
	}
}

// WriteHeader records the first status code written; later calls are
// dropped, matching net/http's superfluous-WriteHeader behavior.
func (w *ResponseCapture) WriteHeader(code int) {
	if w.HeaderWritten {
		return
	}
	w.StatusCode = code
	w.HeaderWritten = true
	w.ResponseWriter.WriteHeader(code)
}

// Write forwards the body bytes and accumulates their count. An
// implicit 200 from a bare Write marks the header as written.
func (w *ResponseCapture) Write(b []byte) (int, error) {
	w.HeaderWritten = true
	n, err := w.ResponseWriter.Write(b)
	w.BytesWritten += n
	return n, err
}

// Flush implements http.Flusher for streaming support.
func (w *ResponseCapture) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Compile-time interface assertion.
var _ http.Flusher = (*ResponseCapture)(nil)
