package proxy

import (
	"encoding/json"
	"fmt"
)

// FailureReport is the synthesized response returned when every dispatch
// attempt failed at the transport level and no upstream response exists.
type FailureReport struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`

	// Upstream names the upstream base URL. Omitted in production so the
	// error surface does not leak internal topology.
	Upstream string `json:"upstream,omitempty"`
}

// NewFailureReport builds the backend-unreachable report. An empty
// upstream leaves the diagnostic field out of the body entirely.
func NewFailureReport(requestID string, attempts int, upstream string) FailureReport {
	return FailureReport{
		Error:     "backend unreachable",
		Message:   fmt.Sprintf("upstream did not respond after %d attempts", attempts),
		RequestID: requestID,
		Upstream:  upstream,
	}
}

// JSON serializes the report body.
func (r FailureReport) JSON() []byte {
	body, err := json.Marshal(r)
	if err != nil {
		return []byte(`{"error":"backend unreachable"}`)
	}
	return body
}
