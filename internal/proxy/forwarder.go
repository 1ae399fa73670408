// Package proxy implements the forwarding proxy between the dashboard
// and the incident-management backend API.
package proxy

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/incidentgw/internal/observability"
	"github.com/vyrodovalexey/incidentgw/internal/retry"
	"github.com/vyrodovalexey/incidentgw/internal/util"
)

const (
	// APIPrefix is the path prefix under which the forwarder is mounted
	// and under which upstream endpoints live.
	APIPrefix = "/api/v1/"

	// HeaderAPIKey carries the shared upstream credential.
	HeaderAPIKey = "X-API-Key"

	// HeaderRequestID carries the correlation identifier.
	HeaderRequestID = "X-Request-ID"

	// HeaderContentType is the Content-Type header name.
	HeaderContentType = "Content-Type"

	// ContentTypeJSON is the JSON content type.
	ContentTypeJSON = "application/json"

	// DefaultAttemptTimeout is the per-attempt upstream timeout.
	DefaultAttemptTimeout = 30 * time.Second
)

// allowedMethods are the methods the forwarding route accepts.
var allowedMethods = map[string]struct{}{
	http.MethodGet:    {},
	http.MethodPost:   {},
	http.MethodPatch:  {},
	http.MethodDelete: {},
}

// bodylessMethods never carry a request body upstream.
var bodylessMethods = map[string]struct{}{
	http.MethodGet:    {},
	http.MethodDelete: {},
}

// RequestContext is the immutable per-request record created at request
// entry. It is read-only for the rest of the request's lifetime.
type RequestContext struct {
	// ID is the correlation identifier.
	ID string

	// Method is the inbound HTTP method.
	Method string

	// Path is the trailing path after the API prefix, forwarded verbatim.
	Path string

	// RawQuery is the inbound query string, forwarded verbatim.
	RawQuery string

	// Body is the serialized request body; nil for bodyless methods.
	Body []byte

	// InjectCredential indicates whether the shared credential header is
	// attached on dispatch.
	InjectCredential bool
}

// AttemptResult is the outcome of one dispatch attempt: either a
// received upstream response or a transport-level failure. It exists
// only within the attempt loop.
type AttemptResult struct {
	StatusCode  int
	ContentType string
	Body        []byte
	Err         error
}

// Forwarder forwards dashboard requests to the upstream API, retrying
// transient failures per its retry policy and normalizing responses
// into a single JSON contract.
type Forwarder struct {
	upstreamBase   string
	credential     string
	bypassSegments []string
	policy         *retry.Policy
	client         *http.Client
	logger         observability.Logger
	metrics        *observability.Metrics
	exposeUpstream bool
}

// ForwarderOption is a functional option for configuring the forwarder.
type ForwarderOption func(*Forwarder)

// WithForwarderLogger sets the logger for the forwarder.
func WithForwarderLogger(logger observability.Logger) ForwarderOption {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// WithHTTPClient sets the HTTP client used for upstream dispatches.
func WithHTTPClient(client *http.Client) ForwarderOption {
	return func(f *Forwarder) {
		f.client = client
	}
}

// WithRetryPolicy sets the retry policy.
func WithRetryPolicy(policy *retry.Policy) ForwarderOption {
	return func(f *Forwarder) {
		f.policy = policy
	}
}

// WithCredential sets the shared credential attached to upstream
// dispatches. An empty credential disables injection entirely.
func WithCredential(credential string) ForwarderOption {
	return func(f *Forwarder) {
		f.credential = credential
	}
}

// WithCredentialBypass sets the path segments whose endpoints
// authenticate via a token embedded in the request itself. Those
// endpoints must not also receive the shared credential.
func WithCredentialBypass(segments ...string) ForwarderOption {
	return func(f *Forwarder) {
		f.bypassSegments = segments
	}
}

// WithUpstreamDiagnostics controls whether failure reports include the
// upstream base URL. Enabled only outside production deployments.
func WithUpstreamDiagnostics(enabled bool) ForwarderOption {
	return func(f *Forwarder) {
		f.exposeUpstream = enabled
	}
}

// WithForwarderMetrics sets the metrics recorder for upstream statuses.
func WithForwarderMetrics(m *observability.Metrics) ForwarderOption {
	return func(f *Forwarder) {
		f.metrics = m
	}
}

// NewForwarder creates a new forwarder for the given upstream base URL.
func NewForwarder(upstreamBase string, opts ...ForwarderOption) (*Forwarder, error) {
	u, err := url.Parse(upstreamBase)
	if err != nil {
		return nil, util.NewConfigErrorWithCause("upstream", "invalid upstream base URL", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, util.NewConfigError("upstream", "upstream base URL must be absolute")
	}

	f := &Forwarder{
		upstreamBase:   strings.TrimSuffix(upstreamBase, "/"),
		bypassSegments: []string{"acknowledge"},
		policy:         retry.DefaultPolicy(),
		logger:         observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.client == nil {
		f.client = &http.Client{Timeout: DefaultAttemptTimeout}
	}

	return f, nil
}

// ServeHTTP implements http.Handler.
func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc, ok := f.newRequestContext(w, r)
	if !ok {
		return
	}

	logger := f.logger.With(observability.String("request_id", rc.ID))

	if _, allowed := allowedMethods[rc.Method]; !allowed {
		logger.Warn("method not allowed",
			observability.String("method", rc.Method),
			observability.String("path", rc.Path),
		)
		writeJSON(w, http.StatusMethodNotAllowed, []byte(`{"error":"method not allowed"}`))
		return
	}

	ctx := r.Context()

	for attempt := 0; ; attempt++ {
		result := f.dispatch(r, rc, attempt)

		// Abandon only when the inbound request's own context is done.
		// A dispatch error alone is not enough: a per-attempt client
		// timeout also surfaces as context.DeadlineExceeded, and that
		// is a retryable transport failure, not a client disconnect.
		if result.Err != nil && ctx.Err() != nil {
			logger.Warn("client disconnected, abandoning dispatch",
				observability.Int("attempt", attempt),
			)
			return
		}

		state := f.policy.Transition(attempt, retry.Outcome{
			StatusCode: result.StatusCode,
			Err:        result.Err,
		})
		retry.RecordAttempt(state, attempt)

		switch state {
		case retry.StateSuccess:
			if f.policy.IsTransient(result.StatusCode) {
				// The client sees the stale response unchanged; only the
				// log channel distinguishes this from a first-attempt
				// pass-through.
				retry.RecordTransientPassthrough()
				logger.Warn("transient status passed through after exhausted retries",
					observability.Int("status", result.StatusCode),
					observability.Int("attempts", attempt+1),
				)
			}
			f.writeNormalized(w, rc, result, logger)
			return

		case retry.StateExhausted:
			failure := retry.ClassifyTransportError(result.Err)
			retry.RecordExhausted(failure)
			logger.Error("upstream unreachable, attempts exhausted",
				observability.Int("attempts", attempt+1),
				observability.String("failure", failure),
				observability.Error(result.Err),
			)
			f.writeFailure(w, rc, attempt+1)
			return

		case retry.StateRetryScheduled:
			logger.Debug("retry scheduled",
				observability.Int("attempt", attempt),
				observability.Int("status", result.StatusCode),
				observability.Duration("delay", f.policy.Delay(attempt)),
				observability.Error(result.Err),
			)

			waitStart := time.Now()
			if err := f.policy.Wait(ctx, attempt); err != nil {
				logger.Warn("client disconnected during retry delay, abandoning",
					observability.Int("attempt", attempt),
				)
				return
			}
			retry.RecordDelay(attempt, time.Since(waitStart).Seconds())
		}
	}
}

// newRequestContext builds the immutable RequestContext from the
// inbound request and echoes the correlation identifier on the
// response. Returns false when the request body cannot be read.
func (f *Forwarder) newRequestContext(w http.ResponseWriter, r *http.Request) (*RequestContext, bool) {
	requestID := observability.RequestIDFromContext(r.Context())
	if requestID == "" {
		requestID = r.Header.Get(HeaderRequestID)
	}
	if requestID == "" {
		requestID = uuid.New().String()
	}

	// Echo the correlation identifier on every exit path.
	w.Header().Set(HeaderRequestID, requestID)

	rc := &RequestContext{
		ID:       requestID,
		Method:   r.Method,
		Path:     strings.TrimPrefix(r.URL.Path, APIPrefix),
		RawQuery: r.URL.RawQuery,
	}
	rc.InjectCredential = f.credential != "" && !f.pathBypassesCredential(rc.Path)

	if _, bodyless := bodylessMethods[r.Method]; !bodyless && r.Body != nil {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			f.logger.Error("failed to read request body",
				observability.String("request_id", requestID),
				observability.Error(err),
			)
			writeJSON(w, http.StatusBadRequest, []byte(`{"error":"failed to read request body"}`))
			return nil, false
		}
		rc.Body = body
	}

	return rc, true
}

// pathBypassesCredential reports whether any path segment is in the
// configured token-auth bypass list. Matching whole segments, not
// substrings, keeps an unrelated path like "unacknowledged" from
// silently losing its credential.
func (f *Forwarder) pathBypassesCredential(path string) bool {
	for _, segment := range strings.Split(path, "/") {
		for _, bypass := range f.bypassSegments {
			if segment == bypass {
				return true
			}
		}
	}
	return false
}

// dispatch issues one upstream request. It never retries on its own.
func (f *Forwarder) dispatch(r *http.Request, rc *RequestContext, attempt int) AttemptResult {
	target := f.upstreamBase + APIPrefix + rc.Path
	if rc.RawQuery != "" {
		target += "?" + rc.RawQuery
	}

	var body io.Reader
	if len(rc.Body) > 0 {
		body = bytes.NewReader(rc.Body)
	}

	req, err := http.NewRequestWithContext(r.Context(), rc.Method, target, body)
	if err != nil {
		return AttemptResult{Err: util.NewDispatchError(attempt, err)}
	}

	req.Header.Set(HeaderContentType, ContentTypeJSON)
	req.Header.Set(HeaderRequestID, rc.ID)
	if rc.InjectCredential {
		req.Header.Set(HeaderAPIKey, f.credential)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return AttemptResult{Err: util.NewDispatchError(attempt, err)}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return AttemptResult{Err: util.NewDispatchError(attempt, err)}
	}

	return AttemptResult{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get(HeaderContentType),
		Body:        raw,
	}
}

// writeNormalized normalizes the upstream response and writes it to the
// client, propagating the upstream status unchanged.
func (f *Forwarder) writeNormalized(
	w http.ResponseWriter,
	rc *RequestContext,
	result AttemptResult,
	logger observability.Logger,
) {
	if f.metrics != nil {
		f.metrics.RecordUpstreamStatus(result.StatusCode)
	}

	normalized := Normalize(result)

	logger.Info("request forwarded",
		observability.String("method", rc.Method),
		observability.String("path", rc.Path),
		observability.Int("status", normalized.StatusCode),
	)

	writeJSON(w, normalized.StatusCode, normalized.Body)
}

// writeFailure writes the synthesized backend-unreachable response.
func (f *Forwarder) writeFailure(w http.ResponseWriter, rc *RequestContext, attempts int) {
	upstream := ""
	if f.exposeUpstream {
		upstream = f.upstreamBase
	}

	report := NewFailureReport(rc.ID, attempts, upstream)
	writeJSON(w, http.StatusBadGateway, report.JSON())
}

// writeJSON writes a JSON body with the given status code.
func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set(HeaderContentType, ContentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
