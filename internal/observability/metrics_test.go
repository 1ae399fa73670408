package observability

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestNewMetricsDefaultNamespace(t *testing.T) {
	t.Parallel()

	m := NewMetrics("")
	m.RecordRequest(http.MethodGet, http.StatusOK, 10*time.Millisecond, 100, 200)

	output := scrape(t, m)
	assert.Contains(t, output, "forwarder_requests_total")
	assert.Contains(t, output, `method="GET"`)
	assert.Contains(t, output, `status="200"`)
}

func TestRecordUpstreamStatus(t *testing.T) {
	t.Parallel()

	m := NewMetrics("testfwd1")
	m.RecordUpstreamStatus(http.StatusServiceUnavailable)
	m.RecordUpstreamStatus(http.StatusServiceUnavailable)

	output := scrape(t, m)
	assert.Contains(t, output, "testfwd1_upstream_responses_total")
	assert.Contains(t, output, `status="503"`)
}

func TestSetBuildInfo(t *testing.T) {
	t.Parallel()

	m := NewMetrics("testfwd2")
	m.SetBuildInfo("1.0.0", "abc123", "2026-01-01")

	output := scrape(t, m)
	assert.Contains(t, output, `version="1.0.0"`)
	assert.Contains(t, output, `commit="abc123"`)
}

func TestMetricsMiddleware(t *testing.T) {
	t.Parallel()

	m := NewMetrics("testfwd3")

	body := `{"error":"backend unreachable"}`
	handler := MetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, body)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/incidents", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)

	output := scrape(t, m)
	assert.Contains(t, output, "testfwd3_requests_total")
	assert.Contains(t, output, `status="502"`)

	// The response size histogram must observe the bytes the handler
	// actually wrote, not a placeholder zero.
	assert.Contains(t, output,
		fmt.Sprintf(`testfwd3_response_size_bytes_sum{method="GET",route="forward",status="502"} %d`, len(body)),
	)
}
