package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vyrodovalexey/incidentgw/internal/observability"
	"github.com/vyrodovalexey/incidentgw/internal/util"
)

func TestLogging(t *testing.T) {
	t.Parallel()

	mw := Logging(observability.NopLogger())

	var hasStartTime bool
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasStartTime = !util.StartTimeFromContext(r.Context()).IsZero()
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"queued":true}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents?x=1", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.True(t, hasStartTime)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"queued":true}`, rec.Body.String())
}
