package util

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerError(t *testing.T) {
	t.Parallel()

	err := NewServerError(http.StatusBadGateway)
	assert.Equal(t, 502, err.StatusCode)
	assert.Contains(t, err.Error(), "502")
}

func TestResponseCapture(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rw := NewResponseCapture(rec)

	assert.False(t, rw.HeaderWritten)
	assert.Equal(t, http.StatusOK, rw.StatusCode)

	rw.WriteHeader(http.StatusBadGateway)
	assert.True(t, rw.HeaderWritten)
	assert.Equal(t, http.StatusBadGateway, rw.StatusCode)

	// Second WriteHeader must not override the captured status.
	rw.WriteHeader(http.StatusOK)
	assert.Equal(t, http.StatusBadGateway, rw.StatusCode)

	n, err := rw.Write([]byte("body"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "body", rec.Body.String())
	assert.Equal(t, 4, rw.BytesWritten)
}

func TestResponseCaptureImplicitHeader(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rw := NewResponseCapture(rec)

	_, err := rw.Write([]byte("implicit 200"))
	require.NoError(t, err)

	assert.True(t, rw.HeaderWritten)
	assert.Equal(t, http.StatusOK, rw.StatusCode)
	assert.Equal(t, len("implicit 200"), rw.BytesWritten)
}

func TestResponseCaptureAccumulatesBytes(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rw := NewResponseCapture(rec)

	for _, chunk := range []string{"first ", "second ", "third"} {
		_, err := rw.Write([]byte(chunk))
		require.NoError(t, err)
	}

	assert.Equal(t, len("first second third"), rw.BytesWritten)
	assert.Equal(t, "first second third", rec.Body.String())
}
