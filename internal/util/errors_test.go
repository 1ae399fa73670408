package util

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigError(t *testing.T) {
	t.Parallel()

	err := NewConfigError("upstream.baseURL", "must be absolute")

	assert.Equal(t, "config error at upstream.baseURL: must be absolute", err.Error())
	assert.True(t, errors.Is(err, ErrConfigInvalid))
	assert.Nil(t, err.Unwrap())
}

func TestConfigErrorWithCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("parse failure")
	err := NewConfigErrorWithCause("configPath", "failed to parse config file", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestConfigErrorWithoutField(t *testing.T) {
	t.Parallel()

	err := &ConfigError{Message: "empty config"}
	assert.Equal(t, "config error: empty config", err.Error())
}

func TestDispatchError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := NewDispatchError(2, cause)

	assert.Equal(t, "dispatch attempt 2 failed: connection refused", err.Error())
	assert.ErrorIs(t, err, ErrBackendUnreachable)
	assert.ErrorIs(t, err, cause)

	var dispatchErr *DispatchError
	assert.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, 2, dispatchErr.Attempt)
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, WrapError(nil, "ignored"))

	cause := errors.New("inner")
	wrapped := WrapError(cause, "outer")
	assert.Equal(t, "outer: inner", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}
