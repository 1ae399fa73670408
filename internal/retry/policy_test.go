package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()

	assert.Equal(t, 3, p.MaxRetries)
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		500 * time.Millisecond,
		2 * time.Second,
	}, p.Schedule)
	assert.True(t, p.IsTransient(http.StatusBadGateway))
	assert.True(t, p.IsTransient(http.StatusServiceUnavailable))
	assert.True(t, p.IsTransient(http.StatusGatewayTimeout))
	assert.False(t, p.IsTransient(http.StatusOK))
	assert.False(t, p.IsTransient(http.StatusInternalServerError))
	assert.False(t, p.IsTransient(http.StatusNotFound))
}

func TestPolicyTransition(t *testing.T) {
	t.Parallel()

	transportErr := errors.New("connection refused")

	tests := []struct {
		name     string
		policy   *Policy
		attempt  int
		outcome  Outcome
		expected State
	}{
		{
			name:     "success on first attempt",
			policy:   DefaultPolicy(),
			attempt:  0,
			outcome:  Outcome{StatusCode: http.StatusOK},
			expected: StateSuccess,
		},
		{
			name:     "non-transient error status terminates immediately",
			policy:   DefaultPolicy(),
			attempt:  0,
			outcome:  Outcome{StatusCode: http.StatusNotFound},
			expected: StateSuccess,
		},
		{
			name:     "non-transient 500 terminates immediately",
			policy:   DefaultPolicy(),
			attempt:  0,
			outcome:  Outcome{StatusCode: http.StatusInternalServerError},
			expected: StateSuccess,
		},
		{
			name:     "transient status schedules retry",
			policy:   DefaultPolicy(),
			attempt:  0,
			outcome:  Outcome{StatusCode: http.StatusServiceUnavailable},
			expected: StateRetryScheduled,
		},
		{
			name:     "transient status mid-budget schedules retry",
			policy:   DefaultPolicy(),
			attempt:  2,
			outcome:  Outcome{StatusCode: http.StatusBadGateway},
			expected: StateRetryScheduled,
		},
		{
			name:     "transient status on final attempt passes through",
			policy:   DefaultPolicy(),
			attempt:  3,
			outcome:  Outcome{StatusCode: http.StatusServiceUnavailable},
			expected: StateSuccess,
		},
		{
			name:     "transport error schedules retry",
			policy:   DefaultPolicy(),
			attempt:  0,
			outcome:  Outcome{Err: transportErr},
			expected: StateRetryScheduled,
		},
		{
			name:     "transport error on final attempt exhausts",
			policy:   DefaultPolicy(),
			attempt:  3,
			outcome:  Outcome{Err: transportErr},
			expected: StateExhausted,
		},
		{
			name:     "zero retries passes transient through immediately",
			policy:   NoRetryPolicy(),
			attempt:  0,
			outcome:  Outcome{StatusCode: http.StatusBadGateway},
			expected: StateSuccess,
		},
		{
			name:     "zero retries exhausts on first transport error",
			policy:   NoRetryPolicy(),
			attempt:  0,
			outcome:  Outcome{Err: transportErr},
			expected: StateExhausted,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, tt.policy.Transition(tt.attempt, tt.outcome))
		})
	}
}

func TestPolicyDelay(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()

	tests := []struct {
		name     string
		attempt  int
		expected time.Duration
	}{
		{name: "first delay", attempt: 0, expected: 100 * time.Millisecond},
		{name: "second delay", attempt: 1, expected: 500 * time.Millisecond},
		{name: "third delay", attempt: 2, expected: 2 * time.Second},
		{name: "clamps beyond schedule", attempt: 5, expected: 2 * time.Second},
		{name: "negative attempt clamps to first", attempt: -1, expected: 100 * time.Millisecond},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, p.Delay(tt.attempt))
		})
	}
}

func TestPolicyValidateNormalizes(t *testing.T) {
	t.Parallel()

	p := &Policy{MaxRetries: -5}
	p.Validate()

	assert.Equal(t, 0, p.MaxRetries)
	assert.Equal(t, DefaultSchedule, p.Schedule)
	assert.True(t, p.IsTransient(http.StatusBadGateway))
}

func TestPolicyBuilders(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy().
		WithMaxRetries(1).
		WithSchedule(5 * time.Millisecond).
		WithTransientStatuses(http.StatusTooManyRequests)

	assert.Equal(t, 1, p.MaxRetries)
	assert.Equal(t, 5*time.Millisecond, p.Delay(0))
	assert.True(t, p.IsTransient(http.StatusTooManyRequests))
	assert.False(t, p.IsTransient(http.StatusBadGateway))
}

func TestPolicyWait(t *testing.T) {
	t.Parallel()

	t.Run("waits the scheduled delay", func(t *testing.T) {
		t.Parallel()

		p := DefaultPolicy().WithSchedule(20 * time.Millisecond)

		start := time.Now()
		err := p.Wait(context.Background(), 0)
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
	})

	t.Run("returns early on canceled context", func(t *testing.T) {
		t.Parallel()

		p := DefaultPolicy().WithSchedule(5 * time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		start := time.Now()
		err := p.Wait(ctx, 0)
		elapsed := time.Since(start)

		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, elapsed, time.Second)
	})
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "attempting", StateAttempting.String())
	assert.Equal(t, "retry_scheduled", StateRetryScheduled.String())
	assert.Equal(t, "success", StateSuccess.String())
	assert.Equal(t, "exhausted", StateExhausted.String())
	assert.Equal(t, "unknown", State(99).String())
}
