package retry

import (
	"context"
	"net/http"
	"time"
)

// State is a state of the retry state machine.
type State int

// States of the retry state machine. Each dispatch attempt moves the
// machine from Attempting to exactly one of the other states.
const (
	// StateAttempting means a dispatch attempt is in progress.
	StateAttempting State = iota

	// StateRetryScheduled means the last attempt failed transiently and
	// another attempt will run after the scheduled delay.
	StateRetryScheduled

	// StateSuccess means a real upstream response is available to hand to
	// the client. This includes a transient-status response on the final
	// attempt: a real response is always preferred over a synthesized one.
	StateSuccess

	// StateExhausted means every attempt failed at the transport level and
	// no upstream response was ever obtained.
	StateExhausted
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateRetryScheduled:
		return "retry_scheduled"
	case StateSuccess:
		return "success"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Default retry policy values.
var (
	// DefaultMaxRetries is the default number of retries beyond the
	// first attempt.
	DefaultMaxRetries = 3

	// DefaultSchedule is the default inter-attempt delay schedule,
	// indexed by attempt number.
	DefaultSchedule = []time.Duration{
		100 * time.Millisecond,
		500 * time.Millisecond,
		2 * time.Second,
	}

	// DefaultTransientStatuses are the upstream status codes treated as
	// retry-worthy.
	DefaultTransientStatuses = []int{
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
	}
)

// Policy defines the retry policy configuration. The delay schedule is a
// fixed ordered sequence, not a computed backoff: attempt i sleeps
// Schedule[i] before attempt i+1, clamping to the last entry when the
// schedule is shorter than the retry count.
type Policy struct {
	// MaxRetries is the maximum number of retries beyond the first
	// attempt. Total attempts never exceed 1 + MaxRetries.
	MaxRetries int

	// Schedule is the ordered sequence of inter-attempt delays, indexed
	// by attempt number.
	Schedule []time.Duration

	// TransientStatuses are the upstream status codes considered
	// transient.
	TransientStatuses []int

	transient map[int]struct{}
}

// DefaultPolicy returns a Policy with default values.
func DefaultPolicy() *Policy {
	p := &Policy{
		MaxRetries:        DefaultMaxRetries,
		Schedule:          append([]time.Duration(nil), DefaultSchedule...),
		TransientStatuses: append([]int(nil), DefaultTransientStatuses...),
	}
	p.Validate()
	return p
}

// NoRetryPolicy returns a policy that never retries.
func NoRetryPolicy() *Policy {
	p := &Policy{MaxRetries: 0}
	p.Validate()
	return p
}

// Validate normalizes the policy and builds the transient lookup set.
func (p *Policy) Validate() {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if len(p.Schedule) == 0 {
		p.Schedule = append([]time.Duration(nil), DefaultSchedule...)
	}
	if len(p.TransientStatuses) == 0 {
		p.TransientStatuses = append([]int(nil), DefaultTransientStatuses...)
	}

	p.transient = make(map[int]struct{}, len(p.TransientStatuses))
	for _, code := range p.TransientStatuses {
		p.transient[code] = struct{}{}
	}
}

// IsTransient reports whether the status code is in the transient set.
func (p *Policy) IsTransient(statusCode int) bool {
	if p.transient == nil {
		p.Validate()
	}
	_, ok := p.transient[statusCode]
	return ok
}

// Delay returns the configured delay for the given attempt index,
// clamping to the last schedule entry.
func (p *Policy) Delay(attempt int) time.Duration {
	if len(p.Schedule) == 0 {
		p.Validate()
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(p.Schedule) {
		attempt = len(p.Schedule) - 1
	}
	return p.Schedule[attempt]
}

// Outcome is the result of one dispatch attempt: either a received
// upstream response (Err == nil, StatusCode set) or a transport-level
// failure (Err != nil).
type Outcome struct {
	StatusCode int
	Err        error
}

// Transition applies the state machine transition rule to the outcome
// of attempt number `attempt` (0-based).
//
// A response with a non-transient status terminates the loop
// immediately, even on the first attempt. A transient status on the
// final attempt still yields Success: the stale response is handed to
// the client as-is rather than fabricating a failure. Only a transport
// failure on the final attempt yields Exhausted, because in that case
// no response exists at all.
func (p *Policy) Transition(attempt int, o Outcome) State {
	final := attempt >= p.MaxRetries

	if o.Err != nil {
		if final {
			return StateExhausted
		}
		return StateRetryScheduled
	}

	if p.IsTransient(o.StatusCode) && !final {
		return StateRetryScheduled
	}

	return StateSuccess
}

// Wait sleeps for the delay scheduled after the given attempt. It
// returns early with the context error when the context is canceled,
// so an abandoned client does not keep the retry loop alive.
func (p *Policy) Wait(ctx context.Context, attempt int) error {
	delay := p.Delay(attempt)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WithMaxRetries sets the maximum retries.
func (p *Policy) WithMaxRetries(n int) *Policy {
	p.MaxRetries = n
	p.Validate()
	return p
}

// WithSchedule sets the delay schedule.
func (p *Policy) WithSchedule(schedule ...time.Duration) *Policy {
	p.Schedule = schedule
	p.Validate()
	return p
}

// WithTransientStatuses sets the transient status set.
func (p *Policy) WithTransientStatuses(codes ...int) *Policy {
	p.TransientStatuses = codes
	p.Validate()
	return p
}
