// Package retry implements the retry policy and attempt state machine
// for upstream dispatches.
//
// The retry loop is modeled as an explicit finite-state machine rather
// than nested control flow. Each attempt produces an Outcome (a real
// upstream response or a transport failure), and Policy.Transition maps
// the outcome to the next state:
//
//   - StateSuccess: a real response exists; hand it to the normalizer.
//     This includes a transient status on the final attempt — a stale
//     real response beats a fabricated failure.
//   - StateRetryScheduled: sleep the fixed delay for this attempt index
//     and re-dispatch.
//   - StateExhausted: every attempt failed at the transport level; no
//     response exists and the failure reporter takes over.
//
// The delay schedule is a fixed, ordered sequence of durations indexed
// by attempt number, not a computed backoff.
//
// # Usage
//
//	policy := retry.DefaultPolicy()
//	for attempt := 0; ; attempt++ {
//	    outcome := dispatch(ctx, attempt)
//	    switch policy.Transition(attempt, outcome) {
//	    case retry.StateSuccess:
//	        ...
//	    case retry.StateExhausted:
//	        ...
//	    case retry.StateRetryScheduled:
//	        if err := policy.Wait(ctx, attempt); err != nil {
//	            return // client went away
//	        }
//	    }
//	}
package retry
