package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"syscall"
)

// Transport failure classes used for logging and metric labels.
const (
	FailureTimeout           = "timeout"
	FailureConnectionRefused = "connection_refused"
	FailureConnectionReset   = "connection_reset"
	FailureDNS               = "dns"
	FailureEOF               = "eof"
	FailureCanceled          = "canceled"
	FailureOther             = "other"
)

// IsCanceled reports whether the error is a context cancellation.
// Deadline expiry is deliberately not matched: the error from a
// per-attempt client timeout satisfies errors.Is(err,
// context.DeadlineExceeded), and that is a retryable transport timeout,
// not a client walking away.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// ClassifyTransportError maps a transport-level dispatch error to a
// bounded set of failure classes.
func ClassifyTransportError(err error) string {
	if err == nil {
		return FailureOther
	}

	if IsCanceled(err) {
		return FailureCanceled
	}

	// An expired attempt deadline is a hung upstream, not cancellation.
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return FailureDNS
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return FailureConnectionRefused
	}

	if errors.Is(err, syscall.ECONNRESET) {
		return FailureConnectionReset
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return FailureTimeout
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return FailureEOF
	}

	return FailureOther
}
