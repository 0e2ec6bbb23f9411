package retry

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Kind classifies a remote call failure for the retry policy.
type Kind int

const (
	// KindTerminal marks failures not worth retrying (not found, bad request,
	// permission denied). Terminal failures abort the retry loop immediately.
	KindTerminal Kind = iota
	// KindUnavailable marks backend or network unavailability.
	KindUnavailable
	// KindRateLimited marks resource-exhaustion and rate-limit rejections.
	KindRateLimited
	// KindTimeout marks deadline-exceeded and I/O timeout failures.
	KindTimeout
	// KindInternal marks internal backend errors.
	KindInternal
)

// Retryable reports whether a failure of this kind should be retried.
func (k Kind) Retryable() bool {
	return k != KindTerminal
}

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindRateLimited:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	case KindInternal:
		return "internal"
	default:
		return "terminal"
	}
}

// Error tags an underlying failure with its classification. Call boundaries
// (the storage layer, HTTP clients) classify once at the point the failure is
// observed; the retry loop only inspects the tag.
type Error struct {
	Kind Kind
	Err  error
}

// Error returns the tagged error message.
func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Unavailable tags err as backend unavailability.
func Unavailable(err error) error {
	return &Error{Kind: KindUnavailable, Err: err}
}

// RateLimited tags err as a rate-limit rejection.
func RateLimited(err error) error {
	return &Error{Kind: KindRateLimited, Err: err}
}

// Timeout tags err as a timeout.
func Timeout(err error) error {
	return &Error{Kind: KindTimeout, Err: err}
}

// Internal tags err as an internal backend error.
func Internal(err error) error {
	return &Error{Kind: KindInternal, Err: err}
}

// Terminal tags err as not worth retrying.
func Terminal(err error) error {
	return &Error{Kind: KindTerminal, Err: err}
}

// Substring fallbacks for failures that reach the retry loop without a tag.
// Matching is case-sensitive; the structured checks above it are authoritative.
var substringKinds = []struct {
	pattern string
	kind    Kind
}{
	{"rate limit", KindRateLimited},
	{"timeout", KindTimeout},
	{"network", KindUnavailable},
}

// Classify derives the failure kind for err. Tagged errors win; then structured
// stdlib checks (context deadline, net timeouts); then the substring heuristic.
// Anything unrecognized is terminal so malformed requests fail fast.
func Classify(err error) Kind {
	if err == nil {
		return KindTerminal
	}

	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindUnavailable
	}

	msg := err.Error()
	for _, s := range substringKinds {
		if strings.Contains(msg, s.pattern) {
			return s.kind
		}
	}

	return KindTerminal
}
