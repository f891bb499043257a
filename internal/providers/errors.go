package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies an API failure for the retry controller.
type ErrorKind int

const (
	// KindAuth means the credential was rejected. Fatal for the whole
	// run: every subsequent call would fail the same way.
	KindAuth ErrorKind = iota
	// KindRateLimit means the service asked us to slow down (429).
	KindRateLimit
	// KindTransient covers network failures, timeouts and 5xx responses.
	KindTransient
	// KindMalformed means the service answered but the response did not
	// parse into the expected judgment shape.
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindRateLimit:
		return "rate_limit"
	case KindTransient:
		return "transient"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// APIError is a classified failure from a provider call. Message never
// contains the credential; providers only put status text and truncated
// response bodies in it.
type APIError struct {
	Kind    ErrorKind
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// FromStatus maps an HTTP status code to a classified error.
func FromStatus(status int, body string) *APIError {
	var kind ErrorKind
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
	case status == http.StatusTooManyRequests:
		kind = KindRateLimit
	case status >= 500:
		kind = KindTransient
	default:
		// Other 4xx responses will not succeed on retry either, but
		// they are per-request problems, not credential problems.
		kind = KindMalformed
	}
	return &APIError{Kind: kind, Status: status, Message: truncate(body, 200)}
}

// Transient wraps a network-level failure (connection refused, reset,
// timeout) as a retryable error.
func Transient(err error) *APIError {
	return &APIError{Kind: KindTransient, Message: err.Error()}
}

// Malformed reports a response that does not match the expected shape.
func Malformed(format string, args ...any) *APIError {
	return &APIError{Kind: KindMalformed, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the failure kind from an error chain. Timeouts and
// context deadlines count as transient; unclassified errors default to
// transient so a flaky provider gets the benefit of a retry.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindTransient
}

// IsAuth reports whether err is a fatal authentication failure.
func IsAuth(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindAuth
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
