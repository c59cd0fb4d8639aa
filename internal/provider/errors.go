package provider

import (
	"net/http"
	"time"
)

// ErrorKind classifies a provider failure for retry and routing decisions.
type ErrorKind string

const (
	// ErrNetwork covers transport-level failures: DNS, dial, reset.
	ErrNetwork ErrorKind = "network"

	// ErrAPI covers non-2xx vendor responses and malformed payloads.
	ErrAPI ErrorKind = "api"

	// ErrRateLimit marks vendor throttling. Retryable after client backoff.
	ErrRateLimit ErrorKind = "rate_limit"

	// ErrAuth marks rejected credentials. Never retryable.
	ErrAuth ErrorKind = "auth"

	// ErrConfiguration marks invalid adapter configuration. Never retryable.
	ErrConfiguration ErrorKind = "configuration"

	// ErrTimeout marks an abandoned attempt that exceeded its deadline.
	ErrTimeout ErrorKind = "timeout"

	// ErrUnknown is the fallback for unclassified failures.
	ErrUnknown ErrorKind = "unknown"
)

// Retryable reports whether a failure of this kind may succeed on retry.
// Only auth and configuration failures are permanent.
func (k ErrorKind) Retryable() bool {
	return k != ErrAuth && k != ErrConfiguration
}

// Error is the structured failure value every adapter operation surfaces.
// It is created once at the point of failure and never mutated afterwards.
type Error struct {
	Kind       ErrorKind      `json:"type"`
	Provider   string         `json:"provider"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"status_code,omitempty"`
	Retryable  bool           `json:"retryable"`
	Timestamp  time.Time      `json:"timestamp"`
	Context    map[string]any `json:"context,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Provider + ": " + string(e.Kind) + ": " + e.Message
}

// StatusCode exposes the upstream status for boundary-layer mapping.
func (e *Error) StatusCode() int {
	if e == nil {
		return 0
	}
	return e.HTTPStatus
}

// ErrorOption customises a classified error.
type ErrorOption func(*Error)

// WithStatus attaches the upstream HTTP status code.
func WithStatus(code int) ErrorOption {
	return func(e *Error) { e.HTTPStatus = code }
}

// WithContext attaches free-form diagnostic context.
func WithContext(ctx map[string]any) ErrorOption {
	return func(e *Error) { e.Context = ctx }
}

// Classify builds a typed Error. Retryability is derived from the kind and
// cannot be overridden: auth and configuration failures are permanent,
// everything else is retryable by convention.
func Classify(kind ErrorKind, providerName, message string, opts ...ErrorOption) *Error {
	e := &Error{
		Kind:      kind,
		Provider:  providerName,
		Message:   message,
		Retryable: kind.Retryable(),
		Timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// KindFromHTTPStatus maps an upstream status code to an error kind.
func KindFromHTTPStatus(statusCode int) ErrorKind {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuth
	case http.StatusTooManyRequests:
		return ErrRateLimit
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ErrTimeout
	default:
		if statusCode >= 400 {
			return ErrAPI
		}
		return ErrUnknown
	}
}
