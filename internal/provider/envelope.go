package provider

import (
	"time"

	"github.com/google/uuid"
)

// Meta carries per-call diagnostics attached to every Envelope.
type Meta struct {
	Provider       string `json:"provider"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	RequestID      string `json:"request_id"`

	// RetryCount is how many transport retries the call needed.
	RetryCount int `json:"retry_count,omitempty"`
}

// Envelope is the uniform result wrapper for every adapter operation.
// Exactly one of Data and Err is set, matching Success.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Err     *Error `json:"error,omitempty"`
	Meta    Meta   `json:"metadata"`
}

func newMeta(providerName string, start time.Time) Meta {
	return Meta{
		Provider:       providerName,
		ResponseTimeMs: time.Since(start).Milliseconds(),
		RequestID:      uuid.NewString(),
	}
}

// OK wraps a successful payload with fresh metadata.
func OK(providerName string, start time.Time, data any) *Envelope {
	return &Envelope{
		Success: true,
		Data:    data,
		Meta:    newMeta(providerName, start),
	}
}

// Fail wraps a classified error with fresh metadata.
func Fail(providerName string, start time.Time, err *Error) *Envelope {
	return &Envelope{
		Success: false,
		Err:     err,
		Meta:    newMeta(providerName, start),
	}
}

// WithRetries records the transport attempt count, expressed as retries
// beyond the first attempt.
func (e *Envelope) WithRetries(attempts int) *Envelope {
	if attempts > 1 {
		e.Meta.RetryCount = attempts - 1
	}
	return e
}

// Latency returns the recorded response time.
func (e *Envelope) Latency() time.Duration {
	return time.Duration(e.Meta.ResponseTimeMs) * time.Millisecond
}
