// Package provider defines the vendor adapter contract, the typed error
// taxonomy, the uniform result envelope and the registry that routes
// operations to the best eligible adapter.
package provider

import (
	"context"
	"time"
)

// HealthStatus is the coarse availability state of an adapter.
type HealthStatus string

const (
	StatusActive      HealthStatus = "active"
	StatusInactive    HealthStatus = "inactive"
	StatusError       HealthStatus = "error"
	StatusRateLimited HealthStatus = "rate_limited"
	StatusMaintenance HealthStatus = "maintenance"
)

// CreateRequest asks for a new disposable address. All fields are optional;
// an adapter ignores hints it cannot honour only if the caller did not route
// by capability first.
type CreateRequest struct {
	// Username is the desired local part. Empty means vendor-generated.
	Username string `json:"username,omitempty"`

	// Domain is the desired domain. Empty means adapter's default choice.
	Domain string `json:"domain,omitempty"`

	// ExpiresIn is the requested lifetime for vendors that support it.
	ExpiresIn time.Duration `json:"expires_in,omitempty"`
}

// CreatedAddress is the normalized result of CreateAddress.
type CreatedAddress struct {
	Address  string `json:"address"`
	Username string `json:"username"`
	Domain   string `json:"domain"`
	Provider string `json:"provider"`

	// AccessToken is the vendor session credential needed for later reads,
	// opaque to callers. Empty for keyless vendors.
	AccessToken string `json:"access_token,omitempty"`

	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ListQuery selects messages for an address.
type ListQuery struct {
	Address     string `json:"address"`
	AccessToken string `json:"access_token,omitempty"`

	// Limit caps the returned slice; zero means no cap.
	Limit int `json:"limit,omitempty"`

	// Offset skips that many messages after filtering.
	Offset int `json:"offset,omitempty"`

	// UnreadOnly filters to unread messages before pagination applies.
	UnreadOnly bool `json:"unread_only,omitempty"`

	// Since drops messages received before this instant. Zero means no
	// time filter. Applied with UnreadOnly before pagination.
	Since time.Time `json:"since,omitempty"`
}

// FetchRequest identifies one message to retrieve in full.
type FetchRequest struct {
	Address     string `json:"address"`
	MessageID   string `json:"message_id"`
	AccessToken string `json:"access_token,omitempty"`
}

// Attachment describes one message attachment without its content.
type Attachment struct {
	ID          string `json:"id,omitempty"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// Message is the normalized mail item shape shared by list and fetch.
// List results typically carry Preview only; fetch fills the bodies.
type Message struct {
	ID          string       `json:"id"`
	From        string       `json:"from"`
	To          string       `json:"to,omitempty"`
	Subject     string       `json:"subject"`
	Preview     string       `json:"preview,omitempty"`
	TextBody    string       `json:"text_body,omitempty"`
	HTMLBody    string       `json:"html_body,omitempty"`
	Unread      bool         `json:"unread"`
	ReceivedAt  time.Time    `json:"received_at"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Provider    string       `json:"provider"`
}

// HealthSnapshot is the point-in-time availability view of one adapter.
type HealthSnapshot struct {
	Provider       string       `json:"provider"`
	Status         HealthStatus `json:"status"`
	LastChecked    time.Time    `json:"last_checked"`
	ResponseTimeMs int64        `json:"response_time_ms,omitempty"`
	ErrorCount     int64        `json:"error_count"`
	SuccessRate    float64      `json:"success_rate"`
	Uptime         float64      `json:"uptime"`
	LastError      string       `json:"last_error,omitempty"`
}

// Statistics is the cumulative usage view of one adapter.
type Statistics struct {
	Provider              string     `json:"provider"`
	TotalRequests         int64      `json:"total_requests"`
	SuccessfulRequests    int64      `json:"successful_requests"`
	FailedRequests        int64      `json:"failed_requests"`
	AverageResponseTimeMs int64      `json:"average_response_time_ms"`
	RequestsToday         int64      `json:"requests_today"`
	ErrorsToday           int64      `json:"errors_today"`
	LastRequestAt         *time.Time `json:"last_request_at,omitempty"`
}

// Provider is the contract every vendor adapter fulfils. Operations never
// return a Go error; failures travel inside the Envelope as a typed *Error.
type Provider interface {
	// Name returns the stable lowercase identifier used in routing and config.
	Name() string

	// Capabilities advertises what this adapter can do.
	Capabilities() Capabilities

	// Domains lists the mail domains this adapter is known to serve.
	// May be empty for vendors with fully dynamic domain pools.
	Domains() []string

	CreateAddress(ctx context.Context, req CreateRequest) *Envelope
	ListMessages(ctx context.Context, q ListQuery) *Envelope
	FetchMessage(ctx context.Context, req FetchRequest) *Envelope

	// Health returns the cached availability snapshot, probing connectivity
	// lazily on first call.
	Health(ctx context.Context) HealthSnapshot

	// Statistics returns cumulative counters since process start.
	Statistics() Statistics

	// TestConnectivity performs one lightweight vendor request, refreshes the
	// cached probe state and returns the observed latency.
	TestConnectivity(ctx context.Context) (time.Duration, error)
}
