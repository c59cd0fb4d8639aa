// Package httpclient issues outbound vendor HTTP calls with per-attempt
// timeout, bounded retry and increasing backoff. It retries transport-level
// failures only; a completed HTTP exchange is returned to the caller whatever
// its status code, and classification happens one layer up in the adapter.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/inboxmux/inboxmux/internal/logging"
)

// defaultBackoffBase is the base delay multiplied by the attempt index.
const defaultBackoffBase = 250 * time.Millisecond

// Request describes a single logical vendor call.
type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte

	// Timeout bounds each individual attempt, not the whole call.
	Timeout time.Duration

	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int
}

// Response is the decoded outcome of a completed HTTP exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// Attempts is how many tries the exchange took, including the first.
	Attempts int
}

// IsSuccess reports whether the status code is in the 2xx range.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// TransportError is returned when no HTTP exchange could be completed. It
// carries the attempt count so callers can surface it in diagnostics.
type TransportError struct {
	Method   string
	URL      string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s failed after %d attempts: %v", e.Method, e.URL, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AttemptCount extracts the attempt count from an Invoke error, or 1 when
// the error carries none.
func AttemptCount(err error) int {
	var te *TransportError
	if errors.As(err, &te) && te.Attempts > 0 {
		return te.Attempts
	}
	return 1
}

// Client executes Requests over a shared pooled transport.
type Client struct {
	hc          *http.Client
	backoffBase time.Duration
}

// Option customises Client construction.
type Option func(*Client)

// WithProxy routes outbound calls through the given proxy URL.
func WithProxy(proxyURL string) Option {
	return func(c *Client) {
		if proxyURL == "" {
			return
		}
		c.hc.Transport = TransportForProxy(proxyURL)
	}
}

// WithBackoffBase overrides the base retry delay. Useful in tests.
func WithBackoffBase(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.backoffBase = d
		}
	}
}

// WithRoundTripper replaces the transport entirely. Useful in tests.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.hc.Transport = rt
		}
	}
}

// New returns a Client over the shared transport.
func New(opts ...Option) *Client {
	c := &Client{
		hc:          &http.Client{Transport: SharedTransport},
		backoffBase: defaultBackoffBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Invoke performs the request, retrying transport failures up to
// req.MaxRetries additional times with linearly increasing delay. On
// exhaustion the last observed error is returned unclassified. A response
// with a non-2xx status is NOT an error at this layer.
func (c *Client) Invoke(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	maxAttempts := req.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			wait := c.backoffBase * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return nil, &TransportError{Method: req.Method, URL: req.URL, Attempts: attempt, Err: ctx.Err()}
			case <-time.After(wait):
			}
			log.Debugf("retrying %s %s (attempt %d/%d)", req.Method, req.URL, attempt+1, maxAttempts)
		}

		resp, err := c.attempt(ctx, req)
		if err == nil {
			resp.Attempts = attempt + 1
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, &TransportError{Method: req.Method, URL: req.URL, Attempts: attempt + 1, Err: lastErr}
		}
	}
	return nil, &TransportError{Method: req.Method, URL: req.URL, Attempts: maxAttempts, Err: lastErr}
}

func (c *Client) attempt(ctx context.Context, req Request) (*Response, error) {
	attemptCtx := ctx
	var cancel context.CancelFunc
	if req.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, err
	}
	for key, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	httpResp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, err
	}

	decoded, err := decodeResponseBody(httpResp.Body, httpResp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, err
	}
	defer func() { _ = decoded.Close() }()

	body, err := io.ReadAll(decoded)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
	}, nil
}
