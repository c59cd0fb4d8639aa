package provider

import (
	"net/http"
	"testing"
)

func TestKindRetryability(t *testing.T) {
	cases := []struct {
		kind      ErrorKind
		retryable bool
	}{
		{ErrNetwork, true},
		{ErrAPI, true},
		{ErrRateLimit, true},
		{ErrTimeout, true},
		{ErrUnknown, true},
		{ErrAuth, false},
		{ErrConfiguration, false},
	}
	for _, tc := range cases {
		if got := tc.kind.Retryable(); got != tc.retryable {
			t.Errorf("%s.Retryable() = %v, want %v", tc.kind, got, tc.retryable)
		}
	}
}

func TestClassifyDerivesRetryable(t *testing.T) {
	e := Classify(ErrAuth, "mailtm", "token rejected", WithStatus(http.StatusUnauthorized))
	if e.Retryable {
		t.Error("auth error must not be retryable")
	}
	if e.HTTPStatus != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", e.HTTPStatus)
	}
	if e.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}

	e = Classify(ErrRateLimit, "guerrilla", "slow down")
	if !e.Retryable {
		t.Error("rate limit error must be retryable")
	}
}

func TestKindFromHTTPStatus(t *testing.T) {
	cases := []struct {
		status int
		want   ErrorKind
	}{
		{http.StatusUnauthorized, ErrAuth},
		{http.StatusForbidden, ErrAuth},
		{http.StatusTooManyRequests, ErrRateLimit},
		{http.StatusRequestTimeout, ErrTimeout},
		{http.StatusGatewayTimeout, ErrTimeout},
		{http.StatusNotFound, ErrAPI},
		{http.StatusInternalServerError, ErrAPI},
		{http.StatusBadGateway, ErrAPI},
		{200, ErrUnknown},
	}
	for _, tc := range cases {
		if got := KindFromHTTPStatus(tc.status); got != tc.want {
			t.Errorf("KindFromHTTPStatus(%d) = %s, want %s", tc.status, got, tc.want)
		}
	}
}

func TestErrorString(t *testing.T) {
	e := Classify(ErrNetwork, "onesec", "connection refused")
	want := "onesec: network: connection refused"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
}
