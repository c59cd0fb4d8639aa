package httpclient

import (
	"bytes"
	"compress/gzip"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient() *Client {
	return New(WithBackoffBase(time.Millisecond))
}

func TestInvokeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	resp, err := testClient().Invoke(context.Background(), Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if !resp.IsSuccess() {
		t.Errorf("expected success, got status %d", resp.StatusCode)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Errorf("unexpected body %q", resp.Body)
	}
}

func TestNon2xxIsNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	resp, err := testClient().Invoke(context.Background(), Request{URL: srv.URL, MaxRetries: 3})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", resp.StatusCode)
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 attempt for non-2xx, got %d", calls.Load())
	}
}

func TestTransportErrorExhaustsRetries(t *testing.T) {
	// Listener closed immediately so every attempt fails at dial time.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	start := time.Now()
	_, err = testClient().Invoke(context.Background(), Request{URL: "http://" + addr, MaxRetries: 2})
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if got := AttemptCount(err); got != 3 {
		t.Errorf("AttemptCount = %d, want 3 (1 + 2 retries)", got)
	}
	// 2 retries with 1ms base: waits of 1ms and 2ms. Just assert it returned
	// quickly rather than hanging.
	if time.Since(start) > 5*time.Second {
		t.Error("retry loop took too long")
	}
}

func TestResponseReportsAttempts(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("hijacking unsupported")
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Fatalf("hijack failed: %v", err)
			}
			// Drop the first connection so the attempt fails at transport level.
			_ = conn.Close()
			return
		}
		_, _ = w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	resp, err := testClient().Invoke(context.Background(), Request{URL: srv.URL, MaxRetries: 2})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if resp.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", resp.Attempts)
	}
}

func TestTimeoutCountsAsAttempt(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := testClient().Invoke(context.Background(), Request{
		URL:        srv.URL,
		Timeout:    20 * time.Millisecond,
		MaxRetries: 2,
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts (1 + 2 retries), got %d", got)
	}
}

func TestCallerContextCancelStopsRetries(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = New(WithBackoffBase(time.Hour)).Invoke(ctx, Request{URL: "http://" + addr, MaxRetries: 5})
	if err == nil {
		t.Fatal("expected error with cancelled context")
	}
}

func TestGzipResponseDecoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, _ = gz.Write([]byte("hello compressed"))
		_ = gz.Close()
		w.Header().Set("Content-Encoding", "gzip")
		// Prevent the stdlib from double-encoding.
		w.Header().Set("Content-Length", "")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	req := Request{URL: srv.URL, Headers: http.Header{"Accept-Encoding": []string{"gzip"}}}
	resp, err := testClient().Invoke(context.Background(), req)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if string(resp.Body) != "hello compressed" {
		t.Errorf("expected decompressed body, got %q", resp.Body)
	}
}
