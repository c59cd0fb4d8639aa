package guerrilla

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/inboxmux/inboxmux/internal/config"
	"github.com/inboxmux/inboxmux/internal/httpclient"
	"github.com/inboxmux/inboxmux/internal/provider"
)

func testAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.Provider{
		Name:           providerName,
		Enabled:        true,
		BaseURL:        srv.URL,
		TimeoutSeconds: 5,
	}, httpclient.New(httpclient.WithBackoffBase(time.Millisecond)))
}

func vendorHandler(t *testing.T) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("f") {
		case "get_email_address":
			_, _ = w.Write([]byte(`{"email_addr":"abcdef+xyz@sharklasers.com","sid_token":"sid-1"}`))
		case "set_email_user":
			if r.URL.Query().Get("sid_token") != "sid-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			user := r.URL.Query().Get("email_user")
			_, _ = fmt.Fprintf(w, `{"email_addr":"%s@sharklasers.com","sid_token":"sid-1"}`, user)
		case "get_email_list":
			if r.URL.Query().Get("sid_token") == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"list":[
				{"mail_id":"1","mail_from":"no-reply@guerrillamail.com","mail_subject":"Welcome","mail_excerpt":"hi","mail_timestamp":"1755683100","mail_read":"1"},
				{"mail_id":"7","mail_from":"alice@x.test","mail_subject":"ping","mail_excerpt":"are you there","mail_timestamp":"1755683400","mail_read":"0"}
			]}`))
		case "fetch_email":
			if r.URL.Query().Get("email_id") != "7" {
				_, _ = w.Write([]byte(`false`))
				return
			}
			_, _ = w.Write([]byte(`{"mail_id":"7","mail_from":"alice@x.test","mail_subject":"ping","mail_body":"<div>are you there?</div>","mail_timestamp":1755683400,"mail_read":0}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}
}

func TestCreateAddressStoresSession(t *testing.T) {
	a := testAdapter(t, vendorHandler(t))

	env := a.CreateAddress(context.Background(), provider.CreateRequest{})
	if !env.Success {
		t.Fatalf("create failed: %v", env.Err)
	}
	created := env.Data.(*provider.CreatedAddress)
	if created.Address != "abcdef+xyz@sharklasers.com" {
		t.Errorf("address = %q", created.Address)
	}
	if created.AccessToken != "sid-1" {
		t.Errorf("access token = %q, want sid-1", created.AccessToken)
	}
	if created.Domain != "sharklasers.com" {
		t.Errorf("domain = %q", created.Domain)
	}
	if a.sessionFor(created.Address) != "sid-1" {
		t.Error("session not stored for fallback lookup")
	}
}

func TestCreateAddressCustomUsername(t *testing.T) {
	a := testAdapter(t, vendorHandler(t))

	env := a.CreateAddress(context.Background(), provider.CreateRequest{Username: "Tester"})
	if !env.Success {
		t.Fatalf("create failed: %v", env.Err)
	}
	created := env.Data.(*provider.CreatedAddress)
	if created.Address != "tester@sharklasers.com" {
		t.Errorf("address = %q, want tester@sharklasers.com", created.Address)
	}
	if created.Username != "tester" {
		t.Errorf("username = %q", created.Username)
	}
}

func TestListMessagesUsesStoredSession(t *testing.T) {
	a := testAdapter(t, vendorHandler(t))
	env := a.CreateAddress(context.Background(), provider.CreateRequest{})
	created := env.Data.(*provider.CreatedAddress)

	// No token supplied; the fallback map provides the session.
	env = a.ListMessages(context.Background(), provider.ListQuery{Address: created.Address})
	if !env.Success {
		t.Fatalf("list failed: %v", env.Err)
	}
	msgs := env.Data.([]provider.Message)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if !msgs[1].Unread || msgs[0].Unread {
		t.Error("mail_read flags not normalized")
	}
	if msgs[1].ReceivedAt.IsZero() {
		t.Error("timestamp not parsed")
	}
}

func TestListMessagesWithoutSessionFails(t *testing.T) {
	a := testAdapter(t, vendorHandler(t))
	env := a.ListMessages(context.Background(), provider.ListQuery{Address: "unknown@sharklasers.com"})
	if env.Success {
		t.Fatal("expected failure without session")
	}
	if env.Err.Kind != provider.ErrAuth || env.Err.Retryable {
		t.Errorf("kind = %s retryable=%v, want non-retryable auth", env.Err.Kind, env.Err.Retryable)
	}
}

func TestMissingSessionFailureCountsInStatistics(t *testing.T) {
	a := testAdapter(t, vendorHandler(t))

	if env := a.ListMessages(context.Background(), provider.ListQuery{Address: "unknown@sharklasers.com"}); env.Success {
		t.Fatal("expected failure without a session")
	}
	if env := a.FetchMessage(context.Background(), provider.FetchRequest{Address: "unknown@sharklasers.com", MessageID: "7"}); env.Success {
		t.Fatal("expected failure without a session")
	}

	s := a.Statistics()
	if s.TotalRequests != 2 || s.FailedRequests != 2 {
		t.Errorf("counters = %d total / %d failed, want 2/2", s.TotalRequests, s.FailedRequests)
	}
}

func TestListMessagesUnreadFilter(t *testing.T) {
	a := testAdapter(t, vendorHandler(t))
	env := a.ListMessages(context.Background(), provider.ListQuery{AccessToken: "sid-1", UnreadOnly: true})
	if !env.Success {
		t.Fatalf("list failed: %v", env.Err)
	}
	msgs := env.Data.([]provider.Message)
	if len(msgs) != 1 || msgs[0].ID != "7" {
		t.Fatalf("got %v, want only unread message 7", msgs)
	}
}

func TestFetchMessage(t *testing.T) {
	a := testAdapter(t, vendorHandler(t))
	env := a.FetchMessage(context.Background(), provider.FetchRequest{MessageID: "7", AccessToken: "sid-1"})
	if !env.Success {
		t.Fatalf("fetch failed: %v", env.Err)
	}
	msg := env.Data.(*provider.Message)
	if msg.HTMLBody != "<div>are you there?</div>" {
		t.Errorf("body = %q", msg.HTMLBody)
	}
}

func TestFetchUnknownMessage(t *testing.T) {
	a := testAdapter(t, vendorHandler(t))
	env := a.FetchMessage(context.Background(), provider.FetchRequest{MessageID: "999", AccessToken: "sid-1"})
	if env.Success {
		t.Fatal("expected failure for unknown message")
	}
	if env.Err.Kind != provider.ErrAPI {
		t.Errorf("kind = %s, want api", env.Err.Kind)
	}
	if env.Err.HTTPStatus != http.StatusNotFound {
		t.Errorf("status = %d, want 404", env.Err.HTTPStatus)
	}
}

func TestSessionMapEviction(t *testing.T) {
	a := testAdapter(t, vendorHandler(t))
	for i := 0; i < maxSessions+10; i++ {
		a.storeSession(fmt.Sprintf("user%d@grr.la", i), "sid")
	}
	if len(a.sessions) != maxSessions {
		t.Errorf("session map holds %d entries, want %d", len(a.sessions), maxSessions)
	}
	if a.sessionFor("user0@grr.la") != "" {
		t.Error("oldest session not evicted")
	}
	if a.sessionFor(fmt.Sprintf("user%d@grr.la", maxSessions+9)) == "" {
		t.Error("newest session missing")
	}
}

func TestHealthUsesThrowawaySession(t *testing.T) {
	a := testAdapter(t, vendorHandler(t))
	snap := a.Health(context.Background())
	if snap.Status != provider.StatusActive {
		t.Errorf("status = %s, want active", snap.Status)
	}
}
