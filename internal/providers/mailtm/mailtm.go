// Package mailtm adapts the mail.tm REST API to the provider contract.
// mail.tm uses a bearer-token flow: an account is created with a generated
// password, exchanged for a JWT, and the JWT travels back to the caller as
// the opaque access token for later reads.
package mailtm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/inboxmux/inboxmux/internal/config"
	"github.com/inboxmux/inboxmux/internal/httpclient"
	log "github.com/inboxmux/inboxmux/internal/logging"
	"github.com/inboxmux/inboxmux/internal/provider"
)

const (
	providerName   = "mailtm"
	defaultBaseURL = "https://api.mail.tm"
)

// Adapter implements provider.Provider over the mail.tm API.
type Adapter struct {
	cfg     config.Provider
	hc      *httpclient.Client
	tracker *provider.Tracker
	baseURL string

	domainMu sync.RWMutex
	domains  []string
}

// New returns a mail.tm adapter using the given HTTP client.
func New(cfg config.Provider, hc *httpclient.Client) *Adapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{
		cfg:     cfg,
		hc:      hc,
		tracker: provider.NewTracker(providerName),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (a *Adapter) Name() string { return providerName }

func (a *Adapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		CreateAddress:  true,
		CustomUsername: true,
		ListMessages:   true,
		FetchMessage:   true,
		MessageHTML:    true,
		Attachments:    true,
	}
}

// Domains returns the vendor's current domain pool as last fetched. Empty
// until the first create or probe populates it.
func (a *Adapter) Domains() []string {
	a.domainMu.RLock()
	defer a.domainMu.RUnlock()
	out := make([]string, len(a.domains))
	copy(out, a.domains)
	return out
}

func (a *Adapter) request(ctx context.Context, method, path string, body []byte, token string) (*httpclient.Response, error) {
	headers := http.Header{}
	headers.Set("Accept", "application/json")
	if body != nil {
		headers.Set("Content-Type", "application/json")
	}
	if token != "" {
		headers.Set("Authorization", "Bearer "+token)
	}
	return a.hc.Invoke(ctx, httpclient.Request{
		Method:     method,
		URL:        a.baseURL + path,
		Headers:    headers,
		Body:       body,
		Timeout:    a.cfg.Timeout(),
		MaxRetries: a.cfg.Retries,
	})
}

func (a *Adapter) transportError(err error) *provider.Error {
	kind := provider.ErrNetwork
	if errors.Is(err, context.DeadlineExceeded) {
		kind = provider.ErrTimeout
	}
	return provider.Classify(kind, providerName, err.Error())
}

// failure records the outcome and wraps it. A throttling response is the
// vendor signal that flips health to rate_limited until the next success.
func (a *Adapter) failure(start time.Time, perr *provider.Error) *provider.Envelope {
	a.tracker.RecordFailure(perr)
	if perr.Kind == provider.ErrRateLimit {
		a.tracker.SetStatusOverride(provider.StatusRateLimited)
	}
	return provider.Fail(providerName, start, perr)
}

func (a *Adapter) apiError(resp *httpclient.Response) *provider.Error {
	msg := gjson.GetBytes(resp.Body, "message").String()
	if msg == "" {
		msg = gjson.GetBytes(resp.Body, "hydra:description").String()
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	kind := provider.KindFromHTTPStatus(resp.StatusCode)
	return provider.Classify(kind, providerName, msg, provider.WithStatus(resp.StatusCode))
}

// fetchDomains refreshes the cached domain pool and returns it.
func (a *Adapter) fetchDomains(ctx context.Context) ([]string, *provider.Error) {
	resp, err := a.request(ctx, http.MethodGet, "/domains", nil, "")
	if err != nil {
		return nil, a.transportError(err)
	}
	if !resp.IsSuccess() {
		return nil, a.apiError(resp)
	}

	var domains []string
	gjson.GetBytes(resp.Body, "hydra:member").ForEach(func(_, member gjson.Result) bool {
		if d := member.Get("domain").String(); d != "" && member.Get("isActive").Bool() {
			domains = append(domains, strings.ToLower(d))
		}
		return true
	})
	if len(domains) == 0 {
		return nil, provider.Classify(provider.ErrAPI, providerName, "vendor returned no active domains")
	}

	a.domainMu.Lock()
	a.domains = domains
	a.domainMu.Unlock()
	return domains, nil
}

func (a *Adapter) CreateAddress(ctx context.Context, req provider.CreateRequest) *provider.Envelope {
	start := time.Now()

	domain := strings.ToLower(req.Domain)
	if domain == "" {
		domains, perr := a.fetchDomains(ctx)
		if perr != nil {
			return a.failure(start, perr)
		}
		domain = domains[0]
	}

	username := strings.ToLower(req.Username)
	if username == "" {
		username = randomLocalPart()
	}
	address := username + "@" + domain
	password := uuid.NewString()

	body, _ := sjson.SetBytes([]byte(`{}`), "address", address)
	body, _ = sjson.SetBytes(body, "password", password)

	resp, err := a.request(ctx, http.MethodPost, "/accounts", body, "")
	if err != nil {
		return a.failure(start, a.transportError(err)).WithRetries(httpclient.AttemptCount(err))
	}
	if !resp.IsSuccess() {
		return a.failure(start, a.apiError(resp)).WithRetries(resp.Attempts)
	}

	token, perr := a.obtainToken(ctx, address, password)
	if perr != nil {
		return a.failure(start, perr)
	}

	a.tracker.RecordSuccess(time.Since(start))
	return provider.OK(providerName, start, &provider.CreatedAddress{
		Address:     address,
		Username:    username,
		Domain:      domain,
		Provider:    providerName,
		AccessToken: token,
	}).WithRetries(resp.Attempts)
}

func (a *Adapter) obtainToken(ctx context.Context, address, password string) (string, *provider.Error) {
	body, _ := sjson.SetBytes([]byte(`{}`), "address", address)
	body, _ = sjson.SetBytes(body, "password", password)

	resp, err := a.request(ctx, http.MethodPost, "/token", body, "")
	if err != nil {
		return "", a.transportError(err)
	}
	if !resp.IsSuccess() {
		return "", a.apiError(resp)
	}
	token := gjson.GetBytes(resp.Body, "token").String()
	if token == "" {
		return "", provider.Classify(provider.ErrAPI, providerName, "token missing from vendor response")
	}
	return token, nil
}

func (a *Adapter) ListMessages(ctx context.Context, q provider.ListQuery) *provider.Envelope {
	start := time.Now()
	if q.AccessToken == "" {
		perr := provider.Classify(provider.ErrAuth, providerName, "access token required for this vendor")
		return a.failure(start, perr)
	}

	resp, err := a.request(ctx, http.MethodGet, "/messages", nil, q.AccessToken)
	if err != nil {
		return a.failure(start, a.transportError(err)).WithRetries(httpclient.AttemptCount(err))
	}
	if !resp.IsSuccess() {
		return a.failure(start, a.apiError(resp)).WithRetries(resp.Attempts)
	}

	var msgs []provider.Message
	gjson.GetBytes(resp.Body, "hydra:member").ForEach(func(_, item gjson.Result) bool {
		msgs = append(msgs, parseListItem(item))
		return true
	})

	a.tracker.RecordSuccess(time.Since(start))
	return provider.OK(providerName, start, provider.FilterPage(msgs, q)).WithRetries(resp.Attempts)
}

func parseListItem(item gjson.Result) provider.Message {
	m := provider.Message{
		ID:         item.Get("id").String(),
		From:       item.Get("from.address").String(),
		To:         item.Get("to.0.address").String(),
		Subject:    item.Get("subject").String(),
		Preview:    item.Get("intro").String(),
		Unread:     !item.Get("seen").Bool(),
		Provider:   providerName,
		ReceivedAt: parseTime(item.Get("createdAt").String()),
	}
	if item.Get("hasAttachments").Bool() {
		m.Attachments = []provider.Attachment{}
	}
	return m
}

func (a *Adapter) FetchMessage(ctx context.Context, req provider.FetchRequest) *provider.Envelope {
	start := time.Now()
	if req.AccessToken == "" {
		perr := provider.Classify(provider.ErrAuth, providerName, "access token required for this vendor")
		return a.failure(start, perr)
	}

	resp, err := a.request(ctx, http.MethodGet, "/messages/"+req.MessageID, nil, req.AccessToken)
	if err != nil {
		return a.failure(start, a.transportError(err)).WithRetries(httpclient.AttemptCount(err))
	}
	if !resp.IsSuccess() {
		return a.failure(start, a.apiError(resp)).WithRetries(resp.Attempts)
	}

	root := gjson.ParseBytes(resp.Body)
	msg := provider.Message{
		ID:         root.Get("id").String(),
		From:       root.Get("from.address").String(),
		To:         root.Get("to.0.address").String(),
		Subject:    root.Get("subject").String(),
		Preview:    root.Get("intro").String(),
		TextBody:   root.Get("text").String(),
		Unread:     !root.Get("seen").Bool(),
		Provider:   providerName,
		ReceivedAt: parseTime(root.Get("createdAt").String()),
	}

	// html arrives as an array of fragments.
	var htmlParts []string
	root.Get("html").ForEach(func(_, part gjson.Result) bool {
		htmlParts = append(htmlParts, part.String())
		return true
	})
	msg.HTMLBody = strings.Join(htmlParts, "")

	root.Get("attachments").ForEach(func(_, att gjson.Result) bool {
		msg.Attachments = append(msg.Attachments, provider.Attachment{
			ID:          att.Get("id").String(),
			Filename:    att.Get("filename").String(),
			ContentType: att.Get("contentType").String(),
			Size:        att.Get("size").Int(),
		})
		return true
	})

	a.tracker.RecordSuccess(time.Since(start))
	return provider.OK(providerName, start, &msg).WithRetries(resp.Attempts)
}

func (a *Adapter) probe(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if _, perr := a.fetchDomains(ctx); perr != nil {
		return time.Since(start), perr
	}
	return time.Since(start), nil
}

func (a *Adapter) Health(ctx context.Context) provider.HealthSnapshot {
	return a.tracker.Health(ctx, a.cfg.Enabled, a.probe)
}

func (a *Adapter) Statistics() provider.Statistics {
	return a.tracker.Snapshot()
}

func (a *Adapter) TestConnectivity(ctx context.Context) (time.Duration, error) {
	latency, err := a.tracker.Reprobe(ctx, a.probe)
	if err != nil {
		log.Warnf("mailtm connectivity test failed: %v", err)
	}
	return latency, err
}

func randomLocalPart() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
