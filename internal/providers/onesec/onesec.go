// Package onesec adapts the 1secmail API to the provider contract. The
// vendor is keyless: any login/domain pair in its pool is a live mailbox, so
// address creation is mostly local and reads need no access token.
package onesec

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/inboxmux/inboxmux/internal/config"
	"github.com/inboxmux/inboxmux/internal/httpclient"
	"github.com/inboxmux/inboxmux/internal/provider"
)

const (
	providerName   = "onesec"
	defaultBaseURL = "https://www.1secmail.com/api/v1/"

	vendorTimeLayout = "2006-01-02 15:04:05"
)

// Adapter implements provider.Provider over the 1secmail API.
type Adapter struct {
	cfg     config.Provider
	hc      *httpclient.Client
	tracker *provider.Tracker
	baseURL string

	domainMu sync.RWMutex
	domains  []string
}

// New returns a 1secmail adapter using the given HTTP client.
func New(cfg config.Provider, hc *httpclient.Client) *Adapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{
		cfg:     cfg,
		hc:      hc,
		tracker: provider.NewTracker(providerName),
		baseURL: baseURL,
	}
}

func (a *Adapter) Name() string { return providerName }

func (a *Adapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		CreateAddress:  true,
		CustomUsername: true,
		CustomDomain:   true,
		ListMessages:   true,
		FetchMessage:   true,
		MessageHTML:    true,
		Attachments:    true,
	}
}

func (a *Adapter) Domains() []string {
	a.domainMu.RLock()
	defer a.domainMu.RUnlock()
	out := make([]string, len(a.domains))
	copy(out, a.domains)
	return out
}

func (a *Adapter) call(ctx context.Context, params url.Values) (*httpclient.Response, error) {
	return a.hc.Invoke(ctx, httpclient.Request{
		Method:     http.MethodGet,
		URL:        a.baseURL + "?" + params.Encode(),
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

func (a *Adapter) apiError(resp *httpclient.Response) *provider.Error {
	kind := provider.KindFromHTTPStatus(resp.StatusCode)
	msg := strings.TrimSpace(string(resp.Body))
	if msg == "" || len(msg) > 200 {
		msg = http.StatusText(resp.StatusCode)
	}
	return provider.Classify(kind, providerName, msg, provider.WithStatus(resp.StatusCode))
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

func (a *Adapter) fetchDomains(ctx context.Context) ([]string, *provider.Error) {
	params := url.Values{}
	params.Set("action", "getDomainList")

	resp, err := a.call(ctx, params)
	if err != nil {
		return nil, a.transportError(err)
	}
	if !resp.IsSuccess() {
		return nil, a.apiError(resp)
	}

	var domains []string
	gjson.ParseBytes(resp.Body).ForEach(func(_, d gjson.Result) bool {
		if s := strings.ToLower(d.String()); s != "" {
			domains = append(domains, s)
		}
		return true
	})
	if len(domains) == 0 {
		return nil, provider.Classify(provider.ErrAPI, providerName, "vendor returned empty domain pool")
	}

	a.domainMu.Lock()
	a.domains = domains
	a.domainMu.Unlock()
	return domains, nil
}

func (a *Adapter) CreateAddress(ctx context.Context, req provider.CreateRequest) *provider.Envelope {
	start := time.Now()

	domains, perr := a.fetchDomains(ctx)
	if perr != nil {
		return a.failure(start, perr)
	}

	domain := strings.ToLower(req.Domain)
	if domain == "" {
		domain = domains[0]
	} else {
		found := false
		for _, d := range domains {
			if d == domain {
				found = true
				break
			}
		}
		if !found {
			perr := provider.Classify(provider.ErrConfiguration, providerName,
				"domain "+domain+" is not in the vendor pool")
			return a.failure(start, perr)
		}
	}

	username := strings.ToLower(req.Username)
	if username == "" {
		username = strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	}

	a.tracker.RecordSuccess(time.Since(start))
	return provider.OK(providerName, start, &provider.CreatedAddress{
		Address:  username + "@" + domain,
		Username: username,
		Domain:   domain,
		Provider: providerName,
	})
}

// splitAddress extracts the vendor's login/domain pair.
func splitAddress(address string) (login, domain string, ok bool) {
	at := strings.LastIndexByte(address, '@')
	if at <= 0 || at == len(address)-1 {
		return "", "", false
	}
	return strings.ToLower(address[:at]), strings.ToLower(address[at+1:]), true
}

func (a *Adapter) ListMessages(ctx context.Context, q provider.ListQuery) *provider.Envelope {
	start := time.Now()
	login, domain, ok := splitAddress(q.Address)
	if !ok {
		perr := provider.Classify(provider.ErrConfiguration, providerName, "malformed address: "+q.Address)
		return a.failure(start, perr)
	}

	params := url.Values{}
	params.Set("action", "getMessages")
	params.Set("login", login)
	params.Set("domain", domain)

	resp, err := a.call(ctx, params)
	if err != nil {
		return a.failure(start, a.transportError(err)).WithRetries(httpclient.AttemptCount(err))
	}
	if !resp.IsSuccess() {
		return a.failure(start, a.apiError(resp)).WithRetries(resp.Attempts)
	}

	var msgs []provider.Message
	gjson.ParseBytes(resp.Body).ForEach(func(_, item gjson.Result) bool {
		msgs = append(msgs, provider.Message{
			ID:      item.Get("id").String(),
			From:    item.Get("from").String(),
			To:      q.Address,
			Subject: item.Get("subject").String(),
			// The vendor tracks no read state; everything stays unread.
			Unread:     true,
			Provider:   providerName,
			ReceivedAt: parseVendorTime(item.Get("date").String()),
		})
		return true
	})

	a.tracker.RecordSuccess(time.Since(start))
	return provider.OK(providerName, start, provider.FilterPage(msgs, q)).WithRetries(resp.Attempts)
}

func (a *Adapter) FetchMessage(ctx context.Context, req provider.FetchRequest) *provider.Envelope {
	start := time.Now()
	login, domain, ok := splitAddress(req.Address)
	if !ok {
		perr := provider.Classify(provider.ErrConfiguration, providerName, "malformed address: "+req.Address)
		return a.failure(start, perr)
	}

	params := url.Values{}
	params.Set("action", "readMessage")
	params.Set("login", login)
	params.Set("domain", domain)
	params.Set("id", req.MessageID)

	resp, err := a.call(ctx, params)
	if err != nil {
		return a.failure(start, a.transportError(err)).WithRetries(httpclient.AttemptCount(err))
	}
	if !resp.IsSuccess() {
		return a.failure(start, a.apiError(resp)).WithRetries(resp.Attempts)
	}

	root := gjson.ParseBytes(resp.Body)
	if !root.Get("id").Exists() {
		perr := provider.Classify(provider.ErrAPI, providerName, "message not found",
			provider.WithStatus(http.StatusNotFound))
		return a.failure(start, perr)
	}

	msg := &provider.Message{
		ID:         root.Get("id").String(),
		From:       root.Get("from").String(),
		To:         req.Address,
		Subject:    root.Get("subject").String(),
		TextBody:   root.Get("textBody").String(),
		HTMLBody:   root.Get("htmlBody").String(),
		Unread:     true,
		Provider:   providerName,
		ReceivedAt: parseVendorTime(root.Get("date").String()),
	}
	if msg.HTMLBody == "" {
		msg.HTMLBody = root.Get("body").String()
	}

	root.Get("attachments").ForEach(func(_, att gjson.Result) bool {
		msg.Attachments = append(msg.Attachments, provider.Attachment{
			Filename:    att.Get("filename").String(),
			ContentType: att.Get("contentType").String(),
			Size:        att.Get("size").Int(),
		})
		return true
	})

	a.tracker.RecordSuccess(time.Since(start))
	return provider.OK(providerName, start, msg).WithRetries(resp.Attempts)
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
	return a.tracker.Reprobe(ctx, a.probe)
}

func parseVendorTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(vendorTimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
