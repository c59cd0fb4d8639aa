// Package guerrilla adapts the Guerrilla Mail JSON API to the provider
// contract. The vendor is session-based: every call carries a sid_token
// obtained at address creation. The token travels back to the caller as the
// access token, and a bounded in-memory map keeps a fallback copy so reads
// that arrive without a token still work while the session is warm.
package guerrilla

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/inboxmux/inboxmux/internal/config"
	"github.com/inboxmux/inboxmux/internal/httpclient"
	"github.com/inboxmux/inboxmux/internal/provider"
)

const (
	providerName   = "guerrilla"
	defaultBaseURL = "https://api.guerrillamail.com/ajax.php"

	// maxSessions bounds the address -> sid_token fallback map. The vendor
	// expires sessions after about an hour, so old entries are worthless.
	maxSessions = 512
)

var knownDomains = []string{
	"guerrillamail.com",
	"guerrillamailblock.com",
	"sharklasers.com",
	"grr.la",
	"pokemail.net",
	"spam4.me",
}

// Adapter implements provider.Provider over the Guerrilla Mail API.
type Adapter struct {
	cfg     config.Provider
	hc      *httpclient.Client
	tracker *provider.Tracker
	baseURL string

	sessMu   sync.Mutex
	sessions map[string]string
	order    []string
}

// New returns a Guerrilla Mail adapter using the given HTTP client.
func New(cfg config.Provider, hc *httpclient.Client) *Adapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{
		cfg:      cfg,
		hc:       hc,
		tracker:  provider.NewTracker(providerName),
		baseURL:  baseURL,
		sessions: make(map[string]string),
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
	}
}

func (a *Adapter) Domains() []string {
	out := make([]string, len(knownDomains))
	copy(out, knownDomains)
	return out
}

// storeSession remembers the sid_token for an address, evicting the oldest
// entry once the map is full.
func (a *Adapter) storeSession(address, sid string) {
	a.sessMu.Lock()
	defer a.sessMu.Unlock()
	if _, exists := a.sessions[address]; !exists {
		if len(a.order) >= maxSessions {
			oldest := a.order[0]
			a.order = a.order[1:]
			delete(a.sessions, oldest)
		}
		a.order = append(a.order, address)
	}
	a.sessions[address] = sid
}

func (a *Adapter) sessionFor(address string) string {
	a.sessMu.Lock()
	defer a.sessMu.Unlock()
	return a.sessions[strings.ToLower(address)]
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
	msg := gjson.GetBytes(resp.Body, "error").String()
	if msg == "" {
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

func (a *Adapter) CreateAddress(ctx context.Context, req provider.CreateRequest) *provider.Envelope {
	start := time.Now()

	params := url.Values{}
	params.Set("f", "get_email_address")
	params.Set("lang", "en")

	resp, err := a.call(ctx, params)
	if err != nil {
		return a.failure(start, a.transportError(err)).WithRetries(httpclient.AttemptCount(err))
	}
	if !resp.IsSuccess() {
		return a.failure(start, a.apiError(resp)).WithRetries(resp.Attempts)
	}

	address := gjson.GetBytes(resp.Body, "email_addr").String()
	sid := gjson.GetBytes(resp.Body, "sid_token").String()
	if address == "" || sid == "" {
		perr := provider.Classify(provider.ErrAPI, providerName, "vendor response missing address or session token")
		return a.failure(start, perr)
	}

	if req.Username != "" {
		params = url.Values{}
		params.Set("f", "set_email_user")
		params.Set("email_user", strings.ToLower(req.Username))
		params.Set("sid_token", sid)

		resp, err = a.call(ctx, params)
		if err != nil {
			return a.failure(start, a.transportError(err)).WithRetries(httpclient.AttemptCount(err))
		}
		if !resp.IsSuccess() {
			return a.failure(start, a.apiError(resp)).WithRetries(resp.Attempts)
		}
		if renamed := gjson.GetBytes(resp.Body, "email_addr").String(); renamed != "" {
			address = renamed
		}
		if refreshed := gjson.GetBytes(resp.Body, "sid_token").String(); refreshed != "" {
			sid = refreshed
		}
	}

	address = strings.ToLower(address)
	a.storeSession(address, sid)

	at := strings.IndexByte(address, '@')
	created := &provider.CreatedAddress{
		Address:     address,
		Provider:    providerName,
		AccessToken: sid,
	}
	if at > 0 {
		created.Username = address[:at]
		created.Domain = address[at+1:]
	}

	a.tracker.RecordSuccess(time.Since(start))
	return provider.OK(providerName, start, created).WithRetries(resp.Attempts)
}

// resolveSID prefers the caller-supplied token over the fallback map.
func (a *Adapter) resolveSID(address, token string) string {
	if token != "" {
		return token
	}
	return a.sessionFor(address)
}

func (a *Adapter) ListMessages(ctx context.Context, q provider.ListQuery) *provider.Envelope {
	start := time.Now()
	sid := a.resolveSID(q.Address, q.AccessToken)
	if sid == "" {
		perr := provider.Classify(provider.ErrAuth, providerName, "no session for address; supply the access token from creation")
		return a.failure(start, perr)
	}

	params := url.Values{}
	params.Set("f", "get_email_list")
	params.Set("offset", "0")
	params.Set("sid_token", sid)

	resp, err := a.call(ctx, params)
	if err != nil {
		return a.failure(start, a.transportError(err)).WithRetries(httpclient.AttemptCount(err))
	}
	if !resp.IsSuccess() {
		return a.failure(start, a.apiError(resp)).WithRetries(resp.Attempts)
	}

	var msgs []provider.Message
	gjson.GetBytes(resp.Body, "list").ForEach(func(_, item gjson.Result) bool {
		msgs = append(msgs, provider.Message{
			ID:         item.Get("mail_id").String(),
			From:       item.Get("mail_from").String(),
			Subject:    item.Get("mail_subject").String(),
			Preview:    item.Get("mail_excerpt").String(),
			Unread:     item.Get("mail_read").Int() == 0,
			Provider:   providerName,
			ReceivedAt: time.Unix(item.Get("mail_timestamp").Int(), 0).UTC(),
		})
		return true
	})

	a.tracker.RecordSuccess(time.Since(start))
	return provider.OK(providerName, start, provider.FilterPage(msgs, q)).WithRetries(resp.Attempts)
}

func (a *Adapter) FetchMessage(ctx context.Context, req provider.FetchRequest) *provider.Envelope {
	start := time.Now()
	sid := a.resolveSID(req.Address, req.AccessToken)
	if sid == "" {
		perr := provider.Classify(provider.ErrAuth, providerName, "no session for address; supply the access token from creation")
		return a.failure(start, perr)
	}

	params := url.Values{}
	params.Set("f", "fetch_email")
	params.Set("email_id", req.MessageID)
	params.Set("sid_token", sid)

	resp, err := a.call(ctx, params)
	if err != nil {
		return a.failure(start, a.transportError(err)).WithRetries(httpclient.AttemptCount(err))
	}
	if !resp.IsSuccess() {
		return a.failure(start, a.apiError(resp)).WithRetries(resp.Attempts)
	}

	root := gjson.ParseBytes(resp.Body)
	if !root.Get("mail_id").Exists() {
		perr := provider.Classify(provider.ErrAPI, providerName, "message not found",
			provider.WithStatus(http.StatusNotFound))
		return a.failure(start, perr)
	}

	msg := &provider.Message{
		ID:         root.Get("mail_id").String(),
		From:       root.Get("mail_from").String(),
		To:         root.Get("mail_recipient").String(),
		Subject:    root.Get("mail_subject").String(),
		Preview:    root.Get("mail_excerpt").String(),
		HTMLBody:   root.Get("mail_body").String(),
		Unread:     root.Get("mail_read").Int() == 0,
		Provider:   providerName,
		ReceivedAt: time.Unix(root.Get("mail_timestamp").Int(), 0).UTC(),
	}

	a.tracker.RecordSuccess(time.Since(start))
	return provider.OK(providerName, start, msg).WithRetries(resp.Attempts)
}

// probe asks for a throwaway session, the cheapest authenticated round-trip
// this vendor offers.
func (a *Adapter) probe(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	params := url.Values{}
	params.Set("f", "get_email_address")
	params.Set("lang", "en")

	resp, err := a.call(ctx, params)
	if err != nil {
		return time.Since(start), err
	}
	if !resp.IsSuccess() {
		return time.Since(start), a.apiError(resp)
	}
	if gjson.GetBytes(resp.Body, "sid_token").String() == "" {
		return time.Since(start), errors.New("vendor response missing session token")
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
