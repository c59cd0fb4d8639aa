package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/inboxmux/inboxmux/internal/buildinfo"
	"github.com/inboxmux/inboxmux/internal/provider"
	"github.com/inboxmux/inboxmux/internal/usage"
)

// statusForError maps a classified provider error to an HTTP status. Vendor
// failures surface as gateway errors; failures the caller can correct map to
// 4xx.
func statusForError(e *provider.Error) int {
	if e == nil {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case provider.ErrRateLimit:
		return http.StatusTooManyRequests
	case provider.ErrConfiguration:
		return http.StatusBadRequest
	case provider.ErrTimeout:
		return http.StatusGatewayTimeout
	case provider.ErrAuth:
		// No upstream status means the caller omitted or mangled the access
		// token; otherwise the vendor rejected our credentials.
		if e.HTTPStatus == 0 {
			return http.StatusUnauthorized
		}
		return http.StatusBadGateway
	case provider.ErrNetwork, provider.ErrAPI:
		if e.HTTPStatus == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respond writes the envelope, choosing the status from success or the
// classified error, and records the outcome for persistence.
func (s *Server) respond(c *gin.Context, operation string, env *provider.Envelope, successStatus int) {
	s.record(operation, env)
	if env.Success {
		c.JSON(successStatus, env)
		return
	}
	c.JSON(statusForError(env.Err), env)
}

func (s *Server) record(operation string, env *provider.Envelope) {
	if s.persister == nil || env == nil || !s.cfg.Load().UsageStatisticsEnabled {
		return
	}
	rec := usage.Record{
		Provider:    env.Meta.Provider,
		Operation:   operation,
		RequestID:   env.Meta.RequestID,
		RequestedAt: time.Now(),
		Failed:      !env.Success,
		LatencyMs:   env.Meta.ResponseTimeMs,
	}
	if env.Err != nil {
		rec.ErrorKind = string(env.Err.Kind)
		rec.StatusCode = env.Err.HTTPStatus
	}
	s.persister.Enqueue(rec)
}

func (s *Server) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":      "inboxmux",
		"version":   buildinfo.Version,
		"providers": s.registry.Names(),
	})
}

type createAddressRequest struct {
	Provider         string `json:"provider"`
	Username         string `json:"username"`
	Domain           string `json:"domain"`
	ExpiresInMinutes int    `json:"expires_in_minutes"`
}

func (s *Server) handleCreateAddress(c *gin.Context) {
	var body createAddressRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
	}

	var p provider.Provider
	if body.Provider != "" {
		name := strings.ToLower(body.Provider)
		p = s.registry.Provider(name)
		if p == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider: " + name})
			return
		}
		if !s.isEnabled(name) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "provider is disabled: " + name})
			return
		}
	} else {
		required := provider.Capabilities{CreateAddress: true}
		if body.Username != "" {
			required.CustomUsername = true
		}
		if body.Domain != "" {
			required.CustomDomain = true
		}
		if body.ExpiresInMinutes > 0 {
			required.ExpirationControl = true
		}
		p = s.registry.SelectBest(&required)
		if p == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no enabled provider satisfies the requested capabilities"})
			return
		}
	}

	env := p.CreateAddress(c.Request.Context(), provider.CreateRequest{
		Username:  body.Username,
		Domain:    body.Domain,
		ExpiresIn: time.Duration(body.ExpiresInMinutes) * time.Minute,
	})
	s.respond(c, "create_address", env, http.StatusCreated)
}

func (s *Server) isEnabled(name string) bool {
	for _, p := range s.registry.Enabled() {
		if p.Name() == name {
			return true
		}
	}
	return false
}

// resolveForAddress honours an explicit ?provider= override before falling
// back to domain-based routing.
func (s *Server) resolveForAddress(c *gin.Context, address string) provider.Provider {
	if name := strings.ToLower(c.Query("provider")); name != "" {
		if p := s.registry.Provider(name); p != nil {
			return p
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider: " + name})
		return nil
	}
	if p := s.registry.ResolveByAddress(address); p != nil {
		return p
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "no provider serves the domain of " + address})
	return nil
}

// accessToken reads the vendor session credential from header or query.
func accessToken(c *gin.Context) string {
	if t := c.GetHeader("X-Access-Token"); t != "" {
		return t
	}
	return c.Query("access_token")
}

func intQuery(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + ": " + raw})
		return 0, false
	}
	return v, true
}

// sinceQuery parses the optional RFC 3339 "since" parameter.
func sinceQuery(c *gin.Context) (time.Time, bool) {
	raw := c.Query("since")
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since: " + raw + " (expect RFC 3339)"})
		return time.Time{}, false
	}
	return t, true
}

func (s *Server) handleListMessages(c *gin.Context) {
	address := c.Param("address")
	p := s.resolveForAddress(c, address)
	if p == nil {
		return
	}

	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}
	offset, ok := intQuery(c, "offset")
	if !ok {
		return
	}
	since, ok := sinceQuery(c)
	if !ok {
		return
	}

	env := p.ListMessages(c.Request.Context(), provider.ListQuery{
		Address:     address,
		AccessToken: accessToken(c),
		Limit:       limit,
		Offset:      offset,
		UnreadOnly:  c.Query("unread_only") == "true",
		Since:       since,
	})
	s.respond(c, "list_messages", env, http.StatusOK)
}

func (s *Server) handleFetchMessage(c *gin.Context) {
	address := c.Param("address")
	p := s.resolveForAddress(c, address)
	if p == nil {
		return
	}

	env := p.FetchMessage(c.Request.Context(), provider.FetchRequest{
		Address:     address,
		MessageID:   c.Param("id"),
		AccessToken: accessToken(c),
	})
	s.respond(c, "fetch_message", env, http.StatusOK)
}

func (s *Server) handleProvidersHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"providers": s.registry.AllHealth(c.Request.Context()),
	})
}

func (s *Server) handleProvidersStats(c *gin.Context) {
	out := gin.H{
		"providers": s.registry.AllStatistics(),
	}
	if s.persister != nil {
		totals, err := s.persister.Totals(c.Request.Context(), time.Now().AddDate(0, 0, -1))
		if err == nil {
			out["persisted_24h"] = totals
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleTestProvider(c *gin.Context) {
	name := strings.ToLower(c.Param("name"))
	p := s.registry.Provider(name)
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider: " + name})
		return
	}

	latency, err := p.TestConnectivity(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"provider":   name,
			"success":    false,
			"latency_ms": latency.Milliseconds(),
			"error":      err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"provider":   name,
		"success":    true,
		"latency_ms": latency.Milliseconds(),
	})
}
