// Package api provides the HTTP boundary: a gin server exposing the
// normalized disposable-email operations, provider health and statistics,
// with bearer-token auth and CORS.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/inboxmux/inboxmux/internal/config"
	log "github.com/inboxmux/inboxmux/internal/logging"
	"github.com/inboxmux/inboxmux/internal/provider"
	"github.com/inboxmux/inboxmux/internal/usage"
)

// Server is the API server over a provider registry.
type Server struct {
	engine    *gin.Engine
	server    *http.Server
	cfg       atomic.Pointer[config.Config]
	registry  *provider.Registry
	persister *usage.Persister
}

// NewServer builds the gin engine, middleware chain and routes.
func NewServer(cfg *config.Config, reg *provider.Registry, persister *usage.Persister) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(log.GinLogger(), log.GinRecovery(), corsMiddleware())

	s := &Server{
		engine:    engine,
		registry:  reg,
		persister: persister,
	}
	s.cfg.Store(cfg)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: engine,
	}
	return s
}

// Handler exposes the engine for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Start listens and serves until Stop is called. Blocking.
func (s *Server) Start() error {
	log.Infof("API server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server without interrupting active requests.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// UpdateConfig swaps in a reloaded configuration: auth keys take effect on
// the next request and the registry's routing state follows the new
// enabled/priority settings.
func (s *Server) UpdateConfig(cfg *config.Config) {
	s.cfg.Store(cfg)
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		s.registry.SetRouteConfig(strings.ToLower(p.Name), provider.RouteConfig{
			Enabled:  p.Enabled,
			Priority: p.Priority,
		})
	}
	log.Info("server configuration updated")
}

func (s *Server) setupRoutes() {
	s.engine.GET("/", s.handleIndex)

	v1 := s.engine.Group("/v1", s.authMiddleware())
	v1.POST("/addresses", s.handleCreateAddress)
	v1.GET("/addresses/:address/messages", s.handleListMessages)
	v1.GET("/addresses/:address/messages/:id", s.handleFetchMessage)
	v1.GET("/providers/health", s.handleProvidersHealth)
	v1.GET("/providers/stats", s.handleProvidersStats)
	v1.POST("/providers/:name/test", s.handleTestProvider)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Access-Token")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// authMiddleware validates the bearer token (or X-API-Key header) against
// the configured keys. With auth disabled or no keys configured, every
// request passes.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := s.cfg.Load()
		if cfg.DisableAuth || len(cfg.APIKeys) == 0 {
			c.Next()
			return
		}

		key := strings.TrimSpace(c.GetHeader("X-API-Key"))
		if key == "" {
			auth := strings.TrimSpace(c.GetHeader("Authorization"))
			if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
				key = strings.TrimSpace(after)
			}
		}
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			return
		}
		for _, allowed := range cfg.APIKeys {
			if key == allowed {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
	}
}
