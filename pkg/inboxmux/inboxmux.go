// Package inboxmux provides the public API for embedding inboxmux as a
// library. It wraps the internal implementation with a stable, minimal API
// surface.
package inboxmux

import (
	"github.com/inboxmux/inboxmux/internal/api"
	"github.com/inboxmux/inboxmux/internal/config"
	"github.com/inboxmux/inboxmux/internal/httpclient"
	"github.com/inboxmux/inboxmux/internal/provider"
	"github.com/inboxmux/inboxmux/internal/providers/guerrilla"
	"github.com/inboxmux/inboxmux/internal/providers/mailtm"
	"github.com/inboxmux/inboxmux/internal/providers/onesec"
	"github.com/inboxmux/inboxmux/internal/usage"
)

// Config is the application configuration.
type Config = config.Config

// ProviderConfig is the per-vendor routing configuration.
type ProviderConfig = config.Provider

// Provider is the vendor adapter contract.
type Provider = provider.Provider

// Capabilities declares what a vendor adapter can do.
type Capabilities = provider.Capabilities

// Envelope is the uniform result wrapper for adapter operations.
type Envelope = provider.Envelope

// Error is the typed provider failure.
type Error = provider.Error

// Registry routes operations to registered adapters.
type Registry = provider.Registry

// RouteConfig is the routing state supplied at registration.
type RouteConfig = provider.RouteConfig

// Message is the normalized mail item.
type Message = provider.Message

// CreatedAddress is the normalized address-creation result.
type CreatedAddress = provider.CreatedAddress

// HealthSnapshot is the point-in-time availability view of one adapter.
type HealthSnapshot = provider.HealthSnapshot

// Statistics is the cumulative usage view of one adapter.
type Statistics = provider.Statistics

// Server is the HTTP API server.
type Server = api.Server

// Persister is the SQLite usage recorder.
type Persister = usage.Persister

// HTTPClient is the resilient outbound vendor client.
type HTTPClient = httpclient.Client

// NewConfig creates a new default configuration.
func NewConfig() *Config {
	return config.NewDefaultConfig()
}

// LoadConfig loads configuration from the specified path.
func LoadConfig(path string) (*Config, error) {
	return config.LoadConfig(path)
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return provider.NewRegistry()
}

// NewHTTPClient creates an outbound client, optionally routed via proxyURL.
func NewHTTPClient(proxyURL string) *HTTPClient {
	return httpclient.New(httpclient.WithProxy(proxyURL))
}

// NewMailTM creates the mail.tm adapter.
func NewMailTM(cfg ProviderConfig, hc *HTTPClient) Provider {
	return mailtm.New(cfg, hc)
}

// NewGuerrilla creates the Guerrilla Mail adapter.
func NewGuerrilla(cfg ProviderConfig, hc *HTTPClient) Provider {
	return guerrilla.New(cfg, hc)
}

// NewOneSec creates the 1secmail adapter.
func NewOneSec(cfg ProviderConfig, hc *HTTPClient) Provider {
	return onesec.New(cfg, hc)
}

// NewServer creates the HTTP API server over a registry. The persister may
// be nil to disable usage persistence.
func NewServer(cfg *Config, reg *Registry, persister *Persister) *Server {
	return api.NewServer(cfg, reg, persister)
}
