// Package config provides configuration management for the inbox-mux server.
// It handles loading and parsing YAML configuration files and provides
// structured access to application settings including server port, client
// API keys, logging, usage persistence, and per-provider routing options.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Port is the TCP port the HTTP API listens on.
	Port int `yaml:"port" json:"port"`

	// APIKeys is a list of bearer secrets accepted from API clients.
	APIKeys []string `yaml:"api-keys,omitempty" json:"api-keys,omitempty"`

	// DisableAuth allows all requests without authentication.
	DisableAuth bool `yaml:"disable-auth" json:"disable-auth"`

	// Debug enables debug-level logging and gin debug mode.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile redirects logs to a rotating file instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// ProxyURL is an optional proxy for outbound vendor requests
	// (http, https or socks5 scheme).
	ProxyURL string `yaml:"proxy-url,omitempty" json:"proxy-url,omitempty"`

	// UsageStatisticsEnabled toggles SQLite persistence of usage counters.
	UsageStatisticsEnabled bool `yaml:"usage-statistics-enabled" json:"usage-statistics-enabled"`

	// UsagePersistence tunes the async usage writer.
	UsagePersistence UsagePersistence `yaml:"usage-persistence" json:"usage-persistence"`

	// Providers configures the upstream temp-mail vendors.
	Providers []Provider `yaml:"providers,omitempty" json:"providers,omitempty"`
}

// UsagePersistence holds settings for the SQLite usage recorder.
type UsagePersistence struct {
	DBPath            string `yaml:"db-path,omitempty" json:"db-path,omitempty"`
	BatchSize         int    `yaml:"batch-size,omitempty" json:"batch-size,omitempty"`
	FlushIntervalSecs int    `yaml:"flush-interval-seconds,omitempty" json:"flush-interval-seconds,omitempty"`
	RetentionDays     int    `yaml:"retention-days,omitempty" json:"retention-days,omitempty"`
}

// RateLimit is an advisory requests-per-window descriptor. The core does not
// enforce it; it is surfaced so operators can align client behaviour with
// vendor limits.
type RateLimit struct {
	Requests      int `yaml:"requests,omitempty" json:"requests,omitempty"`
	WindowSeconds int `yaml:"window-seconds,omitempty" json:"window-seconds,omitempty"`
}

// Provider holds per-vendor routing configuration. Adapters receive a copy at
// construction and must not mutate it.
type Provider struct {
	// Name identifies the adapter implementation (mailtm, guerrilla, onesec).
	Name string `yaml:"name" json:"name"`

	// DisplayName is the human-readable vendor name.
	DisplayName string `yaml:"display-name,omitempty" json:"display-name,omitempty"`

	// Enabled marks the provider as eligible for routing.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Priority orders enabled providers; lower is preferred.
	Priority int `yaml:"priority" json:"priority"`

	// BaseURL overrides the vendor API base URL.
	BaseURL string `yaml:"base-url,omitempty" json:"base-url,omitempty"`

	// APIKey is the vendor credential, when the vendor requires one.
	APIKey string `yaml:"api-key,omitempty" json:"api-key,omitempty"`

	// TimeoutSeconds bounds each vendor call attempt.
	TimeoutSeconds int `yaml:"timeout-seconds,omitempty" json:"timeout-seconds,omitempty"`

	// Retries is the number of additional attempts after a transport failure.
	Retries int `yaml:"retries,omitempty" json:"retries,omitempty"`

	// RateLimit is the advisory vendor rate limit.
	RateLimit RateLimit `yaml:"rate-limit,omitempty" json:"rate-limit,omitempty"`
}

// Timeout returns the per-attempt timeout as a duration.
func (p *Provider) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

const (
	defaultPort              = 8317
	defaultTimeoutSeconds    = 10
	defaultRetries           = 2
	defaultUsageDBPath       = "usage/usage.db"
	defaultBatchSize         = 100
	defaultFlushIntervalSecs = 5
	defaultRetentionDays     = 30
)

// NewDefaultConfig returns a configuration with all known providers enabled
// at ascending priority.
func NewDefaultConfig() *Config {
	return &Config{
		Port: defaultPort,
		UsagePersistence: UsagePersistence{
			DBPath:            defaultUsageDBPath,
			BatchSize:         defaultBatchSize,
			FlushIntervalSecs: defaultFlushIntervalSecs,
			RetentionDays:     defaultRetentionDays,
		},
		Providers: []Provider{
			{Name: "mailtm", DisplayName: "Mail.tm", Enabled: true, Priority: 1, TimeoutSeconds: defaultTimeoutSeconds, Retries: defaultRetries},
			{Name: "guerrilla", DisplayName: "Guerrilla Mail", Enabled: true, Priority: 2, TimeoutSeconds: defaultTimeoutSeconds, Retries: defaultRetries},
			{Name: "onesec", DisplayName: "1secMail", Enabled: true, Priority: 3, TimeoutSeconds: defaultTimeoutSeconds, Retries: defaultRetries},
		},
	}
}

// LoadConfig reads and parses the YAML configuration at path, applies
// defaults and environment overrides, and returns the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return &cfg, nil
}

// SaveConfig writes cfg back to path as YAML.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: failed to marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: failed to write %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Port <= 0 {
		c.Port = defaultPort
	}
	if c.UsagePersistence.DBPath == "" {
		c.UsagePersistence.DBPath = defaultUsageDBPath
	}
	if c.UsagePersistence.BatchSize <= 0 {
		c.UsagePersistence.BatchSize = defaultBatchSize
	}
	if c.UsagePersistence.FlushIntervalSecs <= 0 {
		c.UsagePersistence.FlushIntervalSecs = defaultFlushIntervalSecs
	}
	if c.UsagePersistence.RetentionDays <= 0 {
		c.UsagePersistence.RetentionDays = defaultRetentionDays
	}
	for i := range c.Providers {
		p := &c.Providers[i]
		p.Name = strings.ToLower(strings.TrimSpace(p.Name))
		if p.TimeoutSeconds <= 0 {
			p.TimeoutSeconds = defaultTimeoutSeconds
		}
		if p.Retries < 0 {
			p.Retries = 0
		}
	}
}

// applyEnvOverrides pulls secrets from the environment so they can stay out
// of the config file. INBOXMUX_API_KEY adds a client bearer secret;
// INBOXMUX_<PROVIDER>_API_KEY overrides a vendor credential.
func (c *Config) applyEnvOverrides() {
	if key := strings.TrimSpace(os.Getenv("INBOXMUX_API_KEY")); key != "" {
		if !containsString(c.APIKeys, key) {
			c.APIKeys = append(c.APIKeys, key)
		}
	}
	for i := range c.Providers {
		envKey := "INBOXMUX_" + strings.ToUpper(c.Providers[i].Name) + "_API_KEY"
		if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
			c.Providers[i].APIKey = v
		}
	}
}

// EnabledProviders returns enabled provider configs sorted by ascending
// priority, keeping declaration order for equal priorities.
func (c *Config) EnabledProviders() []Provider {
	out := make([]Provider, 0, len(c.Providers))
	for _, p := range c.Providers {
		if p.Enabled {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// ProviderByName returns the configuration entry for name, or nil.
func (c *Config) ProviderByName(name string) *Provider {
	name = strings.ToLower(strings.TrimSpace(name))
	for i := range c.Providers {
		if c.Providers[i].Name == name {
			return &c.Providers[i]
		}
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
