package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeTempConfig(t, `
providers:
  - name: MailTM
    enabled: true
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Port != defaultPort {
		t.Errorf("expected default port %d, got %d", defaultPort, cfg.Port)
	}
	p := cfg.ProviderByName("mailtm")
	if p == nil {
		t.Fatal("provider name not normalized to lowercase")
	}
	if p.TimeoutSeconds != defaultTimeoutSeconds {
		t.Errorf("expected default timeout, got %d", p.TimeoutSeconds)
	}
	if cfg.UsagePersistence.BatchSize != defaultBatchSize {
		t.Errorf("expected default batch size, got %d", cfg.UsagePersistence.BatchSize)
	}
}

func TestEnabledProvidersOrdering(t *testing.T) {
	path := writeTempConfig(t, `
providers:
  - name: onesec
    enabled: true
    priority: 3
  - name: guerrilla
    enabled: false
    priority: 1
  - name: mailtm
    enabled: true
    priority: 2
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	enabled := cfg.EnabledProviders()
	if len(enabled) != 2 {
		t.Fatalf("expected 2 enabled providers, got %d", len(enabled))
	}
	if enabled[0].Name != "mailtm" || enabled[1].Name != "onesec" {
		t.Errorf("unexpected order: %s, %s", enabled[0].Name, enabled[1].Name)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("INBOXMUX_API_KEY", "client-secret")
	t.Setenv("INBOXMUX_MAILTM_API_KEY", "vendor-secret")

	path := writeTempConfig(t, `
providers:
  - name: mailtm
    enabled: true
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if len(cfg.APIKeys) != 1 || cfg.APIKeys[0] != "client-secret" {
		t.Errorf("expected env client key, got %v", cfg.APIKeys)
	}
	if cfg.ProviderByName("mailtm").APIKey != "vendor-secret" {
		t.Error("expected env vendor key override")
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Port = 9000
	dir := t.TempDir()
	path := filepath.Join(dir, "out.yaml")
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Port != 9000 {
		t.Errorf("expected port 9000, got %d", loaded.Port)
	}
	if len(loaded.Providers) != len(cfg.Providers) {
		t.Errorf("provider count mismatch: %d vs %d", len(loaded.Providers), len(cfg.Providers))
	}
}
