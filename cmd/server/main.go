// Package main provides the entry point for the inboxmux server, a
// normalized REST API over rotating disposable-email vendors.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/inboxmux/inboxmux/internal/api"
	"github.com/inboxmux/inboxmux/internal/buildinfo"
	"github.com/inboxmux/inboxmux/internal/config"
	"github.com/inboxmux/inboxmux/internal/httpclient"
	"github.com/inboxmux/inboxmux/internal/logging"
	log "github.com/inboxmux/inboxmux/internal/logging"
	"github.com/inboxmux/inboxmux/internal/provider"
	"github.com/inboxmux/inboxmux/internal/providers/guerrilla"
	"github.com/inboxmux/inboxmux/internal/providers/mailtm"
	"github.com/inboxmux/inboxmux/internal/providers/onesec"
	"github.com/inboxmux/inboxmux/internal/usage"
	"github.com/inboxmux/inboxmux/internal/watcher"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

const defaultConfigPath = "config.yaml"

func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	fmt.Printf("inboxmux Version: %s, Commit: %s, BuiltAt: %s\n",
		buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	var configPath string
	var initConfig bool
	flag.StringVar(&configPath, "config", defaultConfigPath, "Configuration file path")
	flag.BoolVar(&initConfig, "init", false, "Write a default configuration file and exit")
	flag.Parse()

	if initConfig {
		doInitConfig(configPath)
		return
	}

	if wd, err := os.Getwd(); err == nil {
		if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad == nil {
			log.Debug("loaded environment from .env")
		}
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warnf("config file %s not found, using defaults", configPath)
			cfg = config.NewDefaultConfig()
		} else {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	logging.ConfigureLogOutput(cfg.LoggingToFile)
	if cfg.Debug {
		logging.SetLevel(logging.DebugLevel)
	}

	var persister *usage.Persister
	if cfg.UsageStatisticsEnabled && cfg.UsagePersistence.DBPath != "" {
		persister, err = usage.NewPersister(
			cfg.UsagePersistence.DBPath,
			cfg.UsagePersistence.BatchSize,
			cfg.UsagePersistence.FlushIntervalSecs,
			cfg.UsagePersistence.RetentionDays,
		)
		if err != nil {
			log.Warnf("usage persistence disabled: %v", err)
		}
	}

	registry := buildRegistry(cfg)
	server := api.NewServer(cfg, registry, persister)

	w, err := watcher.New(configPath, func(next *config.Config) {
		server.UpdateConfig(next)
	})
	if err != nil {
		log.Warnf("config watching unavailable: %v", err)
	} else if err := w.Start(); err != nil {
		log.Warnf("config watching unavailable: %v", err)
	}

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Errorf("graceful shutdown failed: %v", err)
	}
	if w != nil {
		_ = w.Stop()
	}
	if err := persister.Stop(); err != nil {
		log.Errorf("usage persister shutdown failed: %v", err)
	}
}

// buildRegistry constructs one adapter per configured provider, sharing a
// single HTTP client (and proxy) across all of them.
func buildRegistry(cfg *config.Config) *provider.Registry {
	hc := httpclient.New(httpclient.WithProxy(cfg.ProxyURL))
	registry := provider.NewRegistry()

	for _, pc := range cfg.Providers {
		var adapter provider.Provider
		switch strings.ToLower(pc.Name) {
		case "mailtm":
			adapter = mailtm.New(pc, hc)
		case "guerrilla":
			adapter = guerrilla.New(pc, hc)
		case "onesec":
			adapter = onesec.New(pc, hc)
		default:
			log.Warnf("unknown provider %q in config, skipping", pc.Name)
			continue
		}
		registry.Register(adapter, provider.RouteConfig{
			Enabled:  pc.Enabled,
			Priority: pc.Priority,
		})
		log.Infof("registered provider %s (enabled=%v priority=%d)", adapter.Name(), pc.Enabled, pc.Priority)
	}
	return registry
}

func doInitConfig(path string) {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("config file %s already exists, refusing to overwrite\n", path)
		os.Exit(1)
	}
	if err := config.SaveConfig(config.NewDefaultConfig(), path); err != nil {
		fmt.Printf("failed to write config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote default configuration to %s\n", path)
}
