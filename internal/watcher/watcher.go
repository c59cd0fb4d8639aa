// Package watcher monitors the configuration file and hot-reloads it on
// change. Editors and provisioning tools rewrite files in noisy ways (write
// bursts, atomic renames), so events are debounced and a content hash
// suppresses reloads when nothing actually changed.
package watcher

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/inboxmux/inboxmux/internal/config"
	log "github.com/inboxmux/inboxmux/internal/logging"
)

const reloadDebounce = 500 * time.Millisecond

// Watcher hot-reloads the configuration file.
type Watcher struct {
	configPath     string
	reloadCallback func(*config.Config)
	fsw            *fsnotify.Watcher

	reloadMu    sync.Mutex
	reloadTimer *time.Timer

	hashMu   sync.Mutex
	lastHash string

	stopOnce sync.Once
	done     chan struct{}
}

// New creates a watcher for the given config file. The callback receives the
// freshly parsed configuration after every effective change.
func New(configPath string, reloadCallback func(*config.Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		configPath:     configPath,
		reloadCallback: reloadCallback,
		fsw:            fsw,
		done:           make(chan struct{}),
	}
	if data, err := os.ReadFile(configPath); err == nil {
		w.lastHash = hashOf(data)
	}
	return w, nil
}

func hashOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Start begins watching. The parent directory is watched rather than the
// file itself so atomic replaces (rename onto the path) keep being seen.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.configPath)
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	go w.loop()
	log.Infof("watching %s for configuration changes", w.configPath)
	return nil
}

// Stop ends watching and releases the underlying notifier.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
	})
	return err
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.isConfigEvent(event) {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warnf("config watcher error: %v", err)
		}
	}
}

func (w *Watcher) isConfigEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(w.configPath) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// scheduleReload collapses event bursts into one reload per debounce window.
func (w *Watcher) scheduleReload() {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()
	if w.reloadTimer != nil {
		w.reloadTimer.Stop()
	}
	w.reloadTimer = time.AfterFunc(reloadDebounce, w.reload)
}

func (w *Watcher) reload() {
	data, err := os.ReadFile(w.configPath)
	if err != nil {
		log.Warnf("config reload skipped, read failed: %v", err)
		return
	}

	newHash := hashOf(data)
	w.hashMu.Lock()
	unchanged := newHash == w.lastHash
	if !unchanged {
		w.lastHash = newHash
	}
	w.hashMu.Unlock()
	if unchanged {
		log.Debugf("config file touched but content unchanged, skipping reload")
		return
	}

	cfg, err := config.LoadConfig(w.configPath)
	if err != nil {
		log.Errorf("config reload failed, keeping previous configuration: %v", err)
		return
	}

	log.Infof("configuration reloaded from %s", w.configPath)
	if w.reloadCallback != nil {
		w.reloadCallback(cfg)
	}
}
