package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Verify at compile time that ConfigWatcher implements Watcher
var _ Watcher = (*ConfigWatcher)(nil)

// ConfigWatcher reloads the configuration file when it changes on disk and
// hands each valid revision to its subscribers.
type ConfigWatcher struct {
	currentConfig atomic.Pointer[Config]
	configPath    string
	watcher       *fsnotify.Watcher
	logger        *zap.Logger

	mu          sync.Mutex
	subscribers []chan *Config
	closed      bool
}

// NewConfigWatcher loads configPath and starts watching it.
func NewConfigWatcher(configPath string, logger *zap.Logger) (*ConfigWatcher, error) {
	initialConfig, err := LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	cw := &ConfigWatcher{
		configPath: configPath,
		watcher:    watcher,
		logger:     logger,
	}
	cw.currentConfig.Store(initialConfig)

	// Watch the directory so editors that replace the file are still seen.
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}

	go cw.watchConfig()
	return cw, nil
}

// Subscribe returns a channel that receives every reloaded configuration.
func (cw *ConfigWatcher) Subscribe() <-chan *Config {
	ch := make(chan *Config, 1)

	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.closed {
		close(ch)
		return ch
	}
	cw.subscribers = append(cw.subscribers, ch)
	return ch
}

// GetCurrentConfig returns the most recent valid configuration.
func (cw *ConfigWatcher) GetCurrentConfig() *Config {
	return cw.currentConfig.Load()
}

func (cw *ConfigWatcher) watchConfig() {
	target := filepath.Clean(cw.configPath)
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				cw.handleConfigChange()
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Error("Config watcher error", zap.Error(err))
		}
	}
}

func (cw *ConfigWatcher) handleConfigChange() {
	cw.logger.Info("Detected config file change, reloading",
		zap.String("config_path", cw.configPath),
	)

	// LoadFile validates, so an invalid revision never replaces a good one.
	newConfig, err := LoadFile(cw.configPath)
	if err != nil {
		cw.logger.Error("Failed to load new config", zap.Error(err))
		return
	}

	cw.currentConfig.Store(newConfig)

	cw.mu.Lock()
	for _, sub := range cw.subscribers {
		// Drop a stale pending revision so the newest one wins.
		select {
		case <-sub:
		default:
		}
		select {
		case sub <- newConfig:
		default:
		}
	}
	cw.mu.Unlock()

	cw.logger.Info("Configuration reloaded successfully")
}

// Close stops watching and closes every subscriber channel.
func (cw *ConfigWatcher) Close() error {
	cw.mu.Lock()
	if !cw.closed {
		cw.closed = true
		for _, sub := range cw.subscribers {
			close(sub)
		}
		cw.subscribers = nil
	}
	cw.mu.Unlock()

	return cw.watcher.Close()
}
