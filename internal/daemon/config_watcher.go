package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/docsync/internal/config"
	"git.home.luguber.info/inful/docsync/internal/logfields"
)

// ConfigWatcher monitors the configuration file and invokes a callback with
// the reloaded configuration. Editors tend to emit several events per save,
// so changes are debounced.
type ConfigWatcher struct {
	configPath string
	onReload   func(*config.Config)
	watcher    *fsnotify.Watcher
	debounce   time.Duration
}

// NewConfigWatcher creates a watcher for the given config file.
func NewConfigWatcher(configPath string, onReload func(*config.Config)) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	return &ConfigWatcher{
		configPath: absPath,
		onReload:   onReload,
		watcher:    watcher,
		debounce:   2 * time.Second,
	}, nil
}

// Run watches until the context ends. Watching the directory rather than the
// file survives the rename-and-replace dance most editors do.
func (cw *ConfigWatcher) Run(ctx context.Context) error {
	configDir := filepath.Dir(cw.configPath)
	if err := cw.watcher.Add(configDir); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", configDir, err)
	}
	defer func() { _ = cw.watcher.Close() }()

	slog.Info("Watching configuration file", logfields.Path(cw.configPath))

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != cw.configPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(cw.debounce)
				timerC = timer.C
			} else {
				timer.Reset(cw.debounce)
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Config watcher error", logfields.Error(err))

		case <-timerC:
			timer = nil
			timerC = nil
			cw.reload()
		}
	}
}

func (cw *ConfigWatcher) reload() {
	cfg, err := config.Load(cw.configPath)
	if err != nil {
		// The daemon keeps running on the last good configuration.
		slog.Error("Configuration reload failed, keeping previous configuration",
			logfields.Path(cw.configPath), logfields.Error(err))
		return
	}

	slog.Info("Configuration reloaded", logfields.Path(cw.configPath))
	cw.onReload(cfg)
}
