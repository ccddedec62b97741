package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads configuration from disk whenever caseintake.yaml changes,
// publishing each successfully validated reload to Updates(). Failed
// reloads are logged and the previous configuration stays in effect.
type Watcher struct {
	configDir string
	watcher   *fsnotify.Watcher
	updates   chan *Config
}

// NewWatcher starts watching configDir for changes to caseintake.yaml.
func NewWatcher(configDir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(configDir); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{
		configDir: configDir,
		watcher:   fsw,
		updates:   make(chan *Config, 1),
	}, nil
}

// Updates returns the channel new configurations are published on.
func (w *Watcher) Updates() <-chan *Config { return w.updates }

// Run blocks processing filesystem events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	target := filepath.Join(w.configDir, "caseintake.yaml")
	for {
		select {
		case <-ctx.Done():
			w.watcher.Close()
			close(w.updates)
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(target) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := load(w.configDir)
			if err != nil {
				slog.Error("config reload failed, keeping previous configuration", "error", err)
				continue
			}
			if err := validate(cfg); err != nil {
				slog.Error("reloaded config failed validation, keeping previous configuration", "error", err)
				continue
			}
			slog.Info("configuration reloaded")
			select {
			case w.updates <- cfg:
			default:
				// drop stale pending update, latest reload wins
				select {
				case <-w.updates:
				default:
				}
				w.updates <- cfg
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("config watcher error", "error", err)
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error { return w.watcher.Close() }
