package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/kickai/kickai/internal/bus"
)

// Watcher observes the settings file paths and the service-definition
// directory, publishing config.changed bus events on writes. Hot reload is
// advisory: consumers decide what to refresh, a watcher failure is never
// fatal.
type Watcher struct {
	homeDir string
	defDir  string
	logger  *slog.Logger
	bus     *bus.Bus
}

// NewWatcher builds a watcher over the fixed settings search paths plus the
// service-definition directory (when configured).
func NewWatcher(s Settings, b *bus.Bus, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		homeDir: s.HomeDir,
		defDir:  s.ServiceDefinitionDir,
		logger:  logger,
		bus:     b,
	}
}

// Start begins watching in a background goroutine until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	for _, path := range settingsFilePaths(w.homeDir) {
		_ = fsw.Add(path)
	}
	if w.defDir != "" {
		_ = fsw.Add(w.defDir)
	}

	go func() {
		defer fsw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				w.logger.Info("config file changed", "path", ev.Name, "op", ev.Op.String())
				if w.bus != nil {
					w.bus.Publish(bus.TopicConfigChanged, bus.ConfigEvent{
						Path:   ev.Name,
						TeamID: teamIDFromPath(ev.Name),
					})
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.logger.Error("config watcher error", "error", err)
			}
		}
	}()
	return nil
}

// teamIDFromPath extracts a team id from definition filenames shaped like
// team_KTI.yaml; anything else yields "" (whole-config change).
func teamIDFromPath(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if rest, ok := strings.CutPrefix(base, "team_"); ok && rest != "" {
		return rest
	}
	return ""
}
