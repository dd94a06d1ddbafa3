package config

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
)

// WatchAndReload watches the prompts/ and tools/ subdirectories for changes
// and reloads them in place on either a filesystem event or SIGHUP. It
// blocks until ctx is cancelled. Numeric sections in engine.yaml are never
// touched by this loop; a SIGHUP only re-reads prompts and tool schemas.
func (c *Config) WatchAndReload(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, sub := range []string{"prompts", "tools/analyst", "tools/processor"} {
		dir := filepath.Join(c.configDir, sub)
		if _, err := os.Stat(dir); err == nil {
			if err := watcher.Add(dir); err != nil {
				slog.Warn("failed to watch config subdirectory", "dir", dir, "error", err)
			}
		}
	}

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	defer signal.Stop(sighup)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sighup:
			slog.Info("SIGHUP received, reloading prompts and tool schemas")
			c.reloadReloadable()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				slog.Info("config file changed, reloading prompts and tool schemas", "file", ev.Name)
				c.reloadReloadable()
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config watcher error", "error", werr)
		}
	}
}

func (c *Config) reloadReloadable() {
	prompts, err := loadPrompts(c.configDir)
	if err != nil {
		slog.Error("failed to reload prompts, keeping previous version", "error", err)
	} else {
		c.setPrompts(prompts)
	}

	schemas, err := loadToolSchemas(c.configDir)
	if err != nil {
		slog.Error("failed to reload tool schemas, keeping previous version", "error", err)
	} else {
		c.setToolSchemas(schemas)
	}
}
