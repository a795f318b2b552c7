package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads the config file whenever it changes on disk.
type Watcher struct {
	Path string
	// Cooldown coalesces the burst of events an editor save produces.
	Cooldown time.Duration
	Log      *zap.Logger
}

// Start blocks until ctx is cancelled, calling onUpdate with every config
// that loads and validates. Invalid edits are logged and skipped.
//
// The parent directory is watched rather than the file, so saves that
// replace the file by rename are seen too.
func (w Watcher) Start(ctx context.Context, onUpdate func(AppConfig)) error {
	if w.Cooldown <= 0 {
		w.Cooldown = 200 * time.Millisecond
	}
	log := w.Log
	if log == nil {
		log = zap.NewNop()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}
	defer fw.Close()

	target := filepath.Clean(w.Path)
	if err := fw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("config: watch %s: %w", target, err)
	}

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.Cooldown)
			} else {
				timer.Reset(w.Cooldown)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			cfg, err := Load(target)
			if err != nil {
				log.Warn("config reload rejected", zap.String("path", target), zap.Error(err))
				continue
			}
			log.Info("config reloaded", zap.String("path", target), zap.Int("symbols", len(cfg.Symbols)))
			if onUpdate != nil {
				onUpdate(cfg)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", zap.Error(err))
		}
	}
}
