package epg

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDelay = 250 * time.Millisecond

// WatchKeywords reloads the keyword file whenever it changes and installs the
// new classifier on g. It blocks until ctx is cancelled. A file that fails to
// parse leaves the current classifier in place.
func WatchKeywords(ctx context.Context, path string, g *Guide, logger *zap.Logger) error {
	if path == "" {
		<-ctx.Done()
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("epg")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("keyword watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often save by rename, so watch the directory rather than the file.
	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	logger.Info("watching epg keywords", zap.String("path", target))

	var (
		timer  *time.Timer
		reload <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDelay)
			} else {
				timer.Reset(reloadDelay)
			}
			reload = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("keyword watcher error", zap.Error(err))
		case <-reload:
			reload = nil
			kw, err := LoadKeywords(target)
			if err != nil {
				logger.Warn("keyword reload failed", zap.Error(err))
				continue
			}
			g.SetClassifier(NewClassifier(kw))
			logger.Info("epg keywords reloaded",
				zap.Int("horror", len(kw.Horror)),
				zap.Int("scifi", len(kw.SciFi)),
			)
		}
	}
}
