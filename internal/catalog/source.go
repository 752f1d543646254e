package catalog

import (
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Source hands out the active catalog snapshot. Detectors call Current
// on every request, so a catalog swap takes effect immediately without
// restarting in-flight work.
type Source struct {
	cur atomic.Pointer[Catalog]
}

// NewSource creates a source serving the given catalog.
func NewSource(c *Catalog) *Source {
	s := &Source{}
	s.cur.Store(c)
	return s
}

// Current returns the active catalog snapshot.
func (s *Source) Current() *Catalog {
	return s.cur.Load()
}

// Replace atomically swaps the active catalog.
func (s *Source) Replace(c *Catalog) {
	s.cur.Store(c)
}

// Watch reloads the catalog whenever the file at path changes. A reload
// that fails to parse or compile keeps the previous catalog active.
func (s *Source) Watch(path string, logger *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create catalog watcher: %w", err)
	}
	// Watch the directory, not the file: editors and config tooling
	// replace files via rename, which drops a file-level watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch catalog dir: %w", err)
	}

	target := filepath.Clean(path)

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				c, err := Load(path)
				if err != nil {
					logger.Error("catalog reload failed, keeping previous rules",
						zap.String("path", path),
						zap.Error(err),
					)
					continue
				}
				s.Replace(c)
				logger.Info("catalog reloaded",
					zap.String("path", path),
					zap.String("version", c.Version),
				)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("catalog watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}
