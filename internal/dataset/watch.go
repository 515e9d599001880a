package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch blocks until ctx is cancelled, reloading the store whenever one of
// the dataset files is rewritten on disk. A reload that fails leaves the
// previously loaded data in place.
func (s *Store) Watch(ctx context.Context, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create dataset watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the files: editors and atomic writers
	// replace files, which drops per-file watches.
	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("watch dataset dir %s: %w", s.dir, err)
	}
	logger.Info("watching dataset directory", "dir", s.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			name := filepath.Base(ev.Name)
			if name != OrdersFile && name != FAQFile {
				continue
			}
			if err := s.Reload(); err != nil {
				logger.Warn("dataset reload failed, keeping previous data",
					"file", name, "error", err)
				continue
			}
			logger.Info("dataset reloaded", "file", name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("dataset watcher error", "error", err)
		}
	}
}
