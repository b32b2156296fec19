package fwversion

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/mklatt/kwbreg/internal/logging"
)

// WatchMapping watches the base path for changes to version_mapping.json,
// reloading the mapping and invoking onChange after each change. It blocks
// until the context is cancelled. onChange may be nil.
//
// Editors and sync tools often replace files via rename, so create and
// rename events are treated the same as writes.
func (r *Resolver) WatchMapping(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(r.basePath); err != nil {
		return fmt.Errorf("failed to watch %s: %w", r.basePath, err)
	}

	logging.Info("Watching version mapping",
		zap.String("path", r.MappingPath()),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != MappingFileName {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			logging.Debug("Version mapping changed",
				zap.String("event", event.Op.String()),
			)
			if err := r.ReloadMapping(); err != nil {
				logging.Error("Failed to reload version mapping", zap.Error(err))
				continue
			}
			if onChange != nil {
				onChange()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn("Watcher error", zap.Error(err))
		}
	}
}
