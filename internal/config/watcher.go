package config

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 500 * time.Millisecond

// WatchProviderDefaults watches the providers file and reloads it into store
// on change. It blocks until ctx is cancelled.
func WatchProviderDefaults(ctx context.Context, filePath string, store *DefaultsStore) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return err
	}

	// Watch the directory containing the file (editors often replace files on save)
	dir := filepath.Dir(absPath)
	filename := filepath.Base(absPath)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	log.Printf("👁️  Watching %s for changes (hot-reload enabled)", filePath)

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
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
			if filepath.Base(event.Name) != filename {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(reloadDebounce, func() {
				if err := store.Reload(filePath); err != nil {
					log.Printf("❌ Failed to reload %s, keeping previous provider defaults: %v", filePath, err)
					return
				}
				log.Printf("✅ Provider defaults reloaded from %s", filePath)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("⚠️  File watcher error: %v", err)
		}
	}
}
