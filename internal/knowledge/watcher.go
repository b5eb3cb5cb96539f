package knowledge

import (
	"context"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 500 * time.Millisecond

// Watch re-indexes the base whenever a document changes. It blocks until
// ctx is cancelled.
func (b *Base) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, cat := range Categories() {
		dir := filepath.Join(b.dir, string(cat))
		if err := watcher.Add(dir); err != nil {
			log.Printf("⚠️  [KNOWLEDGE] Failed to watch %s: %v", dir, err)
		}
	}

	log.Printf("👁️  Watching %s for document changes (hot-reload enabled)", b.dir)

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
			name := filepath.Base(event.Name)
			if strings.HasPrefix(name, ".") || !IsSupported(name) {
				continue
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(reloadDebounce, func() {
				log.Printf("🔄 [KNOWLEDGE] Detected changes in %s, re-indexing...", b.dir)
				if err := b.Reload(); err != nil {
					log.Printf("❌ [KNOWLEDGE] Re-index failed: %v", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("⚠️  File watcher error: %v", err)
		}
	}
}
