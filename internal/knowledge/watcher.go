package knowledge

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// EventCallback is called for each knowledge document change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, name string)

// Watch runs an fsnotify watcher on the knowledge directory until ctx is
// cancelled, reporting document changes through cb. Ingestion jobs write
// documents via tmp-and-rename, which arrives as Create events. The
// directory is created if it does not exist yet.
func Watch(ctx context.Context, dir string, logger *slog.Logger, cb EventCallback) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("knowledge watcher: started", slog.String("dir", dir))

	for {
		select {
		case <-ctx.Done():
			logger.Info("knowledge watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if !strings.HasSuffix(name, ".md") {
				continue
			}

			switch {
			case ev.Op&fsnotify.Create != 0:
				logger.Debug("knowledge watcher: created", slog.String("doc", name))
				if cb != nil {
					cb("created", name)
				}
			case ev.Op&fsnotify.Write != 0:
				logger.Debug("knowledge watcher: updated", slog.String("doc", name))
				if cb != nil {
					cb("updated", name)
				}
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				logger.Debug("knowledge watcher: deleted", slog.String("doc", name))
				if cb != nil {
					cb("deleted", name)
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("knowledge watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
