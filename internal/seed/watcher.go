package seed

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Watcher re-seeds the store whenever the corpus file changes. Editors
// produce bursts of write events per save, so reloads are rate-limited to
// one per second.
type Watcher struct {
	path    string
	seeder  *Seeder
	logger  *zap.Logger
	limiter *rate.Limiter
}

// NewWatcher creates a corpus file watcher.
func NewWatcher(path string, seeder *Seeder, logger *zap.Logger) (*Watcher, error) {
	if path == "" {
		return nil, errors.New("corpus path is required")
	}
	if seeder == nil {
		return nil, errors.New("seeder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		path:    path,
		seeder:  seeder,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(1), 1),
	}, nil
}

// Run watches the corpus file until ctx is cancelled. The parent directory
// is watched rather than the file itself so atomic-rename saves keep
// working.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	w.logger.Info("watching corpus file", zap.String("path", w.path))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !w.limiter.Allow() {
				continue
			}
			if _, err := w.seeder.ApplyFile(ctx, w.path); err != nil {
				w.logger.Warn("corpus reload failed", zap.Error(err))
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("corpus watcher error", zap.Error(err))
		}
	}
}
