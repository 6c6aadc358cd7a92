// internal/catalog/watch.go
package catalog

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	xlog "github.com/tamzrod/postcode-monitor/internal/log"
)

// DefaultDebounce coalesces the burst of events a sync produces.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads the catalog when files in the storage directory change.
type Watcher struct {
	dir      string
	debounce time.Duration
	reload   func(context.Context) error
	log      zerolog.Logger
}

func NewWatcher(dir string, debounce time.Duration, reload func(context.Context) error, logger zerolog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{dir: dir, debounce: debounce, reload: reload, log: logger}
}

// Run watches until ctx is done. Reloads run on the Run goroutine, one at a time.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("catalog watch: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog watch: create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("catalog watch: watch %s: %w", w.dir, err)
	}

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.log.Debug().Str(xlog.FieldPath, ev.Name).Str(xlog.FieldEvent, ev.Op.String()).Msg("catalog storage changed")
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("catalog watcher error")

		case <-timer.C:
			if err := w.reload(ctx); err != nil {
				w.log.Error().Err(err).Msg("catalog reload failed")
			}
		}
	}
}
