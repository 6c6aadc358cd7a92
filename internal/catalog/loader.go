// internal/catalog/loader.go
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	xlog "github.com/tamzrod/postcode-monitor/internal/log"
	"github.com/tamzrod/postcode-monitor/internal/meta"
)

// EntrySource is what the loader needs from the metadata synchronizer.
type EntrySource interface {
	Entries() []meta.Entry
	Updated() (time.Time, bool)
	Store() *meta.Store
}

// section parses one catalog file into the snapshot under construction.
type section func(r io.Reader, into *Snapshot) error

// sections dispatches on the entry tag. Every meta.Type has exactly one parser.
var sections = map[meta.Type]section{
	meta.PostCodes: func(r io.Reader, into *Snapshot) error {
		defs, err := ParsePostCodes(r)
		into.PostCodes = append(into.PostCodes, defs...)
		return err
	},
	meta.ErrorMasks: func(r io.Reader, into *Snapshot) error {
		defs, err := ParseErrorMasks(r)
		into.ErrorMasks = append(into.ErrorMasks, defs...)
		return err
	},
	meta.OSErrors: func(r io.Reader, into *Snapshot) error {
		defs, err := ParseOSErrors(r)
		into.OSErrors = append(into.OSErrors, defs...)
		return err
	},
}

// Loader builds catalog snapshots from the locally stored entries and
// publishes them for decoding.
type Loader struct {
	src EntrySource
	log zerolog.Logger

	refreshMu sync.Mutex
	current   atomic.Pointer[Snapshot]
	onPublish []func(*Snapshot)
}

func NewLoader(src EntrySource, logger zerolog.Logger) *Loader {
	l := &Loader{src: src, log: logger}
	l.current.Store(emptySnapshot)
	return l
}

// Snapshot returns the currently published catalog. Never nil.
func (l *Loader) Snapshot() *Snapshot {
	return l.current.Load()
}

// OnPublish registers a callback invoked after every successful publish.
// Must be called before the first Refresh.
func (l *Loader) OnPublish(fn func(*Snapshot)) {
	l.onPublish = append(l.onPublish, fn)
}

// Refresh rebuilds the catalog from every entry of the current local meta
// index and publishes it atomically. Missing or malformed files are logged
// and skipped. Only context cancellation aborts a refresh.
func (l *Loader) Refresh(ctx context.Context) error {
	l.refreshMu.Lock()
	defer l.refreshMu.Unlock()

	next := &Snapshot{Built: time.Now()}
	if ts, ok := l.src.Updated(); ok {
		next.Updated = ts
	}

	store := l.src.Store()
	for _, e := range l.src.Entries() {
		if err := ctx.Err(); err != nil {
			return err
		}

		logger := l.log.With().
			Str(xlog.FieldPath, e.Path).
			Stringer(xlog.FieldMetaType, e.Type).
			Logger()

		parse, ok := sections[e.Type]
		if !ok {
			logger.Error().Msg("unexpected meta type")
			continue
		}

		if err := l.loadEntry(store, e, parse, next); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Error().Msg("catalog file does not exist")
				continue
			}
			logger.Error().Err(err).Msg("catalog file partially loaded")
		}
	}

	l.current.Store(next)

	pc, em, oe := next.Counts()
	l.log.Info().
		Int("post_codes", pc).
		Int("error_masks", em).
		Int("os_errors", oe).
		Msg("catalog published")

	for _, fn := range l.onPublish {
		fn(next)
	}
	return nil
}

func (l *Loader) loadEntry(store *meta.Store, e meta.Entry, parse section, into *Snapshot) error {
	f, err := store.OpenEntry(e.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := parse(f, into); err != nil {
		return fmt.Errorf("parse %s: %w", e.Path, err)
	}
	return nil
}
