// internal/meta/sync.go
package meta

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	xlog "github.com/tamzrod/postcode-monitor/internal/log"
)

// ErrRemoteUnavailable means the remote index could not be fetched or was invalid.
// HasUpdateAvailable returns it instead of guessing.
var ErrRemoteUnavailable = errors.New("meta: remote index unavailable")

// maxIndexBytes bounds the remote index download.
const maxIndexBytes = 1 << 20

// Config is the minimal runtime config the synchronizer needs.
type Config struct {
	IndexURL string // absolute URL of the remote index
	BaseURL  string // entry paths are appended to this, must end in "/"

	Enabled bool // false turns ApplyUpdate into a no-op
	Workers int  // concurrent entry downloads (>= 1)
	Timeout time.Duration
}

// Report summarises one ApplyUpdate call.
type Report struct {
	Skipped    string // non-empty when nothing was applied, with the reason
	Updated    time.Time
	Downloaded []string
	Failed     map[string]error
}

// Synchronizer keeps the local meta index in step with the remote one.
type Synchronizer struct {
	cfg    Config
	store  *Store
	client *http.Client
	log    zerolog.Logger

	mu      sync.RWMutex
	current *Definition
}

// New creates a synchronizer. A nil client gets one with cfg.Timeout.
func New(cfg Config, store *Store, client *http.Client, logger zerolog.Logger) *Synchronizer {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Synchronizer{
		cfg:    cfg,
		store:  store,
		client: client,
		log:    logger,
	}
}

// ---- local state ----

// Current returns the in-memory definition, nil when none was loaded.
func (s *Synchronizer) Current() *Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Entries returns the entries of the current local definition.
func (s *Synchronizer) Entries() []Entry {
	cur := s.Current()
	if cur == nil {
		return nil
	}
	out := make([]Entry, len(cur.Items))
	copy(out, cur.Items)
	return out
}

// Updated returns the timestamp of the current local definition.
func (s *Synchronizer) Updated() (time.Time, bool) {
	cur := s.Current()
	if cur == nil {
		return time.Time{}, false
	}
	return cur.Updated, true
}

// Store exposes where the catalog files live.
func (s *Synchronizer) Store() *Store { return s.store }

func (s *Synchronizer) setCurrent(def *Definition) {
	s.mu.Lock()
	s.current = def
	s.mu.Unlock()
}

// LoadLocal reads the cached index and makes it current.
// A missing or unparseable index is treated as absence and reported as false.
func (s *Synchronizer) LoadLocal() bool {
	def := s.readLocal()
	if def == nil {
		return false
	}
	s.setCurrent(def)
	return true
}

func (s *Synchronizer) readLocal() *Definition {
	data, err := s.store.ReadIndex()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Error().Err(err).Str(xlog.FieldPath, s.store.IndexPath()).Msg("read local meta index")
		}
		return nil
	}

	def, err := Validate(data)
	if err != nil {
		s.log.Error().Err(err).Str(xlog.FieldPath, s.store.IndexPath()).Msg("local meta index unusable")
		return nil
	}
	return def
}

// ---- remote ----

func (s *Synchronizer) fetchRemote(ctx context.Context) (*Definition, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.IndexURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	res, err := s.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("%w: HTTP %d", ErrRemoteUnavailable, res.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, maxIndexBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}

	def, err := Validate(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return def, data, nil
}

// HasUpdateAvailable compares the cached index with the remote one.
//
//   - no local index: true, whatever the remote state
//   - remote unreachable or invalid: false with ErrRemoteUnavailable
//   - otherwise: true iff remote.Updated is strictly after local.Updated
func (s *Synchronizer) HasUpdateAvailable(ctx context.Context) (bool, error) {
	local := s.readLocal()
	if local == nil {
		return true, nil
	}

	remote, _, err := s.fetchRemote(ctx)
	if err != nil {
		s.log.Warn().Err(err).Str(xlog.FieldURL, s.cfg.IndexURL).Msg("update check inconclusive")
		return false, err
	}

	return remote.NewerThan(local), nil
}

// ApplyUpdate fetches the remote index, persists it, makes it current and
// downloads every referenced file. Entry failures are logged and reported
// but never abort the remaining downloads. The returned error is reserved
// for failing to persist the index itself.
func (s *Synchronizer) ApplyUpdate(ctx context.Context) (Report, error) {
	if !s.cfg.Enabled {
		return Report{Skipped: "updates disabled"}, nil
	}

	remote, raw, err := s.fetchRemote(ctx)
	if err != nil {
		s.log.Error().Err(err).Str(xlog.FieldURL, s.cfg.IndexURL).Msg("download meta index")
		return Report{Skipped: "remote unavailable"}, nil
	}

	if err := s.store.WriteIndex(raw); err != nil {
		return Report{}, err
	}
	s.setCurrent(remote)
	s.log.Info().
		Time(xlog.FieldUpdated, remote.Updated).
		Int("entries", len(remote.Items)).
		Msg("meta index updated")

	rep := Report{Updated: remote.Updated, Failed: map[string]error{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for _, e := range remote.Items {
		g.Go(func() error {
			err := s.downloadEntry(gctx, e)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Error().Err(err).Str(xlog.FieldPath, e.Path).Msg("download meta entry")
				rep.Failed[e.Path] = err
				return nil
			}
			rep.Downloaded = append(rep.Downloaded, e.Path)
			return nil
		})
	}
	// Workers never return errors.
	_ = g.Wait()

	return rep, nil
}

func (s *Synchronizer) downloadEntry(ctx context.Context, e Entry) error {
	if _, err := s.store.Resolve(e.Path); err != nil {
		return err
	}

	url := s.cfg.BaseURL + e.Path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	res, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: HTTP %d", url, res.StatusCode)
	}

	n, err := s.store.WriteEntry(e.Path, res.Body)
	if err != nil {
		return err
	}
	s.log.Debug().Str(xlog.FieldPath, e.Path).Int64("bytes", n).Msg("meta entry stored")
	return nil
}
