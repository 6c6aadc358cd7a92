// internal/meta/sync_test.go
package meta

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const indexV1 = `{
  "formatVersion": 1,
  "updated": "2025-03-01T10:00:00Z",
  "items": [
    {"metaType": "PostCodes", "path": "postcodes.csv", "hash": "q83vEjRWeJA"},
    {"metaType": "ErrorMasks", "path": "errormasks.csv", "hash": "AAAA"},
    {"metaType": 1, "path": "oserrors.csv", "hash": ""}
  ]
}`

const indexV2 = `{
  "formatVersion": 1,
  "updated": "2025-04-01T10:00:00Z",
  "items": [
    {"metaType": "PostCodes", "path": "postcodes.csv", "hash": "q83vEjRWeJA"}
  ]
}`

// fakeRemote serves an index and a fixed set of catalog files.
type fakeRemote struct {
	index string
	files map[string]string
	hits  atomic.Int32
}

func (f *fakeRemote) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.hits.Add(1)
	if r.URL.Path == "/meta.json" {
		if f.index == "" {
			http.Error(w, "gone", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(f.index))
		return
	}
	body, ok := f.files[r.URL.Path[1:]]
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write([]byte(body))
}

func newSync(t *testing.T, srvURL string, enabled bool) (*Synchronizer, *Store) {
	t.Helper()
	store := NewStore(t.TempDir(), "meta.json")
	s := New(Config{
		IndexURL: srvURL + "/meta.json",
		BaseURL:  srvURL + "/",
		Enabled:  enabled,
		Workers:  2,
		Timeout:  2 * time.Second,
	}, store, nil, zerolog.Nop())
	return s, store
}

func writeLocal(t *testing.T, store *Store, doc string) {
	t.Helper()
	require.NoError(t, store.WriteIndex([]byte(doc)))
}

// ---- HasUpdateAvailable ----

func TestHasUpdateAvailable_NoLocal(t *testing.T) {
	srv := httptest.NewServer(&fakeRemote{index: indexV1})
	defer srv.Close()

	s, _ := newSync(t, srv.URL, true)

	ok, err := s.HasUpdateAvailable(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasUpdateAvailable_NoLocalRemoteDown(t *testing.T) {
	srv := httptest.NewServer(&fakeRemote{})
	defer srv.Close()

	s, _ := newSync(t, srv.URL, true)

	ok, err := s.HasUpdateAvailable(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasUpdateAvailable_SameTimestamp(t *testing.T) {
	srv := httptest.NewServer(&fakeRemote{index: indexV1})
	defer srv.Close()

	s, store := newSync(t, srv.URL, true)
	writeLocal(t, store, indexV1)

	ok, err := s.HasUpdateAvailable(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasUpdateAvailable_RemoteNewer(t *testing.T) {
	srv := httptest.NewServer(&fakeRemote{index: indexV2})
	defer srv.Close()

	s, store := newSync(t, srv.URL, true)
	writeLocal(t, store, indexV1)

	ok, err := s.HasUpdateAvailable(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasUpdateAvailable_RemoteOlder(t *testing.T) {
	srv := httptest.NewServer(&fakeRemote{index: indexV1})
	defer srv.Close()

	s, store := newSync(t, srv.URL, true)
	writeLocal(t, store, indexV2)

	ok, err := s.HasUpdateAvailable(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasUpdateAvailable_RemoteUnreachableIsUnknown(t *testing.T) {
	srv := httptest.NewServer(&fakeRemote{})
	defer srv.Close()

	s, store := newSync(t, srv.URL, true)
	writeLocal(t, store, indexV1)

	ok, err := s.HasUpdateAvailable(context.Background())
	require.ErrorIs(t, err, ErrRemoteUnavailable)
	assert.False(t, ok)
}

func TestHasUpdateAvailable_RemoteGarbage(t *testing.T) {
	srv := httptest.NewServer(&fakeRemote{index: `{"formatVersion": "one"}`})
	defer srv.Close()

	s, store := newSync(t, srv.URL, true)
	writeLocal(t, store, indexV1)

	_, err := s.HasUpdateAvailable(context.Background())
	require.ErrorIs(t, err, ErrRemoteUnavailable)
}

// ---- ApplyUpdate ----

func TestApplyUpdate_PartialDownload(t *testing.T) {
	remote := &fakeRemote{
		index: indexV1,
		files: map[string]string{
			"postcodes.csv": "Console,Type,Code\nALL,SMC,0x0001\n",
			"oserrors.csv":  "Console,Type,Code\n",
			// errormasks.csv is missing upstream
		},
	}
	srv := httptest.NewServer(remote)
	defer srv.Close()

	s, store := newSync(t, srv.URL, true)

	rep, err := s.ApplyUpdate(context.Background())
	require.NoError(t, err)

	assert.Empty(t, rep.Skipped)
	assert.ElementsMatch(t, []string{"postcodes.csv", "oserrors.csv"}, rep.Downloaded)
	require.Len(t, rep.Failed, 1)
	assert.Contains(t, rep.Failed, "errormasks.csv")

	got, err := os.ReadFile(filepath.Join(store.Dir(), "postcodes.csv"))
	require.NoError(t, err)
	assert.Equal(t, remote.files["postcodes.csv"], string(got))

	_, err = os.Stat(filepath.Join(store.Dir(), "errormasks.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	// index persisted and current
	raw, err := store.ReadIndex()
	require.NoError(t, err)
	assert.JSONEq(t, indexV1, string(raw))

	updated, ok := s.Updated()
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), updated.UTC())
	assert.Len(t, s.Entries(), 3)
}

func TestApplyUpdate_Disabled(t *testing.T) {
	remote := &fakeRemote{index: indexV1}
	srv := httptest.NewServer(remote)
	defer srv.Close()

	s, store := newSync(t, srv.URL, false)

	rep, err := s.ApplyUpdate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "updates disabled", rep.Skipped)
	assert.Zero(t, remote.hits.Load())

	_, err = store.ReadIndex()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApplyUpdate_RemoteUnavailableIsNoop(t *testing.T) {
	srv := httptest.NewServer(&fakeRemote{})
	defer srv.Close()

	s, store := newSync(t, srv.URL, true)
	writeLocal(t, store, indexV2)
	require.True(t, s.LoadLocal())

	rep, err := s.ApplyUpdate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "remote unavailable", rep.Skipped)

	// the previous local state is untouched
	raw, err := store.ReadIndex()
	require.NoError(t, err)
	assert.JSONEq(t, indexV2, string(raw))
	assert.Len(t, s.Entries(), 1)
}

func TestApplyUpdate_RejectsEscapingPath(t *testing.T) {
	remote := &fakeRemote{
		index: `{"formatVersion":1,"updated":"2025-03-01T10:00:00Z","items":[
			{"metaType":"PostCodes","path":"../evil.csv"},
			{"metaType":"PostCodes","path":"ok.csv"}]}`,
		files: map[string]string{"ok.csv": "Console\n"},
	}
	srv := httptest.NewServer(remote)
	defer srv.Close()

	s, _ := newSync(t, srv.URL, true)

	rep, err := s.ApplyUpdate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ok.csv"}, rep.Downloaded)
	require.Contains(t, rep.Failed, "../evil.csv")
	assert.ErrorIs(t, rep.Failed["../evil.csv"], ErrOutsideStorage)
}

// ---- LoadLocal ----

func TestLoadLocal(t *testing.T) {
	s, store := newSync(t, "http://127.0.0.1:0", true)

	assert.False(t, s.LoadLocal(), "no index yet")
	assert.Nil(t, s.Entries())

	writeLocal(t, store, "{not json")
	assert.False(t, s.LoadLocal(), "corrupt index is absence")

	writeLocal(t, store, indexV1)
	require.True(t, s.LoadLocal())
	assert.Len(t, s.Entries(), 3)
}
