package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"linkdrop/internal/notify"
	"linkdrop/internal/store"
	"linkdrop/internal/xray"

	"github.com/stretchr/testify/require"
)

const (
	vlessHome  = "vless://6f1c3a52-8e0b-4d8e-9a43-1f2b3c4d5e6f@home.example.com:443?security=tls#Home"
	trojanA    = "trojan://secret@a.example.com:443#A"
	trojanB    = "trojan://secret@b.example.com:443#B"
	linkHost   = "links.example.com"
	deviceName = "Laptop"
)

type restart struct {
	profileID uint
	doc       xray.Document
}

type fakeTunnel struct {
	mu       sync.Mutex
	running  bool
	active   uint
	restarts []restart
	err      error
}

func (f *fakeTunnel) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeTunnel) ActiveProfileID() (uint, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, f.running
}

func (f *fakeTunnel) Restart(_ context.Context, id uint, doc xray.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.running, f.active = true, id
	f.restarts = append(f.restarts, restart{profileID: id, doc: doc})
	return nil
}

type fixture struct {
	db     *store.DB
	tunnel *fakeTunnel
	sink   *notify.Recorder
	lib    *Library
}

func newFixture(t *testing.T, policy ConflictPolicy) *fixture {
	t.Helper()
	fetcher, err := store.NewFetcher(5*time.Second, "")
	require.NoError(t, err)
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"), fetcher)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{db: db, tunnel: &fakeTunnel{}, sink: &notify.Recorder{}}
	f.lib = NewLibrary(db.Profiles, db.Groups, db.Settings, f.tunnel, f.sink, LibraryOptions{
		Policy:            policy,
		DefaultDeviceName: deviceName,
		DeepLinkHost:      linkHost,
	})
	return f
}

// body serves a mutable response so tests can change what a URL returns.
type body struct {
	mu   sync.Mutex
	text string
}

func (b *body) set(s string) {
	b.mu.Lock()
	b.text = s
	b.mu.Unlock()
}

func serveBody(t *testing.T, initial string) (*httptest.Server, *body) {
	t.Helper()
	b := &body{text: initial}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		_, _ = w.Write([]byte(b.text))
	}))
	t.Cleanup(ts.Close)
	return ts, b
}
