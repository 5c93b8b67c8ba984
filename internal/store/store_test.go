package store

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"linkdrop/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	vlessHome = "vless://6f1c3a52-8e0b-4d8e-9a43-1f2b3c4d5e6f@home.example.com:443?security=tls#Home"
	trojanA   = "trojan://secret@a.example.com:443#A"
	trojanB   = "trojan://secret@b.example.com:443#B"
)

func openTestDB(t *testing.T, fetcher *Fetcher) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), fetcher)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func serve(t *testing.T, body string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newFetcher(t *testing.T) *Fetcher {
	t.Helper()
	f, err := NewFetcher(5*time.Second, "")
	require.NoError(t, err)
	return f
}

func TestProfileCRUD(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, nil)

	p := &model.Profile{Name: "Home", Content: vlessHome}
	require.NoError(t, db.Profiles.Save(ctx, p))
	require.NotZero(t, p.ID)
	assert.NotEmpty(t, p.Fingerprint)

	got, err := db.Profiles.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, vlessHome, got.Content)

	byName, err := db.Profiles.GetByName(ctx, "Home")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byName.ID)

	got.Content = `{"outbounds":[]}`
	require.NoError(t, db.Profiles.Save(ctx, got))
	assert.Empty(t, got.Fingerprint)

	list, err := db.Profiles.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, db.Profiles.Delete(ctx, p.ID))
	_, err = db.Profiles.Get(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.Profiles.Delete(ctx, p.ID), ErrNotFound)
	_, err = db.Profiles.GetByName(ctx, "Home")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProfileDownloadByURL(t *testing.T) {
	ctx := context.Background()
	ts := serve(t, "\n"+trojanA+"\n"+trojanB+"\n")
	db := openTestDB(t, newFetcher(t))

	p := &model.Profile{Name: "Remote", URL: ts.URL, AutoUpdate: true, AutoUpdateInterval: 15}
	require.NoError(t, db.Profiles.DownloadByURL(ctx, p))
	assert.Equal(t, trojanA, p.Content)
	assert.False(t, p.LastUpdated.IsZero())
	assert.NotZero(t, p.ID)

	stored, err := db.Profiles.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, trojanA, stored.Content)
}

func TestProfileDownloadKeepsJSON(t *testing.T) {
	ts := serve(t, `  {"outbounds":[{"protocol":"freedom"}]}  `)
	db := openTestDB(t, newFetcher(t))

	p := &model.Profile{Name: "Full", URL: ts.URL}
	require.NoError(t, db.Profiles.DownloadByURL(context.Background(), p))
	assert.Equal(t, `{"outbounds":[{"protocol":"freedom"}]}`, p.Content)
}

func TestProfileDownloadErrors(t *testing.T) {
	ctx := context.Background()

	db := openTestDB(t, nil)
	assert.ErrorIs(t, db.Profiles.DownloadByURL(ctx, &model.Profile{Name: "Local"}), ErrNotRemote)
	assert.ErrorIs(t, db.Profiles.DownloadByURL(ctx, &model.Profile{Name: "R", URL: "http://x"}), ErrNoFetcher)

	empty := serve(t, "nothing useful here")
	db = openTestDB(t, newFetcher(t))
	assert.ErrorIs(t, db.Profiles.DownloadByURL(ctx, &model.Profile{Name: "R", URL: empty.URL}), ErrEmptyDownload)

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()
	err := db.Profiles.DownloadByURL(ctx, &model.Profile{Name: "R", URL: failing.URL})
	assert.ErrorContains(t, err, "non-200 status code: 502")
}

func TestGroupFetchAndReplaceMembers(t *testing.T) {
	ctx := context.Background()
	sub := base64.StdEncoding.EncodeToString([]byte(trojanA + "\n" + trojanB + "\n" + "trojan://other@c.example.com:443#A\n"))
	ts := serve(t, sub)
	db := openTestDB(t, newFetcher(t))

	g := &model.Group{Name: "Team", URL: ts.URL, AutoUpdate: true}
	require.NoError(t, db.Groups.Save(ctx, g))

	n, err := db.Groups.FetchAndReplaceMembers(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	stored, err := db.Groups.GetByName(ctx, "Team")
	require.NoError(t, err)
	require.Len(t, stored.Profiles, 3)
	names := []string{stored.Profiles[0].Name, stored.Profiles[1].Name, stored.Profiles[2].Name}
	assert.ElementsMatch(t, []string{"A", "B", "A (2)"}, names)
	assert.False(t, stored.LastUpdated.IsZero())

	// members are not standalone profiles
	list, err := db.Profiles.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	// a second fetch replaces rather than appends
	n, err = db.Groups.FetchAndReplaceMembers(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	stored, err = db.Groups.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Profiles, 3)
}

func TestGroupReplaceMembersAndDelete(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, nil)

	g := &model.Group{Name: "Local"}
	require.NoError(t, db.Groups.ReplaceMembers(ctx, g, []string{trojanA, "not a link"}))
	require.NotZero(t, g.ID)

	stored, err := db.Groups.Get(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, stored.Profiles, 2)

	_, err = db.Groups.FetchAndReplaceMembers(ctx, g)
	assert.ErrorIs(t, err, ErrNotRemote)

	require.NoError(t, db.Groups.Delete(ctx, g.ID))
	_, err = db.Groups.Get(ctx, g.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.Groups.Delete(ctx, g.ID), ErrNotFound)

	groups, err := db.Groups.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestGroupFailedFetchWritesNothing(t *testing.T) {
	ctx := context.Background()
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(failing.Close)
	db := openTestDB(t, newFetcher(t))

	fresh := &model.Group{Name: "Sub", URL: failing.URL}
	_, err := db.Groups.FetchAndReplaceMembers(ctx, fresh)
	require.Error(t, err)
	assert.Zero(t, fresh.ID)

	existing := &model.Group{Name: "Team"}
	require.NoError(t, db.Groups.ReplaceMembers(ctx, existing, []string{trojanA}))
	existing.URL = failing.URL
	_, err = db.Groups.FetchAndReplaceMembers(ctx, existing)
	require.Error(t, err)

	groups, err := db.Groups.List(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Team", groups[0].Name)
	assert.Empty(t, groups[0].URL)
	assert.Len(t, groups[0].Profiles, 1)
}

func TestGormLoggerIgnoresRecordNotFound(t *testing.T) {
	var buf bytes.Buffer
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "log.db")), &gorm.Config{
		Logger: newGormLogger(&buf),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))

	var p model.Profile
	err = gdb.Where("name = ?", "absent").First(&p).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())

	require.Error(t, gdb.Exec("SELECT * FROM no_such_table").Error)
	assert.Contains(t, buf.String(), "no_such_table")

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, nil)

	_, ok, err := db.Settings.Get(ctx, SettingDeviceName)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.Settings.Set(ctx, SettingDeviceName, "Laptop"))
	require.NoError(t, db.Settings.Set(ctx, SettingDeviceName, "Desktop"))

	v, ok, err := db.Settings.Get(ctx, SettingDeviceName)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Desktop", v)
}

func TestFingerprintOf(t *testing.T) {
	assert.Empty(t, FingerprintOf("not a link"))
	assert.Equal(t,
		FingerprintOf("trojan://secret@a.example.com:443#A"),
		FingerprintOf("trojan://secret@A.example.com:443#Renamed"))
}

func TestNewFetcherProxy(t *testing.T) {
	_, err := NewFetcher(time.Second, "socks5://127.0.0.1:1080")
	assert.NoError(t, err)
	_, err = NewFetcher(time.Second, "http://127.0.0.1:8080")
	assert.NoError(t, err)
	_, err = NewFetcher(time.Second, "gopher://127.0.0.1:70")
	assert.Error(t, err)
}
