// Package store persists profiles, groups and settings.
package store

import (
	"context"
	"errors"

	"linkdrop/internal/model"
	"linkdrop/internal/xray/parser"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrNoFetcher     = errors.New("no fetcher configured")
	ErrNotRemote     = errors.New("has no source url")
	ErrEmptyDownload = errors.New("download contained no usable config")
)

type ProfileStore interface {
	// List returns standalone profiles (not group members) ordered by name.
	List(ctx context.Context) ([]model.Profile, error)
	Get(ctx context.Context, id uint) (*model.Profile, error)
	// GetByName looks among standalone profiles only.
	GetByName(ctx context.Context, name string) (*model.Profile, error)
	Save(ctx context.Context, p *model.Profile) error
	Delete(ctx context.Context, id uint) error
	// DownloadByURL replaces Content with what p.URL serves and saves p.
	DownloadByURL(ctx context.Context, p *model.Profile) error
}

type GroupStore interface {
	// List returns groups with their members preloaded.
	List(ctx context.Context) ([]model.Group, error)
	Get(ctx context.Context, id uint) (*model.Group, error)
	GetByName(ctx context.Context, name string) (*model.Group, error)
	Save(ctx context.Context, g *model.Group) error
	Delete(ctx context.Context, id uint) error
	// ReplaceMembers saves g and swaps its members for one profile per link,
	// atomically.
	ReplaceMembers(ctx context.Context, g *model.Group, links []string) error
	// FetchAndReplaceMembers downloads the subscription at g.URL and replaces the
	// members with the links it contains. It returns the new member count. A
	// failed download changes nothing.
	FetchAndReplaceMembers(ctx context.Context, g *model.Group) (int, error)
}

// Settings is a persistent key-value store.
type Settings interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// FingerprintOf returns the server identity of content, or "" when it is not a
// share link.
func FingerprintOf(content string) string {
	d, err := parser.Parse(content)
	if err != nil {
		return ""
	}
	return parser.Fingerprint(d)
}
