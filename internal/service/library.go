// Package service implements the user-level operations on top of the stores, the
// exchange transport and the tunnel.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"linkdrop/internal/deeplink"
	"linkdrop/internal/exchange"
	"linkdrop/internal/logger"
	"linkdrop/internal/model"
	"linkdrop/internal/notify"
	"linkdrop/internal/store"
	"linkdrop/internal/xray"
)

var (
	ErrNotFound  = store.ErrNotFound
	ErrNoContent = errors.New("profile has no content")
)

// Tunnel is the engine that carries traffic for the selected profile.
type Tunnel interface {
	IsRunning() bool
	ActiveProfileID() (uint, bool)
	Restart(ctx context.Context, profileID uint, doc xray.Document) error
}

// ConflictPolicy decides what an import does when the name or server is already known.
type ConflictPolicy string

const (
	Replace ConflictPolicy = "replace"
	Keep    ConflictPolicy = "keep"
	Skip    ConflictPolicy = "skip"
)

type Action string

const (
	Created  Action = "created"
	Replaced Action = "replaced"
	Renamed  Action = "renamed"
	Skipped  Action = "skipped"
)

// Outcome describes what an import did.
type Outcome struct {
	Kind    exchange.Kind
	ID      uint
	Name    string
	Action  Action
	Members int
}

type LibraryOptions struct {
	Policy            ConflictPolicy
	DefaultDeviceName string
	DeepLinkHost      string
}

// Library owns profiles, groups and the active tunnel selection.
type Library struct {
	profiles store.ProfileStore
	groups   store.GroupStore
	settings store.Settings
	tunnel   Tunnel
	sink     notify.Sink
	opts     LibraryOptions

	// serializes imports so conflict checks and saves do not interleave
	mu sync.Mutex
}

func NewLibrary(profiles store.ProfileStore, groups store.GroupStore, settings store.Settings, tunnel Tunnel, sink notify.Sink, opts LibraryOptions) *Library {
	if opts.Policy == "" {
		opts.Policy = Keep
	}
	if sink == nil {
		sink = notify.NewLogSink(nil)
	}
	return &Library{
		profiles: profiles,
		groups:   groups,
		settings: settings,
		tunnel:   tunnel,
		sink:     sink,
		opts:     opts,
	}
}

// DeviceName is the name sent to peers: the stored setting, the configured
// default, or the hostname.
func (l *Library) DeviceName(ctx context.Context) string {
	if v, ok, err := l.settings.Get(ctx, store.SettingDeviceName); err == nil && ok && v != "" {
		return v
	}
	if l.opts.DefaultDeviceName != "" {
		return l.opts.DefaultDeviceName
	}
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "linkdrop"
}

func (l *Library) SetDeviceName(ctx context.Context, name string) error {
	return l.settings.Set(ctx, store.SettingDeviceName, strings.TrimSpace(name))
}

// Import stores a received payload, applying the conflict policy.
func (l *Library) Import(ctx context.Context, p exchange.Payload) (Outcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if p.AutoUpdateInterval <= 0 {
		p.AutoUpdateInterval = deeplink.DefaultInterval
	}
	if p.Type == exchange.KindGroup {
		return l.importGroup(ctx, p)
	}
	return l.importProfile(ctx, p)
}

func (l *Library) importProfile(ctx context.Context, p exchange.Payload) (Outcome, error) {
	if p.Content == "" && p.URL == "" {
		return Outcome{}, fmt.Errorf("profile %q: %w", p.Name, ErrNoContent)
	}

	incoming := &model.Profile{
		Name:               strings.TrimSpace(p.Name),
		Content:            strings.TrimSpace(p.Content),
		URL:                p.URL,
		AutoUpdate:         p.AutoUpdate,
		AutoUpdateInterval: p.AutoUpdateInterval,
	}
	out := Outcome{Kind: exchange.KindProfile, Action: Created}

	existing, err := l.findProfile(ctx, incoming)
	if err != nil {
		return Outcome{}, err
	}
	if existing != nil {
		switch l.opts.Policy {
		case Skip:
			return Outcome{Kind: exchange.KindProfile, ID: existing.ID, Name: existing.Name, Action: Skipped}, nil
		case Replace:
			incoming.ID = existing.ID
			incoming.Name = existing.Name
			incoming.CreatedAt = existing.CreatedAt
			out.Action = Replaced
		default:
			name, err := l.freeProfileName(ctx, incoming.Name)
			if err != nil {
				return Outcome{}, err
			}
			if name != incoming.Name {
				incoming.Name = name
				out.Action = Renamed
			}
		}
	}

	if incoming.Content == "" {
		err = l.profiles.DownloadByURL(ctx, incoming)
	} else {
		incoming.LastUpdated = time.Now()
		err = l.profiles.Save(ctx, incoming)
	}
	if err != nil {
		return Outcome{}, err
	}

	out.ID, out.Name = incoming.ID, incoming.Name
	return out, nil
}

// findProfile matches by name first, then by server fingerprint.
func (l *Library) findProfile(ctx context.Context, p *model.Profile) (*model.Profile, error) {
	existing, err := l.profiles.GetByName(ctx, p.Name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	fp := store.FingerprintOf(p.Content)
	if fp == "" {
		return nil, nil
	}
	all, err := l.profiles.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Fingerprint == fp {
			return &all[i], nil
		}
	}
	return nil, nil
}

func (l *Library) freeProfileName(ctx context.Context, name string) (string, error) {
	return freeName(name, func(candidate string) (bool, error) {
		_, err := l.profiles.GetByName(ctx, candidate)
		return taken(err)
	})
}

func (l *Library) importGroup(ctx context.Context, p exchange.Payload) (Outcome, error) {
	if len(p.Links) == 0 && p.URL == "" {
		return Outcome{}, fmt.Errorf("group %q: %w", p.Name, ErrNoContent)
	}

	g := &model.Group{
		Name:               strings.TrimSpace(p.Name),
		URL:                p.URL,
		AutoUpdate:         p.AutoUpdate,
		AutoUpdateInterval: p.AutoUpdateInterval,
	}
	out := Outcome{Kind: exchange.KindGroup, Action: Created}

	existing, err := l.groups.GetByName(ctx, g.Name)
	switch {
	case err == nil:
		switch l.opts.Policy {
		case Skip:
			return Outcome{Kind: exchange.KindGroup, ID: existing.ID, Name: existing.Name, Action: Skipped, Members: len(existing.Profiles)}, nil
		case Replace:
			g.ID = existing.ID
			g.CreatedAt = existing.CreatedAt
			out.Action = Replaced
		default:
			name, err := freeName(g.Name, func(candidate string) (bool, error) {
				_, err := l.groups.GetByName(ctx, candidate)
				return taken(err)
			})
			if err != nil {
				return Outcome{}, err
			}
			g.Name = name
			out.Action = Renamed
		}
	case !errors.Is(err, store.ErrNotFound):
		return Outcome{}, err
	}

	// Both paths write the row together with its members, so a failed
	// download leaves the library unchanged.
	if len(p.Links) > 0 {
		g.LastUpdated = time.Now()
		if err := l.groups.ReplaceMembers(ctx, g, p.Links); err != nil {
			return Outcome{}, err
		}
		out.Members = len(p.Links)
	} else {
		n, err := l.groups.FetchAndReplaceMembers(ctx, g)
		if err != nil {
			return Outcome{}, err
		}
		out.Members = n
	}

	out.ID, out.Name = g.ID, g.Name
	return out, nil
}

// ImportDeepLink resolves raw and imports the pending profile or group it carries.
func (l *Library) ImportDeepLink(ctx context.Context, raw string) (Outcome, error) {
	res := deeplink.Resolver{Host: l.opts.DeepLinkHost}.Resolve(raw)
	if err := res.Err(); err != nil {
		return Outcome{}, err
	}

	p := exchange.Payload{
		Type:               exchange.KindProfile,
		Name:               res.Pending.Name,
		URL:                res.Pending.URL,
		AutoUpdate:         res.Pending.AutoUpdate,
		AutoUpdateInterval: res.Pending.AutoUpdateInterval,
	}
	if res.Pending.Group {
		p.Type = exchange.KindGroup
	}

	out, err := l.Import(ctx, p)
	if err != nil {
		l.sink.Notify(ctx, notify.Notification{Level: notify.Error, Title: "Import failed", Message: err.Error(), Retryable: true})
		return Outcome{}, err
	}
	l.sink.Notify(ctx, notify.Notification{Level: notify.Success, Title: "Imported", Message: fmt.Sprintf("%s %q (%s)", out.Kind, out.Name, out.Action)})
	return out, nil
}

// Connect hands the profile's config to the tunnel and remembers the selection.
func (l *Library) Connect(ctx context.Context, profileID uint) error {
	p, err := l.profiles.Get(ctx, profileID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(p.Content) == "" {
		if !p.IsRemote() {
			return fmt.Errorf("profile %q: %w", p.Name, ErrNoContent)
		}
		if err := l.profiles.DownloadByURL(ctx, p); err != nil {
			return err
		}
	}

	if err := l.tunnel.Restart(ctx, p.ID, xray.Prepare(p.Content)); err != nil {
		l.sink.Notify(ctx, notify.Notification{Level: notify.Error, Title: "Connect failed", Message: err.Error(), Retryable: true})
		return err
	}
	if err := l.settings.Set(ctx, store.SettingSelectedProfile, fmt.Sprint(p.ID)); err != nil {
		logger.Log.Warnf("Failed to remember selected profile: %v", err)
	}
	l.sink.Notify(ctx, notify.Notification{Level: notify.Success, Title: "Connected", Message: p.Name})
	return nil
}

// RefreshProfile downloads a remote profile again and re-applies it when it is
// the one the tunnel is running.
func (l *Library) RefreshProfile(ctx context.Context, id uint) error {
	p, err := l.profiles.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := l.profiles.DownloadByURL(ctx, p); err != nil {
		return err
	}
	if active, ok := l.tunnel.ActiveProfileID(); ok && active == p.ID && l.tunnel.IsRunning() {
		return l.tunnel.Restart(ctx, p.ID, xray.Prepare(p.Content))
	}
	return nil
}

// RefreshGroup replaces the members of a subscription group. If the tunnel was
// running one of the old members it moves to the new member of the same name.
func (l *Library) RefreshGroup(ctx context.Context, id uint) (int, error) {
	g, err := l.groups.Get(ctx, id)
	if err != nil {
		return 0, err
	}

	var activeName string
	if active, ok := l.tunnel.ActiveProfileID(); ok && l.tunnel.IsRunning() {
		for _, m := range g.Profiles {
			if m.ID == active {
				activeName = m.Name
			}
		}
	}

	n, err := l.groups.FetchAndReplaceMembers(ctx, g)
	if err != nil {
		return 0, err
	}

	if activeName != "" {
		for _, m := range g.Profiles {
			if m.Name == activeName {
				return n, l.tunnel.Restart(ctx, m.ID, xray.Prepare(m.Content))
			}
		}
		logger.Log.Warnf("Active profile %q is gone from group %q", activeName, g.Name)
	}
	return n, nil
}

// Due lists what RefreshDue would refresh at now.
type Due struct {
	Profiles []model.Profile
	Groups   []model.Group
}

func (d Due) Len() int { return len(d.Profiles) + len(d.Groups) }

// DueForRefresh returns auto-updating profiles and groups whose interval has elapsed.
func (l *Library) DueForRefresh(ctx context.Context, now time.Time) (Due, error) {
	var due Due
	profiles, err := l.profiles.List(ctx)
	if err != nil {
		return due, err
	}
	for _, p := range profiles {
		if p.IsRemote() && p.AutoUpdate && elapsed(p.LastUpdated, p.AutoUpdateInterval, now) {
			due.Profiles = append(due.Profiles, p)
		}
	}
	groups, err := l.groups.List(ctx)
	if err != nil {
		return due, err
	}
	for _, g := range groups {
		if g.URL != "" && g.AutoUpdate && elapsed(g.LastUpdated, g.AutoUpdateInterval, now) {
			due.Groups = append(due.Groups, g)
		}
	}
	return due, nil
}

func elapsed(last time.Time, intervalMinutes int, now time.Time) bool {
	if intervalMinutes <= 0 {
		intervalMinutes = deeplink.DefaultInterval
	}
	return !now.Before(last.Add(time.Duration(intervalMinutes) * time.Minute))
}

// freeName returns name, or "name (n)" with the smallest n >= 2 not taken.
func freeName(name string, isTaken func(string) (bool, error)) (string, error) {
	used, err := isTaken(name)
	if err != nil || !used {
		return name, err
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s (%d)", name, i)
		used, err := isTaken(candidate)
		if err != nil {
			return "", err
		}
		if !used {
			return candidate, nil
		}
	}
}

func taken(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return false, err
}
