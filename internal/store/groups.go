package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"linkdrop/internal/logger"
	"linkdrop/internal/model"
	"linkdrop/internal/xray"
	"linkdrop/internal/xray/parser"

	"gorm.io/gorm"
)

type Groups struct {
	db      *gorm.DB
	fetcher *Fetcher
}

var _ GroupStore = (*Groups)(nil)

func (s *Groups) List(ctx context.Context) ([]model.Group, error) {
	var groups []model.Group
	err := s.db.WithContext(ctx).Preload("Profiles").Order("name").Find(&groups).Error
	return groups, err
}

func (s *Groups) Get(ctx context.Context, id uint) (*model.Group, error) {
	var g model.Group
	if err := s.db.WithContext(ctx).Preload("Profiles").First(&g, id).Error; err != nil {
		return nil, notFound(err, "group %d", id)
	}
	return &g, nil
}

func (s *Groups) GetByName(ctx context.Context, name string) (*model.Group, error) {
	var g model.Group
	if err := s.db.WithContext(ctx).Preload("Profiles").Where("name = ?", name).First(&g).Error; err != nil {
		return nil, notFound(err, "group %q", name)
	}
	return &g, nil
}

// Save writes the group row only; members change through ReplaceMembers.
func (s *Groups) Save(ctx context.Context, g *model.Group) error {
	return s.db.WithContext(ctx).Omit("Profiles").Save(g).Error
}

func (s *Groups) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", id).Delete(&model.Profile{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Group{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("group %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

// ReplaceMembers saves g and swaps its members in one transaction. On error
// nothing is written and a new g keeps a zero ID.
func (s *Groups) ReplaceMembers(ctx context.Context, g *model.Group, links []string) error {
	isNew := g.ID == 0
	var members []model.Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Profiles").Save(g).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", g.ID).Delete(&model.Profile{}).Error; err != nil {
			return err
		}
		members = memberProfiles(g.ID, links)
		if len(members) == 0 {
			return nil
		}
		return tx.Create(&members).Error
	})
	if err != nil {
		if isNew {
			g.ID = 0
		}
		return err
	}
	g.Profiles = members
	return nil
}

// FetchAndReplaceMembers downloads before touching the database, so a failed
// fetch leaves g and its members as they were.
func (s *Groups) FetchAndReplaceMembers(ctx context.Context, g *model.Group) (int, error) {
	if g.URL == "" {
		return 0, fmt.Errorf("group %q: %w", g.Name, ErrNotRemote)
	}
	if s.fetcher == nil {
		return 0, ErrNoFetcher
	}

	body, err := s.fetcher.Fetch(ctx, g.URL)
	if err != nil {
		return 0, err
	}
	links := xray.ExtractSubscription(body)
	if len(links) == 0 {
		return 0, fmt.Errorf("group %q: %w", g.Name, ErrEmptyDownload)
	}

	g.LastUpdated = time.Now()
	if err := s.ReplaceMembers(ctx, g, links); err != nil {
		return 0, err
	}
	logger.Log.Infof("Group %q: %d members from %s", g.Name, len(links), g.URL)
	return len(links), nil
}

// memberProfiles names each link after its descriptor, keeping names unique
// within the group.
func memberProfiles(groupID uint, links []string) []model.Profile {
	seen := make(map[string]int)
	members := make([]model.Profile, 0, len(links))
	for i, link := range links {
		name := fmt.Sprintf("#%d", i+1)
		if d, err := parser.Parse(link); err == nil {
			name = d.DisplayName()
		}
		seen[strings.ToLower(name)]++
		if n := seen[strings.ToLower(name)]; n > 1 {
			name = fmt.Sprintf("%s (%d)", name, n)
		}

		gid := groupID
		members = append(members, model.Profile{
			Name:        name,
			Content:     link,
			GroupID:     &gid,
			Fingerprint: FingerprintOf(link),
		})
	}
	return members
}
