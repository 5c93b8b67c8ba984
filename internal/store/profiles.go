package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"linkdrop/internal/logger"
	"linkdrop/internal/model"
	"linkdrop/internal/xray"

	"gorm.io/gorm"
)

type Profiles struct {
	db      *gorm.DB
	fetcher *Fetcher
}

var _ ProfileStore = (*Profiles)(nil)

func (s *Profiles) List(ctx context.Context) ([]model.Profile, error) {
	var profiles []model.Profile
	err := s.db.WithContext(ctx).Where("group_id IS NULL").Order("name").Find(&profiles).Error
	return profiles, err
}

func (s *Profiles) Get(ctx context.Context, id uint) (*model.Profile, error) {
	var p model.Profile
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFound(err, "profile %d", id)
	}
	return &p, nil
}

func (s *Profiles) GetByName(ctx context.Context, name string) (*model.Profile, error) {
	var p model.Profile
	if err := s.db.WithContext(ctx).Where("name = ? AND group_id IS NULL", name).First(&p).Error; err != nil {
		return nil, notFound(err, "profile %q", name)
	}
	return &p, nil
}

func (s *Profiles) Save(ctx context.Context, p *model.Profile) error {
	p.Fingerprint = FingerprintOf(p.Content)
	return s.db.WithContext(ctx).Save(p).Error
}

func (s *Profiles) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&model.Profile{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("profile %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Profiles) DownloadByURL(ctx context.Context, p *model.Profile) error {
	if !p.IsRemote() {
		return fmt.Errorf("profile %q: %w", p.Name, ErrNotRemote)
	}
	if s.fetcher == nil {
		return ErrNoFetcher
	}

	body, err := s.fetcher.Fetch(ctx, p.URL)
	if err != nil {
		return err
	}
	content, err := profileContent(body)
	if err != nil {
		return fmt.Errorf("profile %q: %w", p.Name, err)
	}

	p.Content = content
	p.LastUpdated = time.Now()
	logger.Log.Debugf("Downloaded profile %q from %s", p.Name, p.URL)
	return s.Save(ctx, p)
}

// profileContent picks the config out of a downloaded body: a full json config is
// kept as-is, otherwise the first share link wins.
func profileContent(body string) (string, error) {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "{") {
		return trimmed, nil
	}
	links := xray.ExtractSubscription(trimmed)
	if len(links) == 0 {
		return "", ErrEmptyDownload
	}
	return links[0], nil
}

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
	}
	return err
}
