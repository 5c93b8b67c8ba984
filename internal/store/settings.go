package store

import (
	"context"
	"errors"

	"linkdrop/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Keys used by the service layer.
const (
	SettingDeviceName      = "device_name"
	SettingSelectedProfile = "selected_profile"
)

type KV struct {
	db *gorm.DB
}

var _ Settings = (*KV)(nil)

func (s *KV) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, nil
	}
	var setting model.Setting
	err := s.db.WithContext(ctx).Where(&model.Setting{Key: key}).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return setting.Value, true, nil
}

func (s *KV) Set(ctx context.Context, key, value string) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&model.Setting{Key: key, Value: value}).Error
}
