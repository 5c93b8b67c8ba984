package store

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"linkdrop/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newGormLogger reports SQL errors only. Lookups by name miss on every new
// import, so record-not-found is not an error here.
func newGormLogger(w io.Writer) logger.Interface {
	return logger.New(log.New(w, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Error,
		IgnoreRecordNotFoundError: true,
		Colorful:                  true,
	})
}

func Connect(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: newGormLogger(os.Stdout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.Profile{}, &model.Group{}, &model.Setting{})
}

// DB bundles the sqlite-backed stores.
type DB struct {
	gorm     *gorm.DB
	Profiles *Profiles
	Groups   *Groups
	Settings *KV
}

// Open connects, migrates and wires the stores. fetcher may be nil, in which case
// downloads fail.
func Open(path string, fetcher *Fetcher) (*DB, error) {
	db, err := Connect(path)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &DB{
		gorm:     db,
		Profiles: &Profiles{db: db, fetcher: fetcher},
		Groups:   &Groups{db: db, fetcher: fetcher},
		Settings: &KV{db: db},
	}, nil
}

func (d *DB) Close() error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
