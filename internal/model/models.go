package model

import (
	"time"
)

// Profile is a saved server configuration. Content holds the raw text (a share
// link or a full xray json config); descriptors are derived from it on demand.
type Profile struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"index"`
	Content   string
	CreatedAt time.Time

	// Remote-backed profiles refresh Content from URL.
	URL                string
	AutoUpdate         bool
	AutoUpdateInterval int // minutes
	LastUpdated        time.Time

	// Identity of the server in Content, empty when Content is not a share link.
	Fingerprint string `gorm:"index"`

	// Set for members of a group. Names are unique among standalone profiles and
	// within one group.
	GroupID *uint `gorm:"index"`
}

// IsRemote reports whether the profile is refreshed from a URL.
func (p *Profile) IsRemote() bool {
	return p.URL != ""
}

// Group is a named collection of profiles, optionally backed by a subscription URL.
type Group struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex"`
	CreatedAt time.Time

	URL                string
	AutoUpdate         bool
	AutoUpdateInterval int
	LastUpdated        time.Time

	// Relationships
	Profiles []Profile `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
}

// Setting is one key of the persistent key-value settings store.
type Setting struct {
	Key   string `gorm:"primaryKey"`
	Value string
}
