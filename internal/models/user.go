package models

import (
	"time"
)

// User belongs to exactly one realm. Email is unique within a realm, not
// globally. PasswordHash is empty for pure-federated accounts.
type User struct {
	ID      string `gorm:"primaryKey"`
	RealmID uint   `gorm:"uniqueIndex:idx_realm_email;not null"`
	Realm   Realm  `gorm:"foreignKey:RealmID"`

	Email        string `gorm:"uniqueIndex:idx_realm_email;not null"`
	FullName     string
	Active       bool `gorm:"not null;default:true"`
	PasswordHash string

	// AuthSource records which backend created or last authenticated the
	// account ("password", "directory", "github", ...).
	AuthSource string `gorm:"default:'password'"`

	// APIKey is the current mobile/API credential, regenerated on each
	// mobile-flow login.
	APIKey string `gorm:"index"`

	// Avatar sync state. AvatarFingerprint is the SHA-256 of the last
	// synced image; directory sync skips the upload when it matches.
	AvatarSourceURL   string
	AvatarFingerprint string

	ProfileValues []CustomProfileValue `gorm:"foreignKey:UserID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsFederated reports whether the user has no locally verifiable secret.
func (u *User) IsFederated() bool {
	return u.PasswordHash == ""
}
