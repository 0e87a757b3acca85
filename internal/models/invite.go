package models

import (
	"strings"
	"time"
)

// MultiuseInvite is a reusable invitation granting access to an otherwise
// invite-only realm, with optional stream membership grants.
type MultiuseInvite struct {
	ID      uint   `gorm:"primaryKey"`
	Key     string `gorm:"uniqueIndex;not null"`
	RealmID uint   `gorm:"index;not null"`
	Realm   Realm  `gorm:"foreignKey:RealmID"`

	ReferrerID string // inviting user, informational
	// Streams is a comma-joined list of stream names the invited user is
	// subscribed to on registration.
	Streams string
	Active  bool `gorm:"not null;default:true"`

	CreatedAt time.Time
}

// StreamList returns the invite's stream grants.
func (m *MultiuseInvite) StreamList() []string {
	var out []string
	for _, s := range strings.Split(m.Streams, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
