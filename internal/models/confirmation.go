package models

import "time"

// Confirmation is a single-use registration record gating completion of
// signup for a not-yet-created account. Created by the registration bridge,
// consumed exactly once by the registration form.
type Confirmation struct {
	Key     string `gorm:"primaryKey"`
	Email   string `gorm:"not null"`
	RealmID uint   `gorm:"index;not null"`
	Realm   Realm  `gorm:"foreignKey:RealmID"`

	FullName string
	// AuthSource names the backend that verified the email. Federated and
	// SSO signups omit the password field on the registration form.
	AuthSource string

	// MultiuseInviteID binds the confirmation to the invite that admitted
	// it; the created user inherits the invite's stream grants.
	MultiuseInviteID *uint
	MultiuseInvite   *MultiuseInvite `gorm:"foreignKey:MultiuseInviteID"`

	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// Usable reports whether the confirmation can still be consumed.
func (c *Confirmation) Usable(now time.Time) bool {
	return c.ConsumedAt == nil && now.Before(c.ExpiresAt)
}

// PasswordRequired reports whether the registration form should collect a
// password for this signup.
func (c *Confirmation) PasswordRequired() bool {
	return c.AuthSource == "" || c.AuthSource == "password"
}
