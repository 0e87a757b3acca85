package models

import (
	"errors"
	"strings"
	"time"

	"github.com/go-realmgate/realmgate/internal/util"
)

// Email restriction policies for a realm.
const (
	EmailRestrictionOpen         = "open"
	EmailRestrictionDomains      = "domains"
	EmailRestrictionNoDisposable = "no_disposable"
)

var (
	ErrEmailOutsideRealmDomains = errors.New("email domain not allowed in this realm")
	ErrDisposableEmail          = errors.New("disposable email addresses are not allowed")
)

// disposableDomains is a minimal built-in denylist; deployments extend it
// via realm configuration.
var disposableDomains = map[string]bool{
	"mailinator.com":    true,
	"guerrillamail.com": true,
	"10minutemail.com":  true,
	"sharklasers.com":   true,
}

// Realm is a tenant organization: the unit of authentication-policy
// configuration. Deactivating a realm denies login to all of its users
// without deleting any data.
type Realm struct {
	ID        uint   `gorm:"primaryKey"`
	Subdomain string `gorm:"uniqueIndex;not null"`
	Name      string
	Active    bool `gorm:"not null;default:true"`

	// AuthMethods is the realm's enabled-authentication-method set stored
	// as a comma-joined column. Use MethodSet / MethodEnabled / SetMethods;
	// the store rejects writes that would leave the set empty.
	AuthMethods string `gorm:"not null"`

	// EmailRestriction is one of the EmailRestriction* policies.
	EmailRestriction string `gorm:"not null;default:'open'"`
	// AllowedDomains is a comma-joined list, used when EmailRestriction
	// is EmailRestrictionDomains. Also consulted for directory logins to
	// map an email domain back to its owning realm.
	AllowedDomains string

	InviteRequired bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MethodSet returns the enabled-authentication-method set.
func (r *Realm) MethodSet() map[string]bool {
	set := make(map[string]bool)
	for _, m := range strings.Split(r.AuthMethods, ",") {
		if m = strings.TrimSpace(m); m != "" {
			set[m] = true
		}
	}
	return set
}

// MethodEnabled reports whether the named backend is enabled in this realm.
func (r *Realm) MethodEnabled(name string) bool {
	return r.MethodSet()[name]
}

// SetMethods replaces the enabled-method set. Persisting an empty set is
// rejected by the store, not here, so callers can stage edits.
func (r *Realm) SetMethods(names []string) {
	r.AuthMethods = strings.Join(names, ",")
}

// DomainList returns the realm's allowed email domains.
func (r *Realm) DomainList() []string {
	var out []string
	for _, d := range strings.Split(r.AllowedDomains, ",") {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// OwnsDomain reports whether the realm claims the given email domain.
func (r *Realm) OwnsDomain(domain string) bool {
	domain = strings.ToLower(domain)
	for _, d := range r.DomainList() {
		if d == domain {
			return true
		}
	}
	return false
}

// EmailAllowed applies the realm's domain-restriction policy to a candidate
// registration email.
func (r *Realm) EmailAllowed(email string) error {
	domain := util.EmailDomain(email)
	switch r.EmailRestriction {
	case EmailRestrictionDomains:
		if !r.OwnsDomain(domain) {
			return ErrEmailOutsideRealmDomains
		}
	case EmailRestrictionNoDisposable:
		if disposableDomains[domain] {
			return ErrDisposableEmail
		}
	}
	return nil
}
