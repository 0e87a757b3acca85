package store

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/go-realmgate/realmgate/internal/models"
)

// CreateRealm persists a new realm. A realm with zero enabled
// authentication methods is rejected at write time.
func (s *Store) CreateRealm(realm *models.Realm) error {
	if len(realm.MethodSet()) == 0 {
		return ErrLastAuthMethod
	}
	return s.db.Create(realm).Error
}

// GetRealm fetches a realm by primary key.
func (s *Store) GetRealm(id uint) (*models.Realm, error) {
	var realm models.Realm
	if err := s.db.First(&realm, id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &realm, nil
}

// GetRealmBySubdomain fetches a realm by its unique subdomain.
func (s *Store) GetRealmBySubdomain(subdomain string) (*models.Realm, error) {
	var realm models.Realm
	err := s.db.Where("subdomain = ?", strings.ToLower(subdomain)).First(&realm).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &realm, nil
}

// GetRealmByEmailDomain finds the realm that has registered the given email
// domain in its allowed-domain list. Used by directory logins to rebind a
// resolved email to its owning realm.
func (s *Store) GetRealmByEmailDomain(domain string) (*models.Realm, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return nil, ErrNotFound
	}
	var realms []models.Realm
	if err := s.db.Where("allowed_domains <> ''").Find(&realms).Error; err != nil {
		return nil, err
	}
	for i := range realms {
		if realms[i].OwnsDomain(domain) {
			return &realms[i], nil
		}
	}
	return nil, ErrNotFound
}

// UpdateRealmMethods replaces a realm's enabled-authentication-method set,
// enforcing the at-least-one-method invariant.
func (s *Store) UpdateRealmMethods(realmID uint, methods []string) error {
	cleaned := make([]string, 0, len(methods))
	for _, m := range methods {
		if m = strings.TrimSpace(m); m != "" {
			cleaned = append(cleaned, m)
		}
	}
	if len(cleaned) == 0 {
		return ErrLastAuthMethod
	}
	return s.db.Model(&models.Realm{}).
		Where("id = ?", realmID).
		Update("auth_methods", strings.Join(cleaned, ",")).Error
}

// SetRealmActive toggles a realm's activation flag. Deactivation cascades to
// deny all the realm's users' logins without deleting data.
func (s *Store) SetRealmActive(realmID uint, active bool) error {
	return s.db.Model(&models.Realm{}).
		Where("id = ?", realmID).
		Update("active", active).Error
}

// GetProfileField fetches a realm's custom profile field definition by name.
func (s *Store) GetProfileField(realmID uint, name string) (*models.CustomProfileField, error) {
	var field models.CustomProfileField
	err := s.db.Where("realm_id = ? AND name = ?", realmID, name).First(&field).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &field, nil
}

// CreateProfileField persists a custom profile field definition.
func (s *Store) CreateProfileField(field *models.CustomProfileField) error {
	return s.db.Create(field).Error
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
