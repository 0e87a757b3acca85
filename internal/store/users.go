package store

import (
	"strings"

	"github.com/go-realmgate/realmgate/internal/models"
)

// CreateUser persists a new user. Emails are stored lowercased.
func (s *Store) CreateUser(user *models.User) error {
	user.Email = strings.ToLower(user.Email)
	var count int64
	s.db.Model(&models.User{}).
		Where("realm_id = ? AND email = ?", user.RealmID, user.Email).
		Count(&count)
	if count > 0 {
		return ErrDuplicateEmail
	}
	return s.db.Create(user).Error
}

// GetUserByID fetches a user with its realm preloaded.
func (s *Store) GetUserByID(id string) (*models.User, error) {
	var user models.User
	err := s.db.Preload("Realm").First(&user, "id = ?", id).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &user, nil
}

// GetUserByEmail fetches a user by (realm, email) with its realm preloaded.
// Email comparison is case-insensitive.
func (s *Store) GetUserByEmail(realmID uint, email string) (*models.User, error) {
	var user models.User
	err := s.db.Preload("Realm").
		Where("realm_id = ? AND email = ?", realmID, strings.ToLower(email)).
		First(&user).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &user, nil
}

// UpdateUser persists the given user record.
func (s *Store) UpdateUser(user *models.User) error {
	return s.db.Save(user).Error
}

// SetUserActive toggles a user's activation flag. The toggle is idempotent.
func (s *Store) SetUserActive(userID string, active bool) error {
	return s.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("active", active).Error
}

// SetUserFields applies a partial update to a user row.
func (s *Store) SetUserFields(userID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return s.db.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(fields).Error
}

// SetProfileValue upserts one user's value for a custom profile field.
func (s *Store) SetProfileValue(userID string, fieldID uint, value string) error {
	var existing models.CustomProfileValue
	err := s.db.Where("user_id = ? AND field_id = ?", userID, fieldID).
		First(&existing).Error
	if err == nil {
		if existing.Value == value {
			return nil
		}
		existing.Value = value
		return s.db.Save(&existing).Error
	}
	return s.db.Create(&models.CustomProfileValue{
		UserID:  userID,
		FieldID: fieldID,
		Value:   value,
	}).Error
}

// GetProfileValue fetches one user's value for a field.
func (s *Store) GetProfileValue(userID string, fieldID uint) (*models.CustomProfileValue, error) {
	var value models.CustomProfileValue
	err := s.db.Where("user_id = ? AND field_id = ?", userID, fieldID).First(&value).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &value, nil
}

// CountUsers returns the number of users in a realm.
func (s *Store) CountUsers(realmID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.User{}).Where("realm_id = ?", realmID).Count(&count).Error
	return count, err
}
