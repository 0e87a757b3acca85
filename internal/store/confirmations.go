package store

import (
	"strings"
	"time"

	"github.com/go-realmgate/realmgate/internal/models"
)

// CreateConfirmation persists a pending-registration record.
func (s *Store) CreateConfirmation(c *models.Confirmation) error {
	c.Email = strings.ToLower(c.Email)
	return s.db.Create(c).Error
}

// GetConfirmation fetches a confirmation by key with its realm and invite
// preloaded.
func (s *Store) GetConfirmation(key string) (*models.Confirmation, error) {
	var c models.Confirmation
	err := s.db.Preload("Realm").Preload("MultiuseInvite").
		First(&c, "key = ?", key).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &c, nil
}

// ConsumeConfirmation marks a confirmation consumed, exactly once. An
// already-consumed or expired record yields ErrConfirmationUsed.
func (s *Store) ConsumeConfirmation(key string, now time.Time) (*models.Confirmation, error) {
	c, err := s.GetConfirmation(key)
	if err != nil {
		return nil, err
	}
	if !c.Usable(now) {
		return nil, ErrConfirmationUsed
	}
	res := s.db.Model(&models.Confirmation{}).
		Where("key = ? AND consumed_at IS NULL", key).
		Update("consumed_at", now)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrConfirmationUsed
	}
	c.ConsumedAt = &now
	return c, nil
}

// CountPendingConfirmations returns unconsumed confirmations for an email in
// a realm, used by tests and cleanup tooling.
func (s *Store) CountPendingConfirmations(realmID uint, email string) (int64, error) {
	var count int64
	err := s.db.Model(&models.Confirmation{}).
		Where("realm_id = ? AND email = ? AND consumed_at IS NULL", realmID, strings.ToLower(email)).
		Count(&count).Error
	return count, err
}

// GetMultiuseInvite fetches an active multiuse invite by key.
func (s *Store) GetMultiuseInvite(key string) (*models.MultiuseInvite, error) {
	var invite models.MultiuseInvite
	err := s.db.Preload("Realm").
		Where("key = ? AND active = ?", key, true).
		First(&invite).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &invite, nil
}

// CreateMultiuseInvite persists a multiuse invite.
func (s *Store) CreateMultiuseInvite(invite *models.MultiuseInvite) error {
	return s.db.Create(invite).Error
}
