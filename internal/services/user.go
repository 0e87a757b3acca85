package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/go-realmgate/realmgate/internal/core"
	"github.com/go-realmgate/realmgate/internal/models"
	"github.com/go-realmgate/realmgate/internal/store"
	"github.com/go-realmgate/realmgate/internal/util"
)

var (
	ErrUserNotFound = errors.New("user not found")
)

// UserService wraps user persistence with a cache-aside user cache and the
// login side effects (notification dispatch, API key rotation).
type UserService struct {
	store    *store.Store
	cache    core.Cache[models.User]
	cacheTTL time.Duration
	notifier Notifier
}

func NewUserService(
	s *store.Store,
	userCache core.Cache[models.User],
	cacheTTL time.Duration,
	notifier Notifier,
) *UserService {
	return &UserService{
		store:    s,
		cache:    userCache,
		cacheTTL: cacheTTL,
		notifier: notifier,
	}
}

func userCacheKey(id string) string { return "user:" + id }

// GetByID fetches a user through the cache.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	if s.cache == nil {
		return s.store.GetUserByID(id)
	}
	user, err := s.cache.GetWithFetch(ctx, userCacheKey(id), s.cacheTTL,
		func(ctx context.Context, key string) (models.User, error) {
			u, err := s.store.GetUserByID(id)
			if err != nil {
				return models.User{}, err
			}
			return *u, nil
		})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Create persists a new user with a bcrypt password hash when password is
// non-empty; federated accounts pass "".
func (s *UserService) Create(
	ctx context.Context,
	realm *models.Realm,
	email, fullName, password, authSource string,
) (*models.User, error) {
	user := &models.User{
		ID:         uuid.New().String(),
		RealmID:    realm.ID,
		Email:      email,
		FullName:   fullName,
		Active:     true,
		AuthSource: authSource,
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hashing password: %w", err)
		}
		user.PasswordHash = string(hash)
	}
	if err := s.store.CreateUser(user); err != nil {
		return nil, err
	}
	user.Realm = *realm
	return user, nil
}

// Deactivate denies all of the user's future logins. Idempotent.
func (s *UserService) Deactivate(ctx context.Context, userID string) error {
	if err := s.store.SetUserActive(userID, false); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// Reactivate restores the user's prior login ability. Idempotent.
func (s *UserService) Reactivate(ctx context.Context, userID string) error {
	if err := s.store.SetUserActive(userID, true); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// RotateAPIKey issues a fresh API credential, invalidating the previous
// one. Called on every mobile-flow login.
func (s *UserService) RotateAPIKey(ctx context.Context, userID string) (string, error) {
	key, err := util.GenerateAPIKey()
	if err != nil {
		return "", err
	}
	if err := s.store.SetUserFields(userID, map[string]any{"api_key": key}); err != nil {
		return "", err
	}
	s.invalidate(ctx, userID)
	return key, nil
}

// NotifyLogin dispatches the fire-and-forget login notification.
func (s *UserService) NotifyLogin(user *models.User, clientDescription string) {
	dispatchLoginNotification(s.notifier, user, clientDescription)
}

func (s *UserService) invalidate(ctx context.Context, userID string) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, userCacheKey(userID))
	}
}
