package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-realmgate/realmgate/internal/auth"
	"github.com/go-realmgate/realmgate/internal/core"
	"github.com/go-realmgate/realmgate/internal/models"
	"github.com/go-realmgate/realmgate/internal/store"
	"github.com/go-realmgate/realmgate/internal/version"
)

var ErrRealmNotFound = errors.New("realm not found")

// ServerSettings is the machine-readable settings snapshot returned to
// clients before login: which backends they may offer, plus version and
// compatibility information.
type ServerSettings struct {
	AuthenticationMethods map[string]bool `json:"authentication_methods"`
	Version               string          `json:"version"`
	RealmName             string          `json:"realm_name,omitempty"`
	RealmActive           bool            `json:"realm_active"`
	RequireInvite         bool            `json:"require_invite"`
	IncompatibleClient    bool            `json:"incompatible_client"`
}

// RealmService wraps realm persistence with a settings cache. Settings
// writes invalidate the affected subdomain explicitly; there is no implicit
// cache-clearing side channel.
type RealmService struct {
	store            *store.Store
	registry         *auth.Registry
	settingsCache    core.Cache[ServerSettings]
	settingsTTL      time.Duration
	minMobileVersion string
}

func NewRealmService(
	s *store.Store,
	registry *auth.Registry,
	settingsCache core.Cache[ServerSettings],
	settingsTTL time.Duration,
	minMobileVersion string,
) *RealmService {
	return &RealmService{
		store:            s,
		registry:         registry,
		settingsCache:    settingsCache,
		settingsTTL:      settingsTTL,
		minMobileVersion: minMobileVersion,
	}
}

func settingsCacheKey(subdomain string) string { return "settings:" + subdomain }

// GetBySubdomain fetches a realm; empty subdomain means no realm context.
func (s *RealmService) GetBySubdomain(ctx context.Context, subdomain string) (*models.Realm, error) {
	if subdomain == "" {
		return nil, ErrRealmNotFound
	}
	realm, err := s.store.GetRealmBySubdomain(subdomain)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRealmNotFound
		}
		return nil, err
	}
	return realm, nil
}

// Settings returns the settings snapshot for a subdomain, cached.
func (s *RealmService) Settings(
	ctx context.Context,
	subdomain, userAgent string,
) (*ServerSettings, error) {
	fetch := func(ctx context.Context, key string) (ServerSettings, error) {
		return s.buildSettings(ctx, subdomain)
	}

	var settings ServerSettings
	var err error
	if s.settingsCache != nil {
		settings, err = s.settingsCache.GetWithFetch(
			ctx, settingsCacheKey(subdomain), s.settingsTTL, fetch)
	} else {
		settings, err = fetch(ctx, "")
	}
	if err != nil {
		return nil, err
	}

	// Compatibility depends on the requesting client, so it is computed
	// after the cached part.
	settings.IncompatibleClient = s.incompatibleClient(userAgent)
	return &settings, nil
}

func (s *RealmService) buildSettings(ctx context.Context, subdomain string) (ServerSettings, error) {
	var realm *models.Realm
	if subdomain != "" {
		r, err := s.GetBySubdomain(ctx, subdomain)
		if err != nil && !errors.Is(err, ErrRealmNotFound) {
			return ServerSettings{}, err
		}
		realm = r
	}

	settings := ServerSettings{
		AuthenticationMethods: s.registry.EnabledFor(realm),
		Version:               version.String(),
		RealmActive:           realm == nil || realm.Active,
	}
	if realm != nil {
		settings.RealmName = realm.Name
		settings.RequireInvite = realm.InviteRequired
	}
	return settings, nil
}

// incompatibleClient flags mobile clients older than the configured
// minimum. The user-agent convention is "ZulipMobile/<version> ...".
func (s *RealmService) incompatibleClient(userAgent string) bool {
	if s.minMobileVersion == "" {
		return false
	}
	const prefix = "ZulipMobile/"
	if !strings.HasPrefix(userAgent, prefix) {
		return false
	}
	rest := strings.TrimPrefix(userAgent, prefix)
	if idx := strings.IndexByte(rest, ' '); idx >= 0 {
		rest = rest[:idx]
	}
	return compareVersions(rest, s.minMobileVersion) < 0
}

// compareVersions compares dotted numeric versions; non-numeric segments
// compare as zero.
func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		av, bv := 0, 0
		if i < len(as) {
			av = atoiSafe(as[i])
		}
		if i < len(bs) {
			bv = atoiSafe(bs[i])
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

func atoiSafe(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return n
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// UpdateMethods replaces a realm's enabled-method set and invalidates the
// cached settings snapshot for its subdomain.
func (s *RealmService) UpdateMethods(ctx context.Context, realm *models.Realm, methods []string) error {
	if err := s.store.UpdateRealmMethods(realm.ID, methods); err != nil {
		return err
	}
	s.InvalidateSettings(ctx, realm.Subdomain)
	return nil
}

// SetActive toggles realm activation and invalidates cached settings.
func (s *RealmService) SetActive(ctx context.Context, realm *models.Realm, active bool) error {
	if err := s.store.SetRealmActive(realm.ID, active); err != nil {
		return err
	}
	s.InvalidateSettings(ctx, realm.Subdomain)
	return nil
}

// InvalidateSettings is the explicit settings-cache invalidation hook.
func (s *RealmService) InvalidateSettings(ctx context.Context, subdomain string) {
	if s.settingsCache != nil {
		_ = s.settingsCache.Delete(ctx, settingsCacheKey(subdomain))
	}
}
