package bootstrap

import (
	"log"
	"sort"

	"github.com/go-realmgate/realmgate/internal/auth"
	"github.com/go-realmgate/realmgate/internal/config"
	"github.com/go-realmgate/realmgate/internal/core"
	"github.com/go-realmgate/realmgate/internal/directory"
	"github.com/go-realmgate/realmgate/internal/handoff"
	"github.com/go-realmgate/realmgate/internal/services"
)

// initializeAuthLayer constructs the policy gate, the fixed backend
// registry, the federated providers and the handoff signer. Every known
// backend is registered; the gate decides per request which ones may run.
func (app *Application) initializeAuthLayer() {
	cfg := app.Config

	app.Gate = auth.NewPolicyGate(cfg.EnabledBackends)
	app.Registry = auth.NewRegistry(app.Gate, app.MetricsRecorder)
	app.Signer = handoff.NewSigner(cfg.HandoffSecret, cfg.HandoffTTL)

	app.Registry.Register(auth.NewPasswordBackend(app.DB))
	app.Registry.Register(auth.NewDevBackend(app.DB, cfg.Production))
	app.Registry.Register(auth.NewTrustedHeaderBackend(app.DB, cfg.SSOAppendDomain))
	app.Registry.Register(auth.NewAssertionBackend(app.DB, cfg.JWTAuthKeys))
	app.Registry.Register(auth.NewFederatedBackend(app.DB, core.BackendGitHub))
	app.Registry.Register(app.buildDirectoryBackend())

	app.Providers = app.buildProviders()

	log.Printf("Enabled backends: %v", sortedCopy(cfg.EnabledBackends))
}

func (app *Application) buildDirectoryBackend() *auth.DirectoryBackend {
	cfg := app.Config

	var client auth.DirectoryClient
	if cfg.DirectoryServerURL != "" {
		client = directory.NewLDAPClient(directory.Config{
			ServerURL:      cfg.DirectoryServerURL,
			SearchDN:       cfg.DirectorySearchDN,
			SearchPassword: cfg.DirectorySearchPassword,
		})
	}

	var avatars auth.AvatarUploader
	if store, err := directory.NewFileAvatarStore(cfg.AvatarDir, cfg.AvatarBaseURL); err != nil {
		// Avatar sync degrades to a no-op; logins are unaffected.
		log.Printf("[directory] avatar store unavailable: %v", err)
	} else {
		avatars = store
	}

	return auth.NewDirectoryBackend(app.DB, client, auth.DirectoryConfig{
		UserDNTemplate:   cfg.DirectoryUserDNTemplate,
		AppendDomain:     cfg.DirectoryAppendDomain,
		EmailAttribute:   cfg.DirectoryEmailAttribute,
		AttributeMap:     cfg.DirectoryAttributeMap,
		ControlAttribute: cfg.DirectoryControlAttribute,
		DeactivateAbsent: cfg.DirectoryDeactivateAbsent,
	}, avatars, app.MetricsRecorder)
}

// buildProviders constructs the federated identity providers. Providers
// with missing credentials are skipped; the gate rejects their backend as
// unconfigured rather than failing at request time.
func (app *Application) buildProviders() map[string]auth.ProviderClient {
	cfg := app.Config
	providers := make(map[string]auth.ProviderClient)

	if cfg.GitHubClientID != "" && cfg.GitHubClientSecret != "" {
		providers[core.BackendGitHub] = auth.NewGitHubProvider(auth.GitHubProviderConfig{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  callbackURL(cfg, core.BackendGitHub),
			Org:          cfg.GitHubOrg,
			Team:         cfg.GitHubTeam,
		})
		log.Printf("Federated provider configured: %s", core.BackendGitHub)
	}
	return providers
}

// callbackURL builds the provider-neutral callback on the root domain.
// Handoff tokens carry the login back to the realm subdomain afterwards.
func callbackURL(cfg *config.Config, provider string) string {
	scheme := "http"
	if cfg.Production {
		scheme = "https"
	}
	return scheme + "://" + cfg.ExternalHost + "/complete/" + provider
}

func (app *Application) initializeServices() {
	cfg := app.Config

	app.UserService = services.NewUserService(
		app.DB, app.UserCache, cfg.UserCacheTTL, services.LogNotifier{})
	app.RealmService = services.NewRealmService(
		app.DB, app.Registry, app.SettingsCache, cfg.SettingsCacheTTL, cfg.MinMobileVersion)
	app.Bridge = services.NewRegistrationBridge(app.DB, app.MetricsRecorder)
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
