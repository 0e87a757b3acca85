package bootstrap

import (
	"log"
	"net/http"

	"github.com/appleboy/graceful"
	"github.com/gin-gonic/gin"

	"github.com/go-realmgate/realmgate/internal/auth"
	"github.com/go-realmgate/realmgate/internal/config"
	"github.com/go-realmgate/realmgate/internal/core"
	"github.com/go-realmgate/realmgate/internal/handoff"
	"github.com/go-realmgate/realmgate/internal/metrics"
	"github.com/go-realmgate/realmgate/internal/models"
	"github.com/go-realmgate/realmgate/internal/services"
	"github.com/go-realmgate/realmgate/internal/store"
	"github.com/go-realmgate/realmgate/internal/version"
)

// Application holds all initialized components
type Application struct {
	Config *config.Config

	// Core infrastructure
	DB              *store.Store
	MetricsRecorder core.Recorder
	SettingsCache   core.Cache[services.ServerSettings]
	UserCache       core.Cache[models.User]

	// Auth layer
	Gate      *auth.PolicyGate
	Registry  *auth.Registry
	Signer    *handoff.Signer
	Providers map[string]auth.ProviderClient

	// Services
	UserService  *services.UserService
	RealmService *services.RealmService
	Bridge       *services.RegistrationBridge

	// HTTP
	Router *gin.Engine
	Server *http.Server
}

// Run initializes and starts the application
func Run(cfg *config.Config) error {
	// Configuration invariants are fatal at startup, never at login time.
	if err := cfg.Validate(); err != nil {
		return err
	}

	app := &Application{Config: cfg}

	if err := app.initializeInfrastructure(); err != nil {
		return err
	}
	app.initializeAuthLayer()
	app.initializeServices()
	app.Router = setupRouter(app)
	app.Server = createHTTPServer(cfg, app.Router)

	m := graceful.NewManager()
	addServerRunningJob(m, app.Server)
	addServerShutdownJob(m, app.Server)
	addCacheShutdownJob(m, app)
	addStoreShutdownJob(m, app.DB)

	log.Printf("Starting %s %s on %s (external host %s)",
		version.App, version.String(), cfg.ServerAddr, cfg.ExternalHost)
	<-m.Done()
	return nil
}

func (app *Application) initializeInfrastructure() error {
	db, err := store.New(app.Config.DatabaseDriver, app.Config.DatabaseDSN)
	if err != nil {
		return err
	}
	app.DB = db

	app.MetricsRecorder = metrics.Init(app.Config.MetricsEnabled)

	if err := app.initializeCaches(); err != nil {
		return err
	}
	return nil
}
