package bootstrap

import (
	"log"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/go-realmgate/realmgate/internal/config"
	"github.com/go-realmgate/realmgate/internal/handlers"
	"github.com/go-realmgate/realmgate/internal/metrics"
	"github.com/go-realmgate/realmgate/internal/middleware"
	"github.com/go-realmgate/realmgate/internal/store"
)

// setupRouter configures the Gin router with all routes and middleware
func setupRouter(app *Application) *gin.Engine {
	cfg := app.Config
	setupGinMode(cfg)
	r := gin.New()

	r.Use(metrics.HTTPMetricsMiddleware(app.MetricsRecorder))
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.IPMiddleware())
	setupSessionMiddleware(r, cfg)
	r.Use(middleware.RealmMiddleware(app.RealmService, cfg.ExternalHost))

	if cfg.AvatarDir != "" {
		r.Static(cfg.AvatarBaseURL, cfg.AvatarDir)
	}

	r.GET("/health", createHealthCheckHandler(app.DB))
	setupMetricsEndpoint(r, cfg)

	login := handlers.NewLoginHandler(app.Registry, app.UserService, cfg.SSOHeader)
	oauth := handlers.NewOAuthHandler(app.Providers, app.Signer, app.MetricsRecorder, cfg.ExternalHost)
	hoff := handlers.NewHandoffHandler(app.Registry, app.UserService, app.Bridge, app.Signer, app.MetricsRecorder)
	reg := handlers.NewRegistrationHandler(app.DB, app.Bridge, app.UserService)
	settings := handlers.NewSettingsHandler(app.RealmService)

	accounts := r.Group("/accounts")
	{
		accounts.GET("/login", login.LoginForm)
		accounts.POST("/login", login.PasswordLogin)
		accounts.GET("/login/sso", login.TrustedHeaderLogin)
		accounts.POST("/login/jwt", login.JWTLogin)
		accounts.GET("/login/dev", login.DevLogin)
		accounts.GET("/logout", login.Logout)

		// Federated login starts on the realm subdomain; the provider
		// calls back on the root domain, so the state cookie must span
		// subdomains (see setupSessionMiddleware).
		accounts.GET("/login/oauth/:provider", oauth.Start)
		accounts.GET("/login/choose_email", oauth.ChooseEmail)
		accounts.POST("/login/choose_email", oauth.ChooseEmail)

		accounts.GET("/login/subdomain/:token", hoff.Consume)

		accounts.GET("/register", reg.Form)
		accounts.POST("/register", reg.Submit)
	}

	r.GET("/complete/:provider", oauth.Callback)

	api := r.Group("/api/v1")
	{
		api.GET("/server_settings", settings.ServerSettings)
	}

	return r
}

// setupSessionMiddleware configures session handling middleware. The cookie
// domain is widened to the external host so OAuth state set on a realm
// subdomain is readable on the root-domain callback.
func setupSessionMiddleware(r *gin.Engine, cfg *config.Config) {
	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		Domain:   "." + cfg.ExternalHost,
		MaxAge:   cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.Production,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("realmgate_session", sessionStore))
}

// setupMetricsEndpoint configures the Prometheus metrics endpoint
func setupMetricsEndpoint(r *gin.Engine, cfg *config.Config) {
	if !cfg.MetricsEnabled {
		log.Printf("Prometheus metrics disabled")
		return
	}
	log.Printf("Prometheus metrics enabled at /metrics")
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// createHealthCheckHandler creates health check endpoint handler
func createHealthCheckHandler(db *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch err := db.Health(); err {
		case nil:
			c.JSON(http.StatusOK, gin.H{
				"status":   "healthy",
				"database": "connected",
			})
		default:
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "disconnected",
			})
		}
	}
}

// setupGinMode sets Gin mode based on environment configuration
func setupGinMode(cfg *config.Config) {
	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
}
