package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/go-realmgate/realmgate/internal/auth"
	"github.com/go-realmgate/realmgate/internal/cache"
	"github.com/go-realmgate/realmgate/internal/core"
	"github.com/go-realmgate/realmgate/internal/handoff"
	"github.com/go-realmgate/realmgate/internal/metrics"
	"github.com/go-realmgate/realmgate/internal/middleware"
	"github.com/go-realmgate/realmgate/internal/models"
	"github.com/go-realmgate/realmgate/internal/services"
	"github.com/go-realmgate/realmgate/internal/store"
)

const (
	testExternalHost  = "example.com"
	testHandoffSecret = "test-handoff-secret"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envOptions struct {
	backends  []string
	jwtKeys   map[string]string
	providers map[string]auth.ProviderClient
	ssoHeader string
	directory auth.DirectoryClient
	// extra backends replace the defaults registered under the same name.
	extra []auth.Backend
}

type testEnv struct {
	store    *store.Store
	users    *services.UserService
	realms   *services.RealmService
	registry *auth.Registry
	bridge   *services.RegistrationBridge
	signer   *handoff.Signer
	router   *gin.Engine
}

// newTestEnv wires the handler stack the same way the server does, backed by
// an in-memory database and the no-op metrics recorder.
func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	s, err := store.New("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	if opts.backends == nil {
		opts.backends = core.AllBackends
	}
	if opts.ssoHeader == "" {
		opts.ssoHeader = "X-Forwarded-User"
	}

	recorder := metrics.NewNoopMetrics()
	gate := auth.NewPolicyGate(opts.backends)
	registry := auth.NewRegistry(gate, recorder)
	registry.Register(auth.NewPasswordBackend(s))
	registry.Register(auth.NewDevBackend(s, false))
	registry.Register(auth.NewTrustedHeaderBackend(s, ""))
	registry.Register(auth.NewAssertionBackend(s, opts.jwtKeys))
	registry.Register(auth.NewFederatedBackend(s, core.BackendGitHub))
	if opts.directory != nil {
		registry.Register(auth.NewDirectoryBackend(s, opts.directory, auth.DirectoryConfig{
			UserDNTemplate: "uid=%s,ou=users,dc=acme,dc=com",
		}, nil, recorder))
	}
	for _, b := range opts.extra {
		registry.Register(b)
	}

	signer := handoff.NewSigner(testHandoffSecret, 30*time.Second)
	users := services.NewUserService(
		s, cache.NewMemoryCache[models.User](), time.Minute, services.LogNotifier{})
	realms := services.NewRealmService(
		s, registry, cache.NewMemoryCache[services.ServerSettings](), time.Minute, "27.0")
	bridge := services.NewRegistrationBridge(s, recorder)

	r := gin.New()
	sessionStore := cookie.NewStore([]byte("test-session-secret"))
	sessionStore.Options(sessions.Options{
		Path:   "/",
		Domain: "." + testExternalHost,
		MaxAge: 3600,
	})
	r.Use(sessions.Sessions("realmgate_session", sessionStore))
	r.Use(middleware.IPMiddleware())
	r.Use(middleware.RealmMiddleware(realms, testExternalHost))

	login := NewLoginHandler(registry, users, opts.ssoHeader)
	oauth := NewOAuthHandler(opts.providers, signer, recorder, testExternalHost)
	hoff := NewHandoffHandler(registry, users, bridge, signer, recorder)
	reg := NewRegistrationHandler(s, bridge, users)
	settings := NewSettingsHandler(realms)

	accounts := r.Group("/accounts")
	{
		accounts.GET("/login", login.LoginForm)
		accounts.POST("/login", login.PasswordLogin)
		accounts.GET("/login/sso", login.TrustedHeaderLogin)
		accounts.POST("/login/jwt", login.JWTLogin)
		accounts.GET("/login/dev", login.DevLogin)
		accounts.GET("/logout", login.Logout)
		accounts.GET("/login/oauth/:provider", oauth.Start)
		accounts.GET("/login/choose_email", oauth.ChooseEmail)
		accounts.POST("/login/choose_email", oauth.ChooseEmail)
		accounts.GET("/login/subdomain/:token", hoff.Consume)
		accounts.GET("/register", reg.Form)
		accounts.POST("/register", reg.Submit)
	}
	r.GET("/complete/:provider", oauth.Callback)
	r.GET("/api/v1/server_settings", settings.ServerSettings)

	return &testEnv{
		store:    s,
		users:    users,
		realms:   realms,
		registry: registry,
		bridge:   bridge,
		signer:   signer,
		router:   r,
	}
}

type testRequest struct {
	method  string
	host    string
	path    string
	form    url.Values
	header  http.Header
	cookies []*http.Cookie
}

func (e *testEnv) do(req testRequest) *httptest.ResponseRecorder {
	var body io.Reader
	if req.form != nil {
		body = strings.NewReader(req.form.Encode())
	}
	r := httptest.NewRequest(req.method, "http://"+req.host+req.path, body)
	if req.form != nil {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for key, values := range req.header {
		for _, v := range values {
			r.Header.Add(key, v)
		}
	}
	for _, c := range req.cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

func (e *testEnv) createRealm(t *testing.T, subdomain string, methods ...string) *models.Realm {
	t.Helper()
	if len(methods) == 0 {
		methods = core.AllBackends
	}
	realm := &models.Realm{
		Subdomain:        subdomain,
		Name:             subdomain,
		Active:           true,
		EmailRestriction: models.EmailRestrictionOpen,
	}
	realm.SetMethods(methods)
	require.NoError(t, e.store.CreateRealm(realm))
	return realm
}

func (e *testEnv) createUser(t *testing.T, realm *models.Realm, email, password string) *models.User {
	t.Helper()
	user := &models.User{
		ID:      uuid.New().String(),
		RealmID: realm.ID,
		Email:   email,
		Active:  true,
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		require.NoError(t, err)
		user.PasswordHash = string(hash)
	}
	require.NoError(t, e.store.CreateUser(user))
	user.Realm = *realm
	return user
}

const failedLoginLocation = "/accounts/login?error=invalid_login"
