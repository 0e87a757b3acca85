package handlers

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/go-realmgate/realmgate/internal/auth"
	"github.com/go-realmgate/realmgate/internal/core"
	"github.com/go-realmgate/realmgate/internal/middleware"
	"github.com/go-realmgate/realmgate/internal/services"
)

// LoginHandler serves the direct login endpoints: password, signed
// assertion, trusted header and the development backend.
type LoginHandler struct {
	registry  *auth.Registry
	users     *services.UserService
	ssoHeader string
}

func NewLoginHandler(
	registry *auth.Registry,
	users *services.UserService,
	ssoHeader string,
) *LoginHandler {
	return &LoginHandler{
		registry:  registry,
		users:     users,
		ssoHeader: ssoHeader,
	}
}

// LoginForm handles GET /accounts/login: the backends usable on this realm
// plus any error code carried over from a failed attempt.
func (h *LoginHandler) LoginForm(c *gin.Context) {
	realm := middleware.RealmFromContext(c)
	body := gin.H{"authentication_methods": h.registry.EnabledFor(realm)}
	if code := c.Query("error"); code != "" {
		body["error"] = code
	}
	c.JSON(http.StatusOK, body)
}

// PasswordLogin handles POST /accounts/login on a realm subdomain. The form
// credential goes to the password backend first; when the realm also enables
// the directory backend, an ordinary failure falls through to a directory
// bind with the same username and password.
func (h *LoginHandler) PasswordLogin(c *gin.Context) {
	realm := requireRealm(c, core.BackendPassword)
	if realm == nil {
		return
	}
	creds := auth.Credentials{
		Username: c.PostForm("username"),
		Password: c.PostForm("password"),
	}
	backend := core.BackendPassword
	result := h.registry.Authenticate(c.Request.Context(), backend, creds, realm)
	if !result.Ok() && result.Err == nil &&
		h.registry.Gate().BackendEnabled(core.BackendDirectory, realm) {
		backend = core.BackendDirectory
		result = h.registry.Authenticate(c.Request.Context(), backend, creds, realm)
	}
	handleResult(c, h.users, result, backend, c.PostForm("next"))
}

// JWTLogin handles POST /accounts/login/jwt.
func (h *LoginHandler) JWTLogin(c *gin.Context) {
	realm := requireRealm(c, core.BackendJWT)
	if realm == nil {
		return
	}
	creds := auth.Credentials{Token: c.PostForm("token")}
	result := h.registry.Authenticate(c.Request.Context(), core.BackendJWT, creds, realm)
	handleResult(c, h.users, result, core.BackendJWT, c.PostForm("next"))
}

// TrustedHeaderLogin handles GET /accounts/login/sso behind a reverse proxy
// that already authenticated the user.
func (h *LoginHandler) TrustedHeaderLogin(c *gin.Context) {
	realm := requireRealm(c, core.BackendTrustedHeader)
	if realm == nil {
		return
	}
	creds := auth.Credentials{RemoteUser: c.GetHeader(h.ssoHeader)}
	result := h.registry.Authenticate(
		c.Request.Context(), core.BackendTrustedHeader, creds, realm)

	if !result.Ok() && result.Err == nil {
		// Long-standing remote-user contract: no matching local account
		// answers 200 with an inline error body, not a redirect or an
		// error status. Clients depend on it.
		c.JSON(http.StatusOK, gin.H{
			"result": "error",
			"msg":    "No account found for the asserted identity.",
		})
		return
	}
	handleResult(c, h.users, result, core.BackendTrustedHeader, c.Query("next"))
}

// DevLogin handles GET /accounts/login/dev. The backend refuses to operate
// in production; this endpoint is additionally not routed there.
func (h *LoginHandler) DevLogin(c *gin.Context) {
	realm := requireRealm(c, core.BackendDev)
	if realm == nil {
		return
	}
	creds := auth.Credentials{Email: c.Query("email")}
	result := h.registry.Authenticate(c.Request.Context(), core.BackendDev, creds, realm)
	handleResult(c, h.users, result, core.BackendDev, c.Query("next"))
}

// Logout clears the session.
func (h *LoginHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	_ = session.Save()
	c.Redirect(http.StatusFound, "/accounts/login")
}
