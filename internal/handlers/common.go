package handlers

import (
	"log"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/go-realmgate/realmgate/internal/auth"
	"github.com/go-realmgate/realmgate/internal/middleware"
	"github.com/go-realmgate/realmgate/internal/models"
	"github.com/go-realmgate/realmgate/internal/services"
	"github.com/go-realmgate/realmgate/internal/util"
)

// Session keys.
const (
	SessionUserID  = "user_id"
	SessionBackend = "backend"
)

// loginFailed renders the uniform failed-login outcome: a neutral redirect
// regardless of the internal reason. The reason is logged, never shown.
func loginFailed(c *gin.Context, backend, reason string) {
	log.Printf("[Auth] %s login failed from %s: %s",
		backend, middleware.ClientIPFromContext(c), reason)
	c.Redirect(http.StatusFound, "/accounts/login?error=invalid_login")
}

// configError renders the operator-facing configuration-error outcome,
// distinct from ordinary login failure: the fix is administrative.
func configError(c *gin.Context, backend string, err error) {
	log.Printf("[Auth] %s configuration error: %v", backend, err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "authentication is misconfigured, contact your administrator",
	})
}

// completeLogin establishes the session, fires the login notification and
// redirects to the validated next target.
func completeLogin(
	c *gin.Context,
	users *services.UserService,
	user *models.User,
	backend, next string,
) {
	session := sessions.Default(c)
	session.Set(SessionUserID, user.ID)
	session.Set(SessionBackend, backend)
	if err := session.Save(); err != nil {
		log.Printf("[Auth] Failed to save session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session error"})
		return
	}

	users.NotifyLogin(user, c.Request.UserAgent())
	c.Redirect(http.StatusFound, util.SafeNext(next, c.Request.Host))
}

// handleResult routes a gate result for a direct (non-federated) login.
func handleResult(
	c *gin.Context,
	users *services.UserService,
	result *auth.Result,
	backend, next string,
) {
	switch {
	case result.Ok():
		completeLogin(c, users, result.User, backend, next)
	case result.Err != nil:
		configError(c, backend, result.Err)
	default:
		loginFailed(c, backend, result.Reason)
	}
}

// sessionUser loads the currently logged-in user, if any.
func sessionUser(c *gin.Context, users *services.UserService) *models.User {
	session := sessions.Default(c)
	id, ok := session.Get(SessionUserID).(string)
	if !ok || id == "" {
		return nil
	}
	user, err := users.GetByID(c.Request.Context(), id)
	if err != nil {
		return nil
	}
	return user
}

// requireRealm fetches the request realm or renders the generic failure.
func requireRealm(c *gin.Context, backend string) *models.Realm {
	realm := middleware.RealmFromContext(c)
	if realm == nil {
		loginFailed(c, backend, "no realm for host "+c.Request.Host)
		return nil
	}
	return realm
}
