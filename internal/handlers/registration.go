package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/go-realmgate/realmgate/internal/services"
	"github.com/go-realmgate/realmgate/internal/store"
)

// RegistrationHandler serves the confirmation-gated registration form.
type RegistrationHandler struct {
	store  *store.Store
	bridge *services.RegistrationBridge
	users  *services.UserService
}

func NewRegistrationHandler(
	s *store.Store,
	bridge *services.RegistrationBridge,
	users *services.UserService,
) *RegistrationHandler {
	return &RegistrationHandler{store: s, bridge: bridge, users: users}
}

// Form handles GET /accounts/register. With a key it describes the pending
// confirmation (verified email is immutable; federated signups carry no
// password field); without one it is the generic signup page, which grants
// nothing.
func (h *RegistrationHandler) Form(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusOK, gin.H{
			"result": "signup",
			"msg":    "Ask your organization administrator for an invitation.",
		})
		return
	}

	confirmation, err := h.store.GetConfirmation(key)
	if err != nil || !confirmation.Usable(timeNow()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "confirmation is invalid, used or expired"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"email":             confirmation.Email,
		"full_name":         confirmation.FullName,
		"password_required": confirmation.PasswordRequired(),
	})
}

// Submit handles POST /accounts/register, consuming the confirmation
// exactly once and creating the user.
func (h *RegistrationHandler) Submit(c *gin.Context) {
	key := c.PostForm("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing confirmation key"})
		return
	}

	user, err := h.bridge.Complete(
		c.Request.Context(), h.users,
		key, c.PostForm("full_name"), c.PostForm("password"),
	)
	if err != nil {
		if errors.Is(err, services.ErrConfirmationInvalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "confirmation is invalid, used or expired"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	completeLogin(c, h.users, user, user.AuthSource, "/")
}
