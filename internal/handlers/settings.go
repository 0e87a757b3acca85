package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/go-realmgate/realmgate/internal/middleware"
	"github.com/go-realmgate/realmgate/internal/services"
)

// timeNow is swapped by tests.
var timeNow = time.Now

// SettingsHandler serves the machine-readable server-settings query clients
// use to decide which login options to offer.
type SettingsHandler struct {
	realms *services.RealmService
}

func NewSettingsHandler(realms *services.RealmService) *SettingsHandler {
	return &SettingsHandler{realms: realms}
}

// ServerSettings handles GET /api/v1/server_settings.
func (h *SettingsHandler) ServerSettings(c *gin.Context) {
	settings, err := h.realms.Settings(
		c.Request.Context(),
		middleware.SubdomainFromContext(c),
		c.Request.UserAgent(),
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, settings)
}
