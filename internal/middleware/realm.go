package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/go-realmgate/realmgate/internal/models"
	"github.com/go-realmgate/realmgate/internal/services"
	"github.com/go-realmgate/realmgate/internal/util"
)

const (
	ctxRealm     = "realm"
	ctxSubdomain = "subdomain"
	ctxClientIP  = "client_ip"
)

// RealmMiddleware derives the realm from the request's Host subdomain and
// stores it in the context. Requests on the root domain carry a nil realm;
// handlers that need one reject those themselves.
func RealmMiddleware(realms *services.RealmService, externalHost string) gin.HandlerFunc {
	return func(c *gin.Context) {
		subdomain := util.SubdomainFromHost(c.Request.Host, externalHost)
		c.Set(ctxSubdomain, subdomain)
		if subdomain != "" {
			if realm, err := realms.GetBySubdomain(c.Request.Context(), subdomain); err == nil {
				c.Set(ctxRealm, realm)
			}
		}
		c.Next()
	}
}

// RealmFromContext returns the realm resolved for this request, or nil.
func RealmFromContext(c *gin.Context) *models.Realm {
	if v, ok := c.Get(ctxRealm); ok {
		if realm, ok := v.(*models.Realm); ok {
			return realm
		}
	}
	return nil
}

// SubdomainFromContext returns the request's subdomain ("" on the root
// domain).
func SubdomainFromContext(c *gin.Context) string {
	if v, ok := c.Get(ctxSubdomain); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// IPMiddleware extracts client IP and stores it in the context
func IPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Gin's ClientIP() handles X-Forwarded-For and other headers
		c.Set(ctxClientIP, c.ClientIP())
		c.Next()
	}
}

// ClientIPFromContext returns the IP recorded by IPMiddleware, falling back
// to direct resolution when the middleware is not installed.
func ClientIPFromContext(c *gin.Context) string {
	if v, ok := c.Get(ctxClientIP); ok {
		if ip, ok := v.(string); ok {
			return ip
		}
	}
	return c.ClientIP()
}
