package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-realmgate/realmgate/internal/cache"
	"github.com/go-realmgate/realmgate/internal/config"
	"github.com/go-realmgate/realmgate/internal/models"
	"github.com/go-realmgate/realmgate/internal/services"
)

const cacheInitTimeout = 10 * time.Second

// initializeCaches builds the user and server-settings caches. Redis is
// required for multi-instance deployments: settings invalidation after a
// realm policy change must be visible to every instance.
func (app *Application) initializeCaches() error {
	ctx, cancel := context.WithTimeout(context.Background(), cacheInitTimeout)
	defer cancel()

	switch app.Config.CacheBackend {
	case config.CacheBackendRedis:
		userCache, err := cache.NewRueidisCache[models.User](
			ctx,
			app.Config.RedisAddr, app.Config.RedisPassword, app.Config.RedisDB,
			"realmgate:users:",
		)
		if err != nil {
			return fmt.Errorf("failed to initialize redis user cache: %w", err)
		}
		settingsCache, err := cache.NewRueidisCache[services.ServerSettings](
			ctx,
			app.Config.RedisAddr, app.Config.RedisPassword, app.Config.RedisDB,
			"realmgate:settings:",
		)
		if err != nil {
			userCache.Close()
			return fmt.Errorf("failed to initialize redis settings cache: %w", err)
		}
		app.UserCache = userCache
		app.SettingsCache = settingsCache
		log.Printf("Cache: redis (addr=%s, db=%d)", app.Config.RedisAddr, app.Config.RedisDB)

	default: // memory
		app.UserCache = cache.NewMemoryCache[models.User]()
		app.SettingsCache = cache.NewMemoryCache[services.ServerSettings]()
		log.Println("Cache: memory (single instance only)")
	}
	return nil
}
