package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/go-realmgate/realmgate/internal/core"
)

// Cache backend constants
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

type Config struct {
	// Server settings
	ServerAddr string
	// ExternalHost is the root domain ("example.com"); realm subdomains
	// hang off it. The provider-neutral OAuth callback endpoint lives on
	// the root domain itself.
	ExternalHost string
	Production   bool

	// Enabled authentication backends, server-wide. A realm can further
	// restrict but never widen this set.
	EnabledBackends []string

	// Handoff token settings
	HandoffSecret string
	HandoffTTL    time.Duration

	// Session settings
	SessionSecret string
	SessionMaxAge int

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string

	// Cache
	CacheBackend  string // "memory" or "redis"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SettingsCacheTTL time.Duration
	UserCacheTTL     time.Duration

	// Per-subdomain JWT signing keys for the signed-assertion backend,
	// parsed from "subdomain:key" comma pairs.
	JWTAuthKeys map[string]string

	// Trusted-header (remote user) settings
	SSOHeader       string
	SSOAppendDomain string

	// Directory (LDAP-style) settings. AppendDomain and EmailAttribute
	// are mutually exclusive bind modes.
	DirectoryServerURL        string
	DirectorySearchDN         string
	DirectorySearchPassword   string
	DirectoryUserDNTemplate   string
	DirectoryAppendDomain     string
	DirectoryEmailAttribute   string
	DirectoryAttributeMap     map[string]string
	DirectoryDeactivateAbsent bool
	DirectoryControlAttribute string

	// Avatar storage for directory-synced avatars
	AvatarDir     string
	AvatarBaseURL string

	// GitHub OAuth
	GitHubClientID     string
	GitHubClientSecret string
	GitHubOrg          string // optional membership gate
	GitHubTeam         string

	// Mobile client compatibility
	MinMobileVersion string

	// Metrics
	MetricsEnabled bool
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	return &Config{
		ServerAddr:   getEnv("SERVER_ADDR", ":8080"),
		ExternalHost: getEnv("EXTERNAL_HOST", "localhost"),
		Production:   getEnvBool("PRODUCTION", false),

		EnabledBackends: getEnvSlice("AUTH_ENABLED_BACKENDS", []string{core.BackendPassword}),

		HandoffSecret: getEnv("HANDOFF_SECRET", "handoff-secret-change-in-production"),
		HandoffTTL:    getEnvDuration("HANDOFF_TOKEN_TTL", 30*time.Second),

		SessionSecret: getEnv("SESSION_SECRET", "session-secret-change-in-production"),
		SessionMaxAge: getEnvInt("SESSION_MAX_AGE", 86400*14),

		DatabaseDriver: getEnv("DATABASE_DRIVER", "sqlite"),
		DatabaseDSN:    getEnv("DATABASE_DSN", "realmgate.db"),

		CacheBackend:     getEnv("CACHE_BACKEND", CacheBackendMemory),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		SettingsCacheTTL: getEnvDuration("SETTINGS_CACHE_TTL", 5*time.Minute),
		UserCacheTTL:     getEnvDuration("USER_CACHE_TTL", 15*time.Minute),

		JWTAuthKeys: parseKeyPairs(getEnv("JWT_AUTH_KEYS", "")),

		SSOHeader:       getEnv("SSO_HEADER", "X-Forwarded-User"),
		SSOAppendDomain: getEnv("SSO_APPEND_DOMAIN", ""),

		DirectoryServerURL:        getEnv("DIRECTORY_SERVER_URL", ""),
		DirectorySearchDN:         getEnv("DIRECTORY_SEARCH_DN", ""),
		DirectorySearchPassword:   getEnv("DIRECTORY_SEARCH_PASSWORD", ""),
		DirectoryUserDNTemplate:   getEnv("DIRECTORY_USER_DN_TEMPLATE", ""),
		DirectoryAppendDomain:     getEnv("DIRECTORY_APPEND_DOMAIN", ""),
		DirectoryEmailAttribute:   getEnv("DIRECTORY_EMAIL_ATTRIBUTE", ""),
		DirectoryAttributeMap:     parseAttributeMap(),
		DirectoryDeactivateAbsent: getEnvBool("DIRECTORY_DEACTIVATE_ABSENT", false),
		DirectoryControlAttribute: getEnv("DIRECTORY_CONTROL_ATTRIBUTE", ""),

		AvatarDir:     getEnv("AVATAR_DIR", "avatars"),
		AvatarBaseURL: getEnv("AVATAR_BASE_URL", "/avatars"),

		GitHubClientID:     getEnv("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret: getEnv("GITHUB_CLIENT_SECRET", ""),
		GitHubOrg:          getEnv("GITHUB_ORG", ""),
		GitHubTeam:         getEnv("GITHUB_TEAM", ""),

		MinMobileVersion: getEnv("MIN_MOBILE_VERSION", ""),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
	}
}

// Validate checks startup invariants. Violations are configuration errors:
// the process must not start.
func (c *Config) Validate() error {
	if len(c.EnabledBackends) == 0 {
		return fmt.Errorf("AUTH_ENABLED_BACKENDS must name at least one backend")
	}
	for _, b := range c.EnabledBackends {
		if !core.KnownBackend(b) {
			return fmt.Errorf("unknown authentication backend %q", b)
		}
	}
	if c.Production {
		if strings.Contains(c.HandoffSecret, "change-in-production") {
			return fmt.Errorf("HANDOFF_SECRET must be set in production")
		}
		if strings.Contains(c.SessionSecret, "change-in-production") {
			return fmt.Errorf("SESSION_SECRET must be set in production")
		}
		for _, b := range c.EnabledBackends {
			if b == core.BackendDev {
				return fmt.Errorf("dev backend cannot be enabled in production")
			}
		}
	}
	if c.DirectoryAppendDomain != "" && c.DirectoryEmailAttribute != "" {
		return fmt.Errorf(
			"DIRECTORY_APPEND_DOMAIN and DIRECTORY_EMAIL_ATTRIBUTE are mutually exclusive")
	}
	if backendEnabled(c.EnabledBackends, core.BackendDirectory) {
		if c.DirectoryServerURL == "" {
			return fmt.Errorf("directory backend enabled but DIRECTORY_SERVER_URL is empty")
		}
		if c.DirectoryUserDNTemplate == "" {
			return fmt.Errorf("directory backend enabled but DIRECTORY_USER_DN_TEMPLATE is empty")
		}
	}
	if backendEnabled(c.EnabledBackends, core.BackendGitHub) &&
		(c.GitHubClientID == "" || c.GitHubClientSecret == "") {
		return fmt.Errorf("github backend enabled but client credentials are missing")
	}
	if c.HandoffTTL <= 0 {
		return fmt.Errorf("HANDOFF_TOKEN_TTL must be positive")
	}
	return nil
}

func backendEnabled(list []string, name string) bool {
	for _, b := range list {
		if b == name {
			return true
		}
	}
	return false
}

// parseKeyPairs parses "subdomain:key" comma pairs into a registry map.
// Malformed entries are skipped; an empty map means the JWT backend is
// unconfigured.
func parseKeyPairs(raw string) map[string]string {
	keys := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		idx := strings.Index(pair, ":")
		if idx <= 0 || idx == len(pair)-1 {
			continue
		}
		keys[strings.ToLower(pair[:idx])] = pair[idx+1:]
	}
	return keys
}

// parseAttributeMap collects DIRECTORY_ATTR_<field>=<directory attribute>
// env entries into the declarative attribute map. Field names are
// lowercased; the custom_profile_field__<name> namespace passes through.
func parseAttributeMap() map[string]string {
	const prefix = "DIRECTORY_ATTR_"
	m := make(map[string]string)
	for _, entry := range os.Environ() {
		if !strings.HasPrefix(entry, prefix) {
			continue
		}
		kv := strings.SplitN(strings.TrimPrefix(entry, prefix), "=", 2)
		if len(kv) != 2 || kv[0] == "" || kv[1] == "" {
			continue
		}
		m[strings.ToLower(kv[0])] = kv[1]
	}
	return m
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var parts []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				parts = append(parts, part)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}
