package config

import (
	"fmt"
	"os"
	"strings"
)

// Config holds the application configuration
type Config struct {
	// Database connection string (DSN). When set, grants live in the
	// database; when empty, grants live in RolesFile.
	DatabaseURL string

	// RolesFile is the JSON snapshot path for the file-backed grant store.
	RolesFile string

	// OverridesFile is the JSON path for per-user overrides.
	OverridesFile string

	// Server bind address (host:port)
	ServerAddr string

	// Maximum database connection pool size
	MaxDBConnections int

	// Enable debug logging
	Debug bool

	// Seed and pattern lists. Entries containing '*' in Admins/Users are
	// treated as patterns, not literal accounts.
	Admins        []string
	AdminPatterns []string
	Users         []string
	UserPatterns  []string

	// AutoAssignUser grants the plain-user role to identities that resolve
	// to no role at all.
	AutoAssignUser bool

	// AuditEnabled switches the audit recorder between real and no-op.
	AuditEnabled bool

	// ImplicitAdminEnabled turns on admin elevation by well-known group or
	// name pattern.
	ImplicitAdminEnabled bool

	// EnforceDirectoryUserExists rejects grants for accounts the directory
	// does not know. Requires DirectoryURL.
	EnforceDirectoryUserExists bool

	// DirectoryURL is the base URL of the account directory service.
	DirectoryURL string

	// PurgeRetentionDays is the default retention window for purging
	// soft-deleted grants.
	PurgeRetentionDays int

	// JWT bearer authentication configuration
	JWT JWTConfig
}

// JWTConfig holds bearer-token validation settings. An empty Secret disables
// authentication entirely; every request is then anonymous, which is only
// useful for local development.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string

	// Claim extraction configuration
	GroupsClaimField string // Default: "groups"
	GroupsClaimPath  string // Optional: for nested extraction (e.g., "id" for [{id:"S-1-5-..."}])
}

// Enabled reports whether bearer authentication is configured.
func (c *JWTConfig) Enabled() bool {
	return c.Secret != ""
}

// UsesDatabase reports whether the grant store is database-backed.
func (c *Config) UsesDatabase() bool {
	return c.DatabaseURL != ""
}

// Load reads configuration from environment variables with fallback defaults
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:                getEnv("ROLEGATE_DATABASE_URL", ""),
		RolesFile:                  getEnv("ROLEGATE_ROLES_FILE", "roles.json"),
		OverridesFile:              getEnv("ROLEGATE_OVERRIDES_FILE", "overrides.json"),
		ServerAddr:                 getEnv("ROLEGATE_SERVER_ADDR", "localhost:8080"),
		MaxDBConnections:           getEnvInt("ROLEGATE_MAX_DB_CONNECTIONS", 25),
		Debug:                      getEnvBool("ROLEGATE_DEBUG", false),
		Admins:                     getEnvList("ROLEGATE_ADMINS"),
		AdminPatterns:              getEnvList("ROLEGATE_ADMIN_PATTERNS"),
		Users:                      getEnvList("ROLEGATE_USERS"),
		UserPatterns:               getEnvList("ROLEGATE_USER_PATTERNS"),
		AutoAssignUser:             getEnvBool("ROLEGATE_AUTO_ASSIGN_USER", true),
		AuditEnabled:               getEnvBool("ROLEGATE_AUDIT_ENABLED", true),
		ImplicitAdminEnabled:       getEnvBool("ROLEGATE_IMPLICIT_ADMIN_ENABLED", true),
		EnforceDirectoryUserExists: getEnvBool("ROLEGATE_ENFORCE_DIRECTORY_USER_EXISTS", false),
		DirectoryURL:               getEnv("ROLEGATE_DIRECTORY_URL", ""),
		PurgeRetentionDays:         getEnvInt("ROLEGATE_PURGE_RETENTION_DAYS", 30),
		JWT: JWTConfig{
			Secret:           getEnv("ROLEGATE_JWT_SECRET", ""),
			Issuer:           getEnv("ROLEGATE_JWT_ISSUER", ""),
			Audience:         getEnv("ROLEGATE_JWT_AUDIENCE", ""),
			GroupsClaimField: getEnv("ROLEGATE_JWT_GROUPS_CLAIM", "groups"),
			GroupsClaimPath:  getEnv("ROLEGATE_JWT_GROUPS_PATH", ""),
		},
	}

	if !cfg.UsesDatabase() && cfg.RolesFile == "" {
		return nil, fmt.Errorf("either ROLEGATE_DATABASE_URL or ROLEGATE_ROLES_FILE is required")
	}
	if cfg.OverridesFile == "" {
		return nil, fmt.Errorf("ROLEGATE_OVERRIDES_FILE is required")
	}
	if cfg.EnforceDirectoryUserExists && cfg.DirectoryURL == "" {
		return nil, fmt.Errorf("ROLEGATE_DIRECTORY_URL is required when ROLEGATE_ENFORCE_DIRECTORY_USER_EXISTS is set")
	}
	if cfg.PurgeRetentionDays <= 0 {
		return nil, fmt.Errorf("ROLEGATE_PURGE_RETENTION_DAYS must be positive")
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getEnvList retrieves a comma-separated environment variable as a trimmed
// list, dropping empty entries.
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
