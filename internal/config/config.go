// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
	DriverNone     = "none"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Server    ServerConfig
	Store     StoreConfig
	Search    SearchConfig
	Workspace WorkspaceConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
	DataPath    string // Base directory for embedded stores and the search index
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
	RateLimit      int // Mutating requests per minute per client IP, 0 disables
}

// StoreConfig selects and configures the remote store gateway.
type StoreConfig struct {
	Driver      string
	SQLitePath  string
	PostgresURL string
	BadgerPath  string
	CallTimeout time.Duration
}

// SearchConfig holds full-text index configuration.
type SearchConfig struct {
	IndexPath string // Empty keeps the index in memory
}

// WorkspaceConfig holds workspace bootstrap configuration.
type WorkspaceConfig struct {
	DefaultSlug  string
	SeedDemoData bool
}

// LoadConfig loads configuration from the process arguments.
// See Load for precedence.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load builds configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("workspace-server", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base path for embedded stores and the search index")

	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	allowedOrigins := fs.String("allowed-origins", "", "Comma separated CORS origins (default: *)")
	rateLimit := fs.String("rate-limit", "", "Mutating requests per minute per IP (default: 120)")

	driver := fs.String("store", "", "Store driver (sqlite, postgres, badger, none)")
	sqlitePath := fs.String("sqlite-path", "", "SQLite database file")
	postgresURL := fs.String("postgres-url", "", "Postgres connection URL")
	badgerPath := fs.String("badger-path", "", "Badger data directory")
	callTimeout := fs.String("store-timeout", "", "Per-call store timeout (default: 5s)")

	indexPath := fs.String("index-path", "", "Search index directory (empty: in-memory)")
	workspaceSlug := fs.String("workspace", "", "Default workspace slug (default: rebase-energy)")
	seedDemo := fs.String("seed-demo", "", "Seed demo entities into bootstrap collections (default: true)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
			DataPath:    getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			AllowedOrigins: splitList(getConfigValue(*allowedOrigins, "ALLOWED_ORIGINS", "*")),
			RateLimit:      getIntConfigValue(*rateLimit, "RATE_LIMIT", 120),
		},
		Store: StoreConfig{
			Driver:      getConfigValue(*driver, "STORE_DRIVER", ""),
			SQLitePath:  getConfigValue(*sqlitePath, "SQLITE_PATH", ""),
			PostgresURL: getConfigValue(*postgresURL, "DATABASE_URL", os.Getenv("SUPABASE_DB_URL")),
			BadgerPath:  getConfigValue(*badgerPath, "BADGER_PATH", ""),
		},
		Search: SearchConfig{
			IndexPath: getConfigValue(*indexPath, "SEARCH_INDEX_PATH", ""),
		},
		Workspace: WorkspaceConfig{
			DefaultSlug:  getConfigValue(*workspaceSlug, "WORKSPACE_SLUG", "rebase-energy"),
			SeedDemoData: getBoolConfigValue(*seedDemo, "SEED_DEMO_DATA", true),
		},
	}

	durations := []struct {
		flagValue, envKey, def string
		dst                    *time.Duration
	}{
		{*readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{*callTimeout, "STORE_CALL_TIMEOUT", "5s", &cfg.Store.CallTimeout},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagValue, d.envKey, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", strings.ToLower(d.envKey), raw, err)
		}
		*d.dst = parsed
	}

	cfg.Store.Driver = resolveDriver(cfg.Store)

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// resolveDriver picks a driver when none was given explicitly.
// A configured Postgres URL (including the hosted SUPABASE_DB_URL) selects
// postgres, otherwise the embedded sqlite store is used.
func resolveDriver(sc StoreConfig) string {
	if sc.Driver != "" {
		return strings.ToLower(sc.Driver)
	}
	if sc.PostgresURL != "" {
		return DriverPostgres
	}
	return DriverSQLite
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("sqlite path cannot be empty")
		}
	case DriverPostgres:
		if c.Store.PostgresURL == "" {
			return errors.New("postgres driver requires DATABASE_URL")
		}
	case DriverBadger:
		if c.Store.BadgerPath == "" {
			return errors.New("badger path cannot be empty")
		}
	case DriverNone:
	default:
		return fmt.Errorf("invalid store driver: %s (must be sqlite, postgres, badger, or none)", c.Store.Driver)
	}

	if c.Store.CallTimeout <= 0 {
		return fmt.Errorf("store call timeout must be positive, got %s", c.Store.CallTimeout)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("rate limit cannot be negative, got %d", c.Server.RateLimit)
	}
	if strings.TrimSpace(c.Workspace.DefaultSlug) == "" {
		return errors.New("workspace slug cannot be empty")
	}

	return nil
}

// expandPaths resolves the data directory and derives per-store paths from it.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	base, err := expandPath(c.App.DataPath, filepath.Join(homeDir, ".rebase", "workspace"))
	if err != nil {
		return fmt.Errorf("invalid data path: %w", err)
	}
	c.App.DataPath = base

	if c.Store.SQLitePath, err = expandPath(c.Store.SQLitePath, filepath.Join(base, "workspace.db")); err != nil {
		return fmt.Errorf("invalid sqlite path: %w", err)
	}
	if c.Store.BadgerPath, err = expandPath(c.Store.BadgerPath, filepath.Join(base, "badger")); err != nil {
		return fmt.Errorf("invalid badger path: %w", err)
	}
	if c.Search.IndexPath != "" {
		if c.Search.IndexPath, err = expandPath(c.Search.IndexPath, ""); err != nil {
			return fmt.Errorf("invalid index path: %w", err)
		}
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Real environment variables take precedence over the .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
