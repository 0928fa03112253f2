// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nurole/shorttoken/internal/token"
)

// Storage backends.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Storage   StorageConfig
	Server    ServerConfig
	RateLimit RateLimitConfig
	Links     TokenConfig
	Invites   TokenConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StorageConfig selects and locates the record store.
type StorageConfig struct {
	Backend  string // badger, sqlite or memory (default: badger)
	DataPath string // Directory holding the database files
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port           string        // Server port (default: 8080)
	PublicURL      string        // Base URL used to build short links
	AllowedOrigins []string      // CORS origins, empty disables CORS
	TrustProxy     bool          // Take client IPs from X-Forwarded-For / X-Real-IP (default: false)
	ReadTimeout    time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout   time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout    time.Duration // HTTP idle timeout (default: 60s)
}

// RateLimitConfig throttles public token lookups per client IP.
type RateLimitConfig struct {
	LookupRPS   float64
	LookupBurst int
}

// TokenConfig is the token policy of one record type.
type TokenConfig struct {
	Length     int
	Charset    string
	MaxRetries int
}

// Policy builds the token policy for field.
func (t TokenConfig) Policy(field string) (token.Policy, error) {
	charset, err := token.ParseCharset(t.Charset)
	if err != nil {
		return token.Policy{}, err
	}
	return token.NewPolicy(
		token.WithField(field),
		token.WithLength(t.Length),
		token.WithCharset(charset),
		token.WithMaxRetries(t.MaxRetries),
	)
}

// LoadConfig loads configuration from the process arguments and environment.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("shorttokend", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")

	// Storage flags
	backend := fs.String("storage", "", "Storage backend (badger, sqlite, memory)")
	dataPath := fs.String("data-path", "", "Directory for database files")

	// Server flags
	serverPort := fs.String("port", "", "Server port (default: 8080)")
	publicURL := fs.String("public-url", "", "Base URL for short links")
	origins := fs.String("allowed-origins", "", "Comma-separated CORS origins")
	trustProxy := fs.String("trust-proxy", "", "Trust client IP headers set by a reverse proxy (default: false)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	// Lookup throttling
	lookupRPS := fs.String("lookup-rps", "", "Token lookups per second per client (default: 5)")
	lookupBurst := fs.String("lookup-burst", "", "Token lookup burst per client (default: 20)")

	// Token policies
	linkLength := fs.String("link-token-length", "", "Link token length (default: 4)")
	linkCharset := fs.String("link-token-charset", "", "Link token charset (default: alphanumeric)")
	linkRetries := fs.String("link-token-retries", "", "Link token collision retries (default: 3)")
	inviteLength := fs.String("invite-code-length", "", "Invite code length (default: 6)")
	inviteCharset := fs.String("invite-code-charset", "", "Invite code charset (default: fixed_numeric)")
	inviteRetries := fs.String("invite-code-retries", "", "Invite code collision retries (default: 5)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	var err error
	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			Backend:  strings.ToLower(getConfigValue(*backend, "STORAGE_BACKEND", BackendBadger)),
			DataPath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			PublicURL:      getConfigValue(*publicURL, "PUBLIC_URL", ""),
			AllowedOrigins: splitList(getConfigValue(*origins, "ALLOWED_ORIGINS", "")),
		},
		Links: TokenConfig{
			Length:     getIntConfigValue(*linkLength, "LINK_TOKEN_LENGTH", token.DefaultLength),
			Charset:    getConfigValue(*linkCharset, "LINK_TOKEN_CHARSET", string(token.DefaultCharset)),
			MaxRetries: getIntConfigValue(*linkRetries, "LINK_TOKEN_RETRIES", token.DefaultMaxRetries),
		},
		Invites: TokenConfig{
			Length:     getIntConfigValue(*inviteLength, "INVITE_CODE_LENGTH", 6),
			Charset:    getConfigValue(*inviteCharset, "INVITE_CODE_CHARSET", string(token.FixedNumeric)),
			MaxRetries: getIntConfigValue(*inviteRetries, "INVITE_CODE_RETRIES", 5),
		},
	}

	cfg.RateLimit.LookupRPS, err = getFloatConfigValue(*lookupRPS, "LOOKUP_RPS", 5)
	if err != nil {
		return nil, err
	}
	cfg.RateLimit.LookupBurst = getIntConfigValue(*lookupBurst, "LOOKUP_BURST", 20)

	cfg.Server.TrustProxy, err = getBoolConfigValue(*trustProxy, "TRUST_PROXY", false)
	if err != nil {
		return nil, err
	}

	// Parse server timeouts.
	if cfg.Server.ReadTimeout, err = getDurationConfigValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, fmt.Errorf("invalid read timeout: %w", err)
	}
	if cfg.Server.WriteTimeout, err = getDurationConfigValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"); err != nil {
		return nil, fmt.Errorf("invalid write timeout: %w", err)
	}
	if cfg.Server.IdleTimeout, err = getDurationConfigValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, fmt.Errorf("invalid idle timeout: %w", err)
	}

	if cfg.Server.PublicURL == "" {
		cfg.Server.PublicURL = "http://localhost:" + cfg.Server.Port
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
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

	switch c.Storage.Backend {
	case BackendBadger, BackendSQLite:
		if c.Storage.DataPath == "" {
			return fmt.Errorf("data path is required for the %s backend", c.Storage.Backend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("invalid storage backend: %s (must be badger, sqlite, or memory)", c.Storage.Backend)
	}

	if c.RateLimit.LookupRPS <= 0 {
		return errors.New("lookup rps must be positive")
	}
	if c.RateLimit.LookupBurst < 1 {
		return errors.New("lookup burst must be at least 1")
	}

	if _, err := c.Links.Policy("token"); err != nil {
		return fmt.Errorf("invalid link token policy: %w", err)
	}
	if _, err := c.Invites.Policy("code"); err != nil {
		return fmt.Errorf("invalid invite code policy: %w", err)
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
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

// expandDataPath expands ~ and makes the path absolute.
// The memory backend keeps an empty path.
func (c *Config) expandDataPath() error {
	if c.Storage.Backend == BackendMemory {
		return nil
	}

	defaultPath := ""
	if homeDir, err := os.UserHomeDir(); err == nil {
		defaultPath = filepath.Join(homeDir, ".shorttoken", "data")
	}

	expanded, err := expandPath(c.Storage.DataPath, defaultPath)
	if err != nil {
		return err
	}
	c.Storage.DataPath = expanded
	return nil
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

// getIntConfigValue returns an int from flag, env var, or default.
// Unparseable values fall back to the default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strings.TrimSpace(strValue))
	if err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) (float64, error) {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseFloat(strings.TrimSpace(strValue), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return result, nil
}

// getBoolConfigValue returns a bool from flag, env var, or default.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) (bool, error) {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseBool(strings.TrimSpace(strValue))
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return result, nil
}

// getDurationConfigValue parses a duration from flag, env var, or default.
func getDurationConfigValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", envKey, strValue, err)
	}
	return d, nil
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
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

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
