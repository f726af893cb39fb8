// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds all application configuration loaded from defaults, an
// optional YAML config file, and environment variables (highest priority).
//
// Configuration Categories:
//
//  1. Data Sources:
//     - Jellyfin: Optional static endpoint registered at startup. Further
//       endpoints can be registered at runtime through the API.
//
//  2. Infrastructure:
//     - Database: SQLite configuration (path, busy timeout)
//     - Sync: Periodic history synchronization settings
//     - Tracker: Live session polling settings
//     - Server: HTTP server configuration (port, host, timeout)
//
//  3. API & Security:
//     - Security: Authentication mode, tokens, rate limiting, CORS
//     - Cache: TTL for analytics response caching
//
//  4. Observability:
//     - Logging: Log levels and output formats
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
//	db, err := database.New(cfg.Database)
type Config struct {
	Jellyfin JellyfinConfig `koanf:"jellyfin"` // Optional: static Jellyfin endpoint
	Database DatabaseConfig `koanf:"database"`
	Sync     SyncConfig     `koanf:"sync"`
	Tracker  TrackerConfig  `koanf:"tracker"`
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Cache    CacheConfig    `koanf:"cache"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// JellyfinConfig holds the optional statically configured Jellyfin endpoint.
// When URL and APIKey are set, the endpoint is registered in the database at
// startup alongside any endpoints registered through the API.
type JellyfinConfig struct {
	Enabled bool   `koanf:"enabled"`  // Master toggle for the static endpoint
	URL     string `koanf:"url"`      // Jellyfin server URL (http://localhost:8096)
	APIKey  string `koanf:"api_key"`  // X-Emby-Token for authentication
	UserID  string `koanf:"user_id"`  // Fallback account when user listing fails
	Name    string `koanf:"name"`     // Display name (defaults to host)
}

// DatabaseConfig holds SQLite connection settings.
type DatabaseConfig struct {
	Path        string        `koanf:"path"`         // SQLite database file path (":memory:" for tests)
	BusyTimeout time.Duration `koanf:"busy_timeout"` // SQLite busy_timeout pragma
}

// SyncConfig holds history synchronization settings.
type SyncConfig struct {
	Enabled       bool          `koanf:"enabled"`        // Enable the periodic sync loop
	Interval      time.Duration `koanf:"interval"`       // How often to sync each endpoint
	PageSize      int           `koanf:"page_size"`      // Items per history page fetch
	HTTPTimeout   time.Duration `koanf:"http_timeout"`   // Upstream request timeout
	RateLimit     float64       `koanf:"rate_limit"`     // Upstream requests per second (0 = unlimited)
	RateBurst     int           `koanf:"rate_burst"`     // Rate limiter burst size
	RetryAttempts int           `koanf:"retry_attempts"` // Transient request retries
	RetryDelay    time.Duration `koanf:"retry_delay"`    // Base delay between retries
}

// TrackerConfig holds live session polling settings.
type TrackerConfig struct {
	Enabled  bool          `koanf:"enabled"`  // Enable session polling
	Interval time.Duration `koanf:"interval"` // Polling interval
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // "development" or "production"
}

// SecurityConfig holds authentication and API protection settings.
type SecurityConfig struct {
	AuthMode          string        `koanf:"auth_mode"`           // "none" or "token"
	BootstrapToken    string        `koanf:"bootstrap_token"`     // Static token accepted alongside DB tokens
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`     // Requests allowed per window
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`   // Rate limit window
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"` // Disable rate limiting entirely
	CORSOrigins       []string      `koanf:"cors_origins"`        // Allowed CORS origins
}

// CacheConfig holds analytics response cache settings.
type CacheConfig struct {
	TTL time.Duration `koanf:"ttl"` // Time-to-live for cached analytics responses
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // trace, debug, info, warn, error
	Format string `koanf:"format"` // "json" or "console"
	Caller bool   `koanf:"caller"` // Include caller file:line
}

// Validate checks the configuration for invalid or inconsistent values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path must not be empty")
	}

	switch c.Security.AuthMode {
	case "none", "token":
	default:
		return fmt.Errorf("auth_mode must be 'none' or 'token', got %q", c.Security.AuthMode)
	}

	if c.Security.AuthMode == "token" && c.Security.BootstrapToken == "" {
		// Tokens created through the API still work; a bootstrap token is
		// required so the first token can be created at all.
		return fmt.Errorf("auth_mode 'token' requires security.bootstrap_token to be set")
	}

	if c.Jellyfin.Enabled {
		if c.Jellyfin.URL == "" {
			return fmt.Errorf("jellyfin.url is required when jellyfin.enabled is true")
		}
		if _, err := url.ParseRequestURI(c.Jellyfin.URL); err != nil {
			return fmt.Errorf("jellyfin.url is not a valid URL: %w", err)
		}
		if c.Jellyfin.APIKey == "" {
			return fmt.Errorf("jellyfin.api_key is required when jellyfin.enabled is true")
		}
	}

	if c.Sync.PageSize < 1 || c.Sync.PageSize > 5000 {
		return fmt.Errorf("sync.page_size must be between 1 and 5000, got %d", c.Sync.PageSize)
	}

	if c.Sync.Interval < time.Minute {
		return fmt.Errorf("sync.interval must be at least 1 minute, got %s", c.Sync.Interval)
	}

	if c.Tracker.Enabled && c.Tracker.Interval < time.Second {
		return fmt.Errorf("tracker.interval must be at least 1 second, got %s", c.Tracker.Interval)
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	return nil
}

// ListenAddr returns the host:port string for the HTTP server.
func (c *ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsProduction reports whether the server runs in production mode.
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}
