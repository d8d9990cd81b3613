package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config represents the complete application configuration.
type Config struct {
	Version  string         `yaml:"version"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Frontier FrontierConfig `yaml:"frontier"`
	CAPI     CAPIConfig     `yaml:"capi"`
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Discord  DiscordConfig  `yaml:"discord"`
	Cleanup  CleanupConfig  `yaml:"cleanup"`
}

// ServerConfig contains server-related configuration.
type ServerConfig struct {
	Host            string          `yaml:"host"`
	Port            int             `yaml:"port"`
	BasePath        string          `yaml:"base_path"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig contains rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// FrontierConfig describes the Frontier authorization server.
type FrontierConfig struct {
	ClientID        string        `yaml:"client_id"`
	AuthURL         string        `yaml:"auth_url"`
	Audience        string        `yaml:"audience"`
	Scope           string        `yaml:"scope"`
	CallbackBaseURL string        `yaml:"callback_base_url"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	RefreshMargin   time.Duration `yaml:"refresh_margin"`
}

// CAPIConfig describes the companion API resource servers.
type CAPIConfig struct {
	LiveURL   string        `yaml:"live_url"`
	BetaURL   string        `yaml:"beta_url"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`

	// A server's circuit opens after BreakerThreshold consecutive failures.
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown"`
}

// DatabaseConfig contains relational store configuration.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig selects the cache backend.
type CacheConfig struct {
	Driver    string `yaml:"driver"` // "redis" or "memory"
	URL       string `yaml:"url"`
	KeyPrefix string `yaml:"key_prefix"`
}

// DiscordConfig contains interaction webhook settings.
type DiscordConfig struct {
	PublicKey       string        `yaml:"public_key"`
	ApplicationID   string        `yaml:"application_id"`
	FollowupTimeout time.Duration `yaml:"followup_timeout"`
}

// CleanupConfig controls periodic session pruning.
type CleanupConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// Defaults returns a configuration with every default applied.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			BasePath:        "/edfc",
			ShutdownTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 600,
				Burst:             60,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Frontier: FrontierConfig{
			AuthURL:         "https://auth.frontierstore.net",
			Audience:        "frontier,steam,epic",
			Scope:           "auth capi",
			CallbackBaseURL: "https://pokedi.xyz/edfc",
			SessionTTL:      10 * time.Minute,
			RequestTimeout:  15 * time.Second,
			RefreshMargin:   5 * time.Minute,
		},
		CAPI: CAPIConfig{
			LiveURL:   "https://companion.orerve.net",
			BetaURL:   "https://pts-companion.orerve.net",
			Timeout:   30 * time.Second,
			UserAgent: "EDFC/1.0",
			CacheTTL:  15 * time.Minute,

			BreakerThreshold: 5,
			BreakerCooldown:  30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
		Cache: CacheConfig{
			Driver: "redis",
			URL:    "redis://localhost:6379",
		},
		Discord: DiscordConfig{
			FollowupTimeout: 60 * time.Second,
		},
		Cleanup: CleanupConfig{
			Enabled:  true,
			Interval: 5 * time.Minute,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := c.Frontier.Validate(); err != nil {
		return fmt.Errorf("frontier: %w", err)
	}
	if err := c.CAPI.Validate(); err != nil {
		return fmt.Errorf("capi: %w", err)
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.Discord.Validate(); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	if err := c.Cleanup.Validate(); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}

	return nil
}

// Validate validates server configuration.
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid port: %d", s.Port)
	}
	if s.BasePath == "" {
		s.BasePath = "/edfc"
	}
	if !strings.HasPrefix(s.BasePath, "/") {
		s.BasePath = "/" + s.BasePath
	}
	s.BasePath = strings.TrimSuffix(s.BasePath, "/")
	if s.ShutdownTimeout <= 0 {
		s.ShutdownTimeout = 30 * time.Second
	}
	if s.RateLimit.RequestsPerMinute < 0 || s.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit values must be non-negative")
	}
	return nil
}

// Addr returns host:port for the HTTP listener.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate validates log configuration.
func (l *LogConfig) Validate() error {
	switch l.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("unsupported format: %s", l.Format)
	}
	return nil
}

// Validate validates Frontier configuration.
func (f *FrontierConfig) Validate() error {
	if f.AuthURL == "" {
		return fmt.Errorf("auth_url is required")
	}
	if _, err := url.Parse(f.AuthURL); err != nil {
		return fmt.Errorf("invalid auth_url: %w", err)
	}
	if f.CallbackBaseURL == "" {
		return fmt.Errorf("callback_base_url is required")
	}
	f.CallbackBaseURL = strings.TrimSuffix(f.CallbackBaseURL, "/")
	if f.SessionTTL < 0 {
		return fmt.Errorf("session_ttl must be non-negative")
	}
	if f.RequestTimeout <= 0 {
		f.RequestTimeout = 15 * time.Second
	}
	if f.RefreshMargin < 0 {
		return fmt.Errorf("refresh_margin must be non-negative")
	}
	return nil
}

// Validate validates CAPI configuration.
func (c *CAPIConfig) Validate() error {
	if c.LiveURL == "" || c.BetaURL == "" {
		return fmt.Errorf("live_url and beta_url are required")
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 15 * time.Minute
	}
	if c.UserAgent == "" {
		c.UserAgent = "EDFC/1.0"
	}
	if c.BreakerThreshold < 0 || c.BreakerCooldown < 0 {
		return fmt.Errorf("breaker_threshold and breaker_cooldown must be non-negative")
	}
	return nil
}

// Validate validates database configuration. A missing URL is fatal.
func (d *DatabaseConfig) Validate() error {
	if d.URL == "" {
		return fmt.Errorf("url is required (set DATABASE_URL)")
	}
	if d.MaxOpenConns <= 0 {
		d.MaxOpenConns = 10
	}
	if d.MaxIdleConns < 0 || d.MaxIdleConns > d.MaxOpenConns {
		d.MaxIdleConns = d.MaxOpenConns
	}
	return nil
}

// Validate validates cache configuration.
func (c *CacheConfig) Validate() error {
	switch c.Driver {
	case "":
		c.Driver = "redis"
	case "redis", "memory":
	default:
		return fmt.Errorf("unsupported driver: %s", c.Driver)
	}
	if c.Driver == "redis" && c.URL == "" {
		c.URL = "redis://localhost:6379"
	}
	return nil
}

// Validate validates discord configuration.
func (d *DiscordConfig) Validate() error {
	if d.FollowupTimeout <= 0 {
		d.FollowupTimeout = 60 * time.Second
	}
	return nil
}

// Validate validates cleanup configuration and applies defaults.
func (c *CleanupConfig) Validate() error {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	return nil
}
