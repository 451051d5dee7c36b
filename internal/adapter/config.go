package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Messages MessagesConfig `mapstructure:"messages"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds backend configuration
type ServerConfig struct {
	URL     string        `mapstructure:"url"`     // Backend base URL
	Timeout time.Duration `mapstructure:"timeout"` // Per-request HTTP timeout
}

// CatalogConfig holds paging configuration
type CatalogConfig struct {
	PageSize        int `mapstructure:"page_size"`        // Items per full page
	ScarceThreshold int `mapstructure:"scarce_threshold"` // Keep paging while filtered results are below this
}

// MessagesConfig holds notification configuration
type MessagesConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// GatewayConfig holds request gateway tuning
type GatewayConfig struct {
	RequestsPerSecond float64       `mapstructure:"requests_per_second"` // 0 disables the limiter
	Burst             int           `mapstructure:"burst"`
	BreakerFailures   uint32        `mapstructure:"breaker_failures"` // Consecutive transport failures before opening
	BreakerTimeout    time.Duration `mapstructure:"breaker_timeout"`
}

// CacheConfig holds persistent store configuration
type CacheConfig struct {
	Dir string `mapstructure:"dir"` // Empty keeps everything in memory
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL:     "",
			Timeout: 30 * time.Second,
		},
		Catalog: CatalogConfig{
			PageSize:        20,
			ScarceThreshold: 10,
		},
		Messages: MessagesConfig{
			TTL: 4 * time.Second,
		},
		Gateway: GatewayConfig{
			RequestsPerSecond: 0,
			Burst:             5,
			BreakerFailures:   5,
			BreakerTimeout:    30 * time.Second,
		},
		Cache: CacheConfig{
			Dir: defaultCachePath(),
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "cinesync", "cinesync.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "cinesync", "cinesync.log")
	}
}

// defaultConfigPath returns the default config file path for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "cinesync")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "cinesync")
	}
}

// defaultCachePath returns the default cache directory path for the current OS
func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "cinesync", "cache")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "cinesync", "cache")
	}
}

// LoadConfig loads configuration from the default locations and environment
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(viper.New(), defaultConfigPath(), ".")
}

// LoadConfigFrom loads configuration using v, searching the given directories.
func LoadConfigFrom(v *viper.Viper, paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// Environment variable overrides
	v.SetEnvPrefix("CINESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"server.url", "server.timeout", "cache.dir", "logging.level", "logging.file"} {
		_ = v.BindEnv(key)
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the default config file
func SaveConfig(cfg *Config) error {
	return SaveConfigTo(viper.New(), cfg, defaultConfigPath())
}

// SaveConfigTo writes cfg as config.yaml inside dir.
func SaveConfigTo(v *viper.Viper, cfg *Config, dir string) error {
	// Ensure config directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set fields individually to ensure correct key names (snake_case)
	v.Set("server.url", cfg.Server.URL)
	v.Set("server.timeout", cfg.Server.Timeout.String())

	v.Set("catalog.page_size", cfg.Catalog.PageSize)
	v.Set("catalog.scarce_threshold", cfg.Catalog.ScarceThreshold)

	v.Set("messages.ttl", cfg.Messages.TTL.String())

	v.Set("gateway.requests_per_second", cfg.Gateway.RequestsPerSecond)
	v.Set("gateway.burst", cfg.Gateway.Burst)
	v.Set("gateway.breaker_failures", cfg.Gateway.BreakerFailures)
	v.Set("gateway.breaker_timeout", cfg.Gateway.BreakerTimeout.String())

	v.Set("cache.dir", cfg.Cache.Dir)

	v.Set("logging.file", cfg.Logging.File)
	v.Set("logging.level", cfg.Logging.Level)

	configFile := filepath.Join(dir, "config.yaml")
	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// IsConfigured returns true if the backend URL is set
func (c *Config) IsConfigured() bool {
	return c.Server.URL != ""
}

// ClearCache removes all cached data, including the persisted token
func ClearCache(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}
