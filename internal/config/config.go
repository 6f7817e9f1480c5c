package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MUSKOKA_API_ENDPOINT
const EnvPrefix = "MUSKOKA"

// Config holds all configuration for the muskoka client and dashboard
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// APIConfig points at the remote listing/task API
type APIConfig struct {
	Endpoint string `mapstructure:"endpoint"`

	// Per request timeout
	Timeout time.Duration `mapstructure:"timeout"`

	// Retries for network errors and 5xx responses; 0 disables retrying
	MaxRetries int `mapstructure:"max_retries"`
}

// StorageConfig describes where task inputs are stored
type StorageConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	InputBucket string `mapstructure:"input_bucket"`
}

// CacheConfig holds Redis cache settings
type CacheConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`

	TaskTTL    time.Duration `mapstructure:"task_ttl"`
	ListingTTL time.Duration `mapstructure:"listing_ttl"`
}

// DashboardConfig holds dashboard settings
type DashboardConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	PageSize   int    `mapstructure:"page_size"` // tasks shown per listing page
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		API: APIConfig{
			Endpoint:   "http://localhost:8080",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		Storage: StorageConfig{
			BaseURL:     "https://storage.googleapis.com",
			InputBucket: "muskoka-transitions",
		},
		Cache: CacheConfig{
			Enabled:    false,
			Host:       getEnv("REDIS_HOST", "localhost"),
			Port:       6379,
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         0,
			PoolSize:   10,
			TaskTTL:    30 * time.Second,
			ListingTTL: 10 * time.Second,
		},
		Dashboard: DashboardConfig{
			ListenAddr: ":8000",
			PageSize:   20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration on top of the defaults: first the optional YAML
// file at path, then a .env file in the working directory, then MUSKOKA_*
// environment variables. Existing environment variables win over .env.
func Load(path string) (*Config, error) {
	return load(path, ".env")
}

func load(path, envFile string) (*Config, error) {
	cfg := Default()

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
			}
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it on Unmarshal
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("api.endpoint", cfg.API.Endpoint)
	v.SetDefault("api.timeout", cfg.API.Timeout)
	v.SetDefault("api.max_retries", cfg.API.MaxRetries)

	v.SetDefault("storage.base_url", cfg.Storage.BaseURL)
	v.SetDefault("storage.input_bucket", cfg.Storage.InputBucket)

	v.SetDefault("cache.enabled", cfg.Cache.Enabled)
	v.SetDefault("cache.host", cfg.Cache.Host)
	v.SetDefault("cache.port", cfg.Cache.Port)
	v.SetDefault("cache.password", cfg.Cache.Password)
	v.SetDefault("cache.db", cfg.Cache.DB)
	v.SetDefault("cache.pool_size", cfg.Cache.PoolSize)
	v.SetDefault("cache.task_ttl", cfg.Cache.TaskTTL)
	v.SetDefault("cache.listing_ttl", cfg.Cache.ListingTTL)

	v.SetDefault("dashboard.listen_addr", cfg.Dashboard.ListenAddr)
	v.SetDefault("dashboard.page_size", cfg.Dashboard.PageSize)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}

// RedisAddr returns the full Redis address
func (c *CacheConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.API.Endpoint == "" {
		errs = append(errs, fmt.Errorf("api endpoint cannot be empty"))
	} else if u, err := url.Parse(c.API.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api endpoint must be an absolute URL, got %q", c.API.Endpoint))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("api timeout must be positive"))
	}
	if c.API.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("api max retries cannot be negative"))
	}
	if c.Storage.BaseURL == "" || c.Storage.InputBucket == "" {
		errs = append(errs, fmt.Errorf("storage base url and input bucket are required"))
	}
	if c.Cache.Enabled {
		if c.Cache.Host == "" {
			errs = append(errs, fmt.Errorf("cache host cannot be empty"))
		}
		if c.Cache.TaskTTL <= 0 || c.Cache.ListingTTL <= 0 {
			errs = append(errs, fmt.Errorf("cache ttls must be positive"))
		}
	}
	if c.Dashboard.ListenAddr == "" {
		errs = append(errs, fmt.Errorf("dashboard listen address cannot be empty"))
	}
	if c.Dashboard.PageSize < 1 {
		errs = append(errs, fmt.Errorf("dashboard page size must be at least 1"))
	}
	return errors.Join(errs...)
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
