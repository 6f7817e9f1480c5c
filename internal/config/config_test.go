package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Default() Tests
// =============================================================================

func TestDefault(t *testing.T) {
	t.Setenv("REDIS_HOST", "")
	t.Setenv("REDIS_PASSWORD", "")

	cfg := Default()

	t.Run("API defaults", func(t *testing.T) {
		if cfg.API.Endpoint != "http://localhost:8080" {
			t.Errorf("expected API.Endpoint = 'http://localhost:8080', got '%s'", cfg.API.Endpoint)
		}
		if cfg.API.Timeout != 30*time.Second {
			t.Errorf("expected API.Timeout = 30s, got %v", cfg.API.Timeout)
		}
		if cfg.API.MaxRetries != 3 {
			t.Errorf("expected API.MaxRetries = 3, got %d", cfg.API.MaxRetries)
		}
	})

	t.Run("Storage defaults", func(t *testing.T) {
		if cfg.Storage.BaseURL != "https://storage.googleapis.com" {
			t.Errorf("unexpected Storage.BaseURL %q", cfg.Storage.BaseURL)
		}
		if cfg.Storage.InputBucket != "muskoka-transitions" {
			t.Errorf("unexpected Storage.InputBucket %q", cfg.Storage.InputBucket)
		}
	})

	t.Run("Cache defaults", func(t *testing.T) {
		if cfg.Cache.Enabled {
			t.Error("expected cache to be disabled by default")
		}
		if cfg.Cache.Host != "localhost" {
			t.Errorf("expected Cache.Host = 'localhost', got '%s'", cfg.Cache.Host)
		}
		if cfg.Cache.Port != 6379 {
			t.Errorf("expected Cache.Port = 6379, got %d", cfg.Cache.Port)
		}
		if cfg.Cache.PoolSize != 10 {
			t.Errorf("expected Cache.PoolSize = 10, got %d", cfg.Cache.PoolSize)
		}
	})

	t.Run("Dashboard defaults", func(t *testing.T) {
		if cfg.Dashboard.ListenAddr != ":8000" {
			t.Errorf("expected Dashboard.ListenAddr = ':8000', got '%s'", cfg.Dashboard.ListenAddr)
		}
		if cfg.Dashboard.PageSize != 20 {
			t.Errorf("expected Dashboard.PageSize = 20, got %d", cfg.Dashboard.PageSize)
		}
	})

	t.Run("Logging defaults", func(t *testing.T) {
		if cfg.Logging.Level != "info" {
			t.Errorf("expected Logging.Level = 'info', got '%s'", cfg.Logging.Level)
		}
		if cfg.Logging.Format != "text" {
			t.Errorf("expected Logging.Format = 'text', got '%s'", cfg.Logging.Format)
		}
	})

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to be valid, got %v", err)
	}
}

func TestDefaultWithEnvironmentVariables(t *testing.T) {
	t.Setenv("REDIS_HOST", "redis.example.com")
	t.Setenv("REDIS_PASSWORD", "secret")

	cfg := Default()
	if cfg.Cache.Host != "redis.example.com" {
		t.Errorf("expected host from env, got %s", cfg.Cache.Host)
	}
	if cfg.Cache.Password != "secret" {
		t.Errorf("expected password from env, got %s", cfg.Cache.Password)
	}
}

func TestCacheConfig_RedisAddr(t *testing.T) {
	tests := []struct {
		name string
		host string
		port int
		want string
	}{
		{"localhost", "localhost", 6379, "localhost:6379"},
		{"custom port", "redis.internal", 6380, "redis.internal:6380"},
		{"ip address", "10.0.0.5", 6379, "10.0.0.5:6379"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := CacheConfig{Host: tt.host, Port: tt.port}
			if got := c.RedisAddr(); got != tt.want {
				t.Errorf("RedisAddr() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid default", func(c *Config) {}, ""},
		{"empty endpoint", func(c *Config) { c.API.Endpoint = "" }, "api endpoint cannot be empty"},
		{"relative endpoint", func(c *Config) { c.API.Endpoint = "/api" }, "absolute URL"},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }, "api timeout must be positive"},
		{"negative retries", func(c *Config) { c.API.MaxRetries = -1 }, "max retries cannot be negative"},
		{"missing bucket", func(c *Config) { c.Storage.InputBucket = "" }, "input bucket"},
		{"cache without host", func(c *Config) {
			c.Cache.Enabled = true
			c.Cache.Host = ""
		}, "cache host cannot be empty"},
		{"cache host ignored when disabled", func(c *Config) { c.Cache.Host = "" }, ""},
		{"cache zero ttl", func(c *Config) {
			c.Cache.Enabled = true
			c.Cache.TaskTTL = 0
		}, "cache ttls must be positive"},
		{"empty listen addr", func(c *Config) { c.Dashboard.ListenAddr = "" }, "listen address"},
		{"zero page size", func(c *Config) { c.Dashboard.PageSize = 0 }, "page size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := Default()
	cfg.API.Endpoint = ""
	cfg.Dashboard.PageSize = 0

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.True(t, strings.Contains(msg, "api endpoint") && strings.Contains(msg, "page size"), msg)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "muskoka.yml")
	yml := `
api:
  endpoint: https://api.muskoka.example
  timeout: 5s
  max_retries: 1
cache:
  enabled: true
  task_ttl: 1m
dashboard:
  page_size: 50
logging:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := load(path, "")
	require.NoError(t, err)

	assert.Equal(t, "https://api.muskoka.example", cfg.API.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, 1, cfg.API.MaxRetries)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, time.Minute, cfg.Cache.TaskTTL)
	assert.Equal(t, 10*time.Second, cfg.Cache.ListingTTL)
	assert.Equal(t, 50, cfg.Dashboard.PageSize)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, ":8000", cfg.Dashboard.ListenAddr)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("MUSKOKA_API_ENDPOINT", "http://env.example:9000")
	t.Setenv("MUSKOKA_DASHBOARD_LISTEN_ADDR", ":9999")
	t.Setenv("MUSKOKA_API_TIMEOUT", "2s")

	cfg, err := load("", "")
	require.NoError(t, err)
	assert.Equal(t, "http://env.example:9000", cfg.API.Endpoint)
	assert.Equal(t, ":9999", cfg.Dashboard.ListenAddr)
	assert.Equal(t, 2*time.Second, cfg.API.Timeout)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("MUSKOKA_STORAGE_INPUT_BUCKET=test-bucket\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("MUSKOKA_STORAGE_INPUT_BUCKET") })

	cfg, err := load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "test-bucket", cfg.Storage.InputBucket)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "nope.yml"), "")
	assert.Error(t, err)
}

func TestLoad_InvalidResult(t *testing.T) {
	t.Setenv("MUSKOKA_DASHBOARD_PAGE_SIZE", "0")
	_, err := load("", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page size")
}

func TestGetEnv(t *testing.T) {
	t.Setenv("MUSKOKA_TEST_KEY", "value")
	if got := getEnv("MUSKOKA_TEST_KEY", "default"); got != "value" {
		t.Errorf("expected value, got %s", got)
	}
	if got := getEnv("MUSKOKA_TEST_MISSING", "default"); got != "default" {
		t.Errorf("expected default, got %s", got)
	}
}

func TestDefaultReturnsNewInstance(t *testing.T) {
	a := Default()
	b := Default()
	a.API.Endpoint = "http://changed"
	if b.API.Endpoint == "http://changed" {
		t.Error("Default() should return independent instances")
	}
}
