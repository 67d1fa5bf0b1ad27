package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load("", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "http://localhost:8002", cfg.BaseURL)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Zero(t, cfg.Timeout)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := writeFile(t, "videochat.yaml", `
base_url: https://videos.example.com
timeout: 45s
rate_limit: 2.5
rate_burst: 3
log:
  level: debug
  json: true
export:
  dedup_threshold: 8
s3:
  bucket: frames
  endpoint: https://nyc3.digitaloceanspaces.com
watch:
  settle_delay: 500ms
`)

	t.Setenv("VIDEOCHAT_TIMEOUT", "10s")
	t.Setenv("VIDEOCHAT_S3_REGION", "nyc3")
	t.Setenv("VIDEOCHAT_METRICS_ADDR", ":9100")

	cfg, err := load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "https://videos.example.com", cfg.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Timeout, "env overrides file")
	assert.Equal(t, 2.5, cfg.RateLimit)
	assert.Equal(t, 3, cfg.RateBurst)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, 8, cfg.Export.DedupThreshold)
	assert.Equal(t, "./frames", cfg.Export.Dir, "unset keys keep defaults")
	assert.Equal(t, "frames", cfg.S3.Bucket)
	assert.Equal(t, "nyc3", cfg.S3.Region)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.SettleDelay)
	assert.Equal(t, ":9100", cfg.Watch.MetricsAddr)
}

func TestLoadDotEnv(t *testing.T) {
	envFile := writeFile(t, ".env", "VIDEOCHAT_HISTORY_PATH=/tmp/dotenv-history.db\nVIDEOCHAT_S3_ACCESS_KEY=from-dotenv\n")
	t.Cleanup(func() {
		os.Unsetenv("VIDEOCHAT_HISTORY_PATH")
		os.Unsetenv("VIDEOCHAT_S3_ACCESS_KEY")
	})
	t.Setenv("VIDEOCHAT_S3_ACCESS_KEY", "from-env")

	cfg, err := load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/dotenv-history.db", cfg.History.Path)
	assert.Equal(t, "from-env", cfg.S3.AccessKey, "real environment wins over .env")
}

func TestLoadInvalidEnvKeepsDefault(t *testing.T) {
	t.Setenv("VIDEOCHAT_TIMEOUT", "soon")
	t.Setenv("VIDEOCHAT_RATE_BURST", "many")
	t.Setenv("VIDEOCHAT_LOG_JSON", "perhaps")

	cfg, err := load("", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Zero(t, cfg.Timeout)
	assert.Equal(t, 1, cfg.RateBurst)
	assert.False(t, cfg.Log.JSON)
}

func TestLoadErrors(t *testing.T) {
	missingEnv := filepath.Join(t.TempDir(), "missing.env")

	_, err := load(filepath.Join(t.TempDir(), "nope.yaml"), missingEnv)
	assert.Error(t, err)

	bad := writeFile(t, "bad.yaml", "base_url: [unclosed")
	_, err = load(bad, missingEnv)
	assert.Error(t, err)

}

func TestLoadDefersValidation(t *testing.T) {
	t.Setenv("VIDEOCHAT_BASE_URL", "ftp://example.com")

	cfg, err := load("", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "ftp://example.com", cfg.BaseURL)
	assert.Error(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"missing base url", func(c *Config) { c.BaseURL = "" }, true},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, true},
		{"negative rate", func(c *Config) { c.RateLimit = -1 }, true},
		{"rate without burst", func(c *Config) { c.RateLimit = 1; c.RateBurst = 0 }, true},
		{"burst ignored without rate", func(c *Config) { c.RateBurst = 0 }, false},
		{"dedup too high", func(c *Config) { c.Export.DedupThreshold = 65 }, true},
		{"dedup disabled", func(c *Config) { c.Export.DedupThreshold = 0 }, false},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, true},
		{"negative settle", func(c *Config) { c.Watch.SettleDelay = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.Equal(t, tt.wantErr, err != nil, "error: %v", err)
		})
	}
}
