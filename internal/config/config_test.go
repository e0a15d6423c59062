package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, BackendMemory, cfg.DB.Backend)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, BackendMemory, cfg.PubSub.Backend)
	assert.Equal(t, ScreenshotOff, cfg.Screenshot.Mode)
	assert.Equal(t, 5, cfg.PubSub.MaxAttempts)
	assert.Equal(t, 200, cfg.Media.MinThumbnailPx)
	assert.Equal(t, 100, cfg.Search.CandidateLimit)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout())
	assert.False(t, cfg.Scraper.RenderJS)
	assert.Equal(t, 2048, cfg.Scraper.RenderMinBodyBytes)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  api_key: secret
logging:
  development: false
http:
  timeout_seconds: 45
scraper:
  max_images: 4
  screenshot_enabled: true
  providers:
    - name: apify-tweet
      endpoint: https://api.apify.example/run
      token: tok
screenshot:
  mode: service
  service_url: https://shots.example/capture
storage:
  backend: gcs
  gcs_bucket: captures-bucket
db:
  backend: postgres
  dsn: postgres://localhost/capture
pubsub:
  backend: pubsub
  project_id: proj
  topic: captures
  subscription: captures-worker
  max_attempts: 3
llm:
  api_key: key
  model: claude-test
search:
  candidate_limit: 50
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "secret", cfg.Server.APIKey)
	assert.False(t, cfg.Logging.Development)
	assert.Equal(t, 45*time.Second, cfg.HTTPTimeout())
	assert.Equal(t, 4, cfg.Scraper.MaxImages)
	assert.True(t, cfg.Scraper.ScreenshotEnabled)
	require.Len(t, cfg.Scraper.Providers, 1)
	assert.Equal(t, ProviderConfig{Name: "apify-tweet", Endpoint: "https://api.apify.example/run", Token: "tok"}, cfg.Scraper.Providers[0])
	assert.Equal(t, ScreenshotService, cfg.Screenshot.Mode)
	assert.Equal(t, "captures-bucket", cfg.Storage.GCSBucket)
	assert.Equal(t, BackendPostgres, cfg.DB.Backend)
	assert.Equal(t, 3, cfg.PubSub.MaxAttempts)
	assert.Equal(t, "claude-test", cfg.LLM.Model)
	assert.Equal(t, 50, cfg.Search.CandidateLimit)
	// untouched keys keep their defaults
	assert.Equal(t, 20, cfg.Search.DefaultPageSize)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CAPTURE_SERVER_PORT", "7070")
	t.Setenv("CAPTURE_LLM_API_KEY", "from-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
		{name: "invalid timeout", mutate: func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, want: "http.timeout_seconds"},
		{name: "media concurrency", mutate: func(c *Config) { c.Media.Concurrency = 0 }, want: "media.concurrency"},
		{name: "candidate limit", mutate: func(c *Config) { c.Search.CandidateLimit = 0 }, want: "search.candidate_limit"},
		{name: "screenshot mode", mutate: func(c *Config) { c.Screenshot.Mode = "puppeteer" }, want: "screenshot.mode"},
		{name: "screenshot service url", mutate: func(c *Config) { c.Screenshot.Mode = ScreenshotService }, want: "screenshot.service_url"},
		{name: "gcs bucket", mutate: func(c *Config) { c.Storage.Backend = BackendGCS }, want: "storage.gcs_bucket"},
		{name: "storage backend", mutate: func(c *Config) { c.Storage.Backend = "s3" }, want: "storage.backend"},
		{name: "postgres dsn", mutate: func(c *Config) { c.DB.Backend = BackendPostgres }, want: "db.dsn"},
		{name: "db backend", mutate: func(c *Config) { c.DB.Backend = "sqlite" }, want: "db.backend"},
		{name: "pubsub project", mutate: func(c *Config) { c.PubSub.Backend = BackendPubSub }, want: "pubsub.project_id"},
		{name: "queue backend", mutate: func(c *Config) { c.PubSub.Backend = "kafka" }, want: "pubsub.backend"},
		{
			name: "provider endpoint",
			mutate: func(c *Config) {
				c.Scraper.Providers = []ProviderConfig{{Name: "apify-tweet"}}
			},
			want: "scraper.providers[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			require.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
