// Package config loads and validates capture service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend names shared by the storage, db and pubsub sections.
const (
	BackendMemory   = "memory"
	BackendGCS      = "gcs"
	BackendPostgres = "postgres"
	BackendPubSub   = "pubsub"
)

// Screenshot modes.
const (
	ScreenshotChromedp = "chromedp"
	ScreenshotService  = "service"
	ScreenshotOff      = "off"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Scraper    ScraperConfig    `mapstructure:"scraper"`
	Screenshot ScreenshotConfig `mapstructure:"screenshot"`
	Media      MediaConfig      `mapstructure:"media"`
	Storage    StorageConfig    `mapstructure:"storage"`
	DB         DBConfig         `mapstructure:"db"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Search     SearchConfig     `mapstructure:"search"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int    `mapstructure:"port"`
	APIKey                string `mapstructure:"api_key"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// TelemetryConfig names the service in traces.
type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
}

// HTTPConfig configures the shared outbound HTTP client.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
	MaxBodyBytes   int64  `mapstructure:"max_body_bytes"`
}

// ProviderConfig is one third-party scrape service.
type ProviderConfig struct {
	Name     string `mapstructure:"name"`
	Endpoint string `mapstructure:"endpoint"`
	Token    string `mapstructure:"token"`
}

// ScraperConfig governs the strategy chains.
type ScraperConfig struct {
	MaxImages                 int              `mapstructure:"max_images"`
	MaxBodyChars              int              `mapstructure:"max_body_chars"`
	MinBodyChars              int              `mapstructure:"min_body_chars"`
	InstagramTimeoutSeconds   int              `mapstructure:"instagram_timeout_seconds"`
	HeavyweightTimeoutSeconds int              `mapstructure:"heavyweight_timeout_seconds"`
	ScreenshotEnabled         bool             `mapstructure:"screenshot_enabled"`
	// RenderJS re-fetches script-heavy pages through headless Chrome.
	RenderJS                  bool             `mapstructure:"render_js"`
	RenderMinBodyBytes        int              `mapstructure:"render_min_body_bytes"`
	FxTwitterBaseURL          string           `mapstructure:"fxtwitter_base_url"`
	VxTwitterBaseURL          string           `mapstructure:"vxtwitter_base_url"`
	YouTubeOEmbedURL          string           `mapstructure:"youtube_oembed_url"`
	Providers                 []ProviderConfig `mapstructure:"providers"`
}

// ScreenshotConfig selects the screenshot capability.
type ScreenshotConfig struct {
	Mode        string `mapstructure:"mode"`
	ServiceURL  string `mapstructure:"service_url"`
	ServiceKey  string `mapstructure:"service_key"`
	MaxParallel int    `mapstructure:"max_parallel"`
}

// MediaConfig bounds media downloads.
type MediaConfig struct {
	Concurrency    int     `mapstructure:"concurrency"`
	MaxBytes       int64   `mapstructure:"max_bytes"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	HostRPS        float64 `mapstructure:"host_rps"`
	MinThumbnailPx int     `mapstructure:"min_thumbnail_px"`
}

// StorageConfig selects the blob store.
type StorageConfig struct {
	Backend       string `mapstructure:"backend"`
	GCSBucket     string `mapstructure:"gcs_bucket"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	Prefix        string `mapstructure:"prefix"`
}

// DBConfig selects the record store.
type DBConfig struct {
	Backend  string `mapstructure:"backend"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig selects the queue.
type PubSubConfig struct {
	Backend      string `mapstructure:"backend"`
	ProjectID    string `mapstructure:"project_id"`
	Topic        string `mapstructure:"topic"`
	Subscription string `mapstructure:"subscription"`
	MaxAttempts  int    `mapstructure:"max_attempts"`
	Concurrency  int    `mapstructure:"concurrency"`
}

// LLMConfig configures text generation. An empty APIKey disables it and every
// caller falls back to its deterministic path.
type LLMConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	MaxTokens      int64  `mapstructure:"max_tokens"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// SearchConfig tunes the search engine.
type SearchConfig struct {
	CandidateLimit  int `mapstructure:"candidate_limit"`
	DefaultPageSize int `mapstructure:"default_page_size"`
	MaxPageSize     int `mapstructure:"max_page_size"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CAPTURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("logging.development", true)
	v.SetDefault("telemetry.service_name", "content-capture")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.user_agent", "Mozilla/5.0 (compatible; content-capture/1.0)")
	v.SetDefault("http.max_body_bytes", 10<<20)
	v.SetDefault("scraper.max_images", 10)
	v.SetDefault("scraper.max_body_chars", 5000)
	v.SetDefault("scraper.min_body_chars", 10)
	v.SetDefault("scraper.instagram_timeout_seconds", 90)
	v.SetDefault("scraper.heavyweight_timeout_seconds", 60)
	v.SetDefault("scraper.screenshot_enabled", false)
	v.SetDefault("scraper.render_js", false)
	v.SetDefault("scraper.render_min_body_bytes", 2048)
	v.SetDefault("scraper.fxtwitter_base_url", "https://api.fxtwitter.com")
	v.SetDefault("scraper.vxtwitter_base_url", "https://api.vxtwitter.com")
	v.SetDefault("scraper.youtube_oembed_url", "https://www.youtube.com/oembed")
	v.SetDefault("screenshot.mode", ScreenshotOff)
	v.SetDefault("screenshot.service_url", "")
	v.SetDefault("screenshot.service_key", "")
	v.SetDefault("screenshot.max_parallel", 1)
	v.SetDefault("media.concurrency", 4)
	v.SetDefault("media.max_bytes", 20<<20)
	v.SetDefault("media.timeout_seconds", 20)
	v.SetDefault("media.host_rps", 2.0)
	v.SetDefault("media.min_thumbnail_px", 200)
	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("storage.prefix", "captures")
	v.SetDefault("db.backend", BackendMemory)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("pubsub.backend", BackendMemory)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "captures")
	v.SetDefault("pubsub.subscription", "captures-worker")
	v.SetDefault("pubsub.max_attempts", 5)
	v.SetDefault("pubsub.concurrency", 2)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "claude-3-5-haiku-latest")
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.timeout_seconds", 30)
	v.SetDefault("search.candidate_limit", 100)
	v.SetDefault("search.default_page_size", 20)
	v.SetDefault("search.max_page_size", 100)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Media.Concurrency <= 0 {
		return fmt.Errorf("media.concurrency must be > 0")
	}
	if c.Search.CandidateLimit <= 0 {
		return fmt.Errorf("search.candidate_limit must be > 0")
	}
	switch c.Screenshot.Mode {
	case ScreenshotOff, ScreenshotChromedp:
	case ScreenshotService:
		if c.Screenshot.ServiceURL == "" {
			return fmt.Errorf("screenshot.service_url must be set when screenshot.mode is %q", ScreenshotService)
		}
	default:
		return fmt.Errorf("screenshot.mode %q is not one of off, chromedp, service", c.Screenshot.Mode)
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set when storage.backend is %q", BackendGCS)
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of memory, gcs", c.Storage.Backend)
	}
	switch c.DB.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when db.backend is %q", BackendPostgres)
		}
	default:
		return fmt.Errorf("db.backend %q is not one of memory, postgres", c.DB.Backend)
	}
	switch c.PubSub.Backend {
	case BackendMemory:
	case BackendPubSub:
		if c.PubSub.ProjectID == "" || c.PubSub.Topic == "" || c.PubSub.Subscription == "" {
			return fmt.Errorf("pubsub.project_id, pubsub.topic and pubsub.subscription must be set when pubsub.backend is %q", BackendPubSub)
		}
	default:
		return fmt.Errorf("pubsub.backend %q is not one of memory, pubsub", c.PubSub.Backend)
	}
	for i, p := range c.Scraper.Providers {
		if p.Name == "" || p.Endpoint == "" {
			return fmt.Errorf("scraper.providers[%d] requires name and endpoint", i)
		}
	}
	return nil
}

// HTTPTimeout is the default per-request budget for outbound calls.
func (c Config) HTTPTimeout() time.Duration {
	return Seconds(c.HTTP.TimeoutSeconds)
}

// Seconds converts a configured second count to a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
