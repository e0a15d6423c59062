// Package app builds the long-lived capture services from configuration, acting as a
// dependency injection container for the binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/content-capture/internal/api"
	"github.com/JakeFAU/content-capture/internal/capture"
	"github.com/JakeFAU/content-capture/internal/categorize"
	"github.com/JakeFAU/content-capture/internal/clock/system"
	"github.com/JakeFAU/content-capture/internal/config"
	collyfetcher "github.com/JakeFAU/content-capture/internal/fetcher/colly"
	"github.com/JakeFAU/content-capture/internal/fetcher/headless"
	"github.com/JakeFAU/content-capture/internal/httpclient"
	"github.com/JakeFAU/content-capture/internal/id/uuid"
	"github.com/JakeFAU/content-capture/internal/ingest"
	"github.com/JakeFAU/content-capture/internal/llm/anthropic"
	"github.com/JakeFAU/content-capture/internal/media"
	"github.com/JakeFAU/content-capture/internal/pipeline"
	"github.com/JakeFAU/content-capture/internal/policy/ratelimit"
	"github.com/JakeFAU/content-capture/internal/progress"
	"github.com/JakeFAU/content-capture/internal/progress/sinks"
	memqueue "github.com/JakeFAU/content-capture/internal/queue/memory"
	psqueue "github.com/JakeFAU/content-capture/internal/queue/pubsub"
	"github.com/JakeFAU/content-capture/internal/scraper"
	"github.com/JakeFAU/content-capture/internal/screenshot"
	"github.com/JakeFAU/content-capture/internal/search"
	"github.com/JakeFAU/content-capture/internal/storage/gcs"
	"github.com/JakeFAU/content-capture/internal/storage/memory"
	"github.com/JakeFAU/content-capture/internal/storage/postgres"
	"github.com/JakeFAU/content-capture/internal/worker"
)

// App holds the shared services for one process.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Records   capture.RecordStore
	Blobs     capture.BlobStore
	Publisher capture.Publisher
	Consumer  capture.Consumer
	Ingest    *ingest.Service
	Search    *search.Engine
	Processor *pipeline.Processor
	Worker    *worker.Worker

	checks  map[string]api.ReadinessCheck
	closers []func()
}

// New wires every service selected by cfg. Close must be called when New succeeds.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger, checks: map[string]api.ReadinessCheck{}}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config
	logger := a.Logger
	logger.Info("initializing application services",
		zap.String("db_backend", cfg.DB.Backend),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("queue_backend", cfg.PubSub.Backend),
		zap.String("screenshot_mode", cfg.Screenshot.Mode),
	)

	if err := a.initRecords(ctx); err != nil {
		return err
	}
	if err := a.initBlobs(ctx); err != nil {
		return err
	}
	if err := a.initQueue(ctx); err != nil {
		return err
	}

	generator, err := newGenerator(cfg.LLM)
	if err != nil {
		return err
	}
	if generator == nil {
		logger.Warn("llm api key not set; categorization and search intent use keyword fallbacks")
	}

	registry, err := a.newRegistry()
	if err != nil {
		return err
	}

	limiter := ratelimit.New(ratelimit.Config{DefaultRPS: cfg.Media.HostRPS, DefaultBurst: 1})
	materializer := media.New(media.Config{
		Concurrency: cfg.Media.Concurrency,
		MaxBytes:    cfg.Media.MaxBytes,
		Timeout:     config.Seconds(cfg.Media.TimeoutSeconds),
	}, a.Blobs, limiter, logger.Named("media"))

	events, err := a.newProgressHub()
	if err != nil {
		return err
	}

	clock := system.New()
	a.Processor = pipeline.New(
		a.Records,
		registry,
		materializer,
		categorize.New(generator, logger.Named("categorize")),
		clock,
		pipeline.Config{MinThumbnailPx: cfg.Media.MinThumbnailPx, Events: events},
		logger.Named("pipeline"),
	)
	a.Worker = worker.New(a.Consumer, a.Processor, logger.Named("worker"))
	a.Ingest = ingest.New(a.Records, a.Publisher, uuid.New(), clock, logger.Named("ingest"))
	a.Search = search.New(search.Config{
		CandidateLimit:  cfg.Search.CandidateLimit,
		DefaultPageSize: cfg.Search.DefaultPageSize,
		MaxPageSize:     cfg.Search.MaxPageSize,
	}, a.Records, generator, logger.Named("search"))
	return nil
}

// Server builds the HTTP API over the app's services.
func (a *App) Server() *api.Server {
	return api.NewServer(a.Ingest, a.Search, a.checks, api.Config{
		APIKey:         a.Config.Server.APIKey,
		RequestTimeout: config.Seconds(a.Config.Server.RequestTimeoutSeconds),
	}, a.Logger.Named("api"))
}

// Close releases clients in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *App) initRecords(ctx context.Context) error {
	switch a.Config.DB.Backend {
	case config.BackendPostgres:
		store, err := postgres.New(ctx, postgres.Config{DSN: a.Config.DB.DSN, MaxConns: a.Config.DB.MaxConns})
		if err != nil {
			return fmt.Errorf("init postgres: %w", err)
		}
		a.onClose(store.Close)
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
		a.Records = store
		a.checks["postgres"] = store.Ping
	default:
		a.Records = memory.NewRecordStore()
	}
	return nil
}

func (a *App) initBlobs(ctx context.Context) error {
	switch a.Config.Storage.Backend {
	case config.BackendGCS:
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init gcs client: %w", err)
		}
		a.onClose(func() { _ = client.Close() })
		blobs, err := gcs.New(client, gcs.Config{
			Bucket:        a.Config.Storage.GCSBucket,
			Prefix:        a.Config.Storage.Prefix,
			PublicBaseURL: a.Config.Storage.PublicBaseURL,
		})
		if err != nil {
			return err
		}
		a.Blobs = blobs
	default:
		a.Blobs = memory.NewBlobStore(a.Config.Storage.PublicBaseURL)
	}
	return nil
}

func (a *App) initQueue(ctx context.Context) error {
	cfg := a.Config.PubSub
	switch cfg.Backend {
	case config.BackendPubSub:
		client, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return fmt.Errorf("init pubsub client: %w", err)
		}
		a.onClose(func() { _ = client.Close() })
		publisher := psqueue.NewPublisher(client.Topic(cfg.Topic))
		a.onClose(publisher.Stop)
		a.Publisher = publisher
		a.Consumer = psqueue.NewSubscriber(client.Subscription(cfg.Subscription), psqueue.SubscriberConfig{
			NumGoroutines: cfg.Concurrency,
		}, a.Logger.Named("pubsub"))
	default:
		q := memqueue.New(memqueue.Config{MaxAttempts: cfg.MaxAttempts, Concurrency: cfg.Concurrency}, a.Logger.Named("queue"))
		a.onClose(q.Close)
		a.Publisher = q
		a.Consumer = q
	}
	return nil
}

func (a *App) newRegistry() (*scraper.Registry, error) {
	cfg := a.Config
	timeout := cfg.HTTPTimeout()
	client := httpclient.New(
		httpclient.WithUserAgent(cfg.HTTP.UserAgent),
		httpclient.WithMaxBytes(cfg.HTTP.MaxBodyBytes),
	)
	var fetcher capture.Fetcher = collyfetcher.New(collyfetcher.Config{
		UserAgent:   cfg.HTTP.UserAgent,
		Timeout:     timeout,
		MaxBodySize: int(cfg.HTTP.MaxBodyBytes),
	})
	if cfg.Scraper.RenderJS {
		renderer, err := headless.NewChromedp(headless.Config{
			MaxParallel: cfg.Screenshot.MaxParallel,
			UserAgent:   cfg.HTTP.UserAgent,
		})
		if err != nil {
			return nil, fmt.Errorf("init headless renderer: %w", err)
		}
		a.onClose(renderer.Close)
		fetcher = headless.NewEscalating(fetcher, renderer,
			headless.NewDetector(cfg.Scraper.RenderMinBodyBytes), a.Logger.Named("render"))
	}

	shots, err := a.newScreenshotter(client)
	if err != nil {
		return nil, err
	}

	providers := make([]scraper.ProviderConfig, 0, len(cfg.Scraper.Providers))
	for _, p := range cfg.Scraper.Providers {
		providerTimeout := config.Seconds(cfg.Scraper.HeavyweightTimeoutSeconds)
		if p.Name == scraper.ProviderApifyInstagram {
			providerTimeout = config.Seconds(cfg.Scraper.InstagramTimeoutSeconds)
		}
		providers = append(providers, scraper.ProviderConfig{
			Name:         p.Name,
			Endpoint:     p.Endpoint,
			Token:        p.Token,
			Timeout:      providerTimeout,
			MinBodyChars: cfg.Scraper.MinBodyChars,
		})
	}

	return scraper.NewDefaultRegistry(scraper.Options{
		HTTP:        client,
		Fetcher:     fetcher,
		Screenshots: shots,
		Generic: scraper.GenericConfig{
			Timeout:      timeout,
			MaxImages:    cfg.Scraper.MaxImages,
			MaxBodyChars: cfg.Scraper.MaxBodyChars,
			Screenshot:   cfg.Scraper.ScreenshotEnabled && shots != nil,
		},
		FxTwitter: scraper.MirrorConfig{BaseURL: cfg.Scraper.FxTwitterBaseURL, Timeout: timeout},
		VxTwitter: scraper.MirrorConfig{BaseURL: cfg.Scraper.VxTwitterBaseURL, Timeout: timeout},
		YouTube:   scraper.YouTubeConfig{OEmbedURL: cfg.Scraper.YouTubeOEmbedURL, Timeout: timeout},
		Providers: providers,
		Logger:    a.Logger,
	})
}

// newProgressHub fans capture lifecycle events out to debug logs and Prometheus.
func (a *App) newProgressHub() (*progress.Hub, error) {
	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, err
	}
	hub := progress.NewHub(progress.Config{Logger: a.Logger.Named("progress")},
		sinks.NewLogSink(a.Logger.Named("progress")), promSink)
	a.onClose(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hub.Close(ctx); err != nil {
			a.Logger.Warn("progress hub close", zap.Error(err))
		}
	})
	return hub, nil
}

// newScreenshotter returns nil when screenshots are off.
func (a *App) newScreenshotter(client *httpclient.Client) (capture.Screenshotter, error) {
	cfg := a.Config.Screenshot
	switch cfg.Mode {
	case config.ScreenshotChromedp:
		shots, err := screenshot.NewChromedp(screenshot.ChromedpConfig{
			MaxParallel: cfg.MaxParallel,
			UserAgent:   a.Config.HTTP.UserAgent,
		})
		if err != nil {
			return nil, fmt.Errorf("init chromedp: %w", err)
		}
		a.onClose(shots.Close)
		return shots, nil
	case config.ScreenshotService:
		shots, err := screenshot.NewService(screenshot.ServiceConfig{Endpoint: cfg.ServiceURL, APIKey: cfg.ServiceKey}, client)
		if err != nil {
			return nil, fmt.Errorf("init screenshot service: %w", err)
		}
		return shots, nil
	default:
		return nil, nil
	}
}

// newGenerator returns a nil interface when no API key is configured.
func newGenerator(cfg config.LLMConfig) (capture.TextGenerator, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	gen, err := anthropic.New(anthropic.Config{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Timeout:   config.Seconds(cfg.TimeoutSeconds),
	})
	if err != nil {
		return nil, fmt.Errorf("init llm: %w", err)
	}
	return gen, nil
}
