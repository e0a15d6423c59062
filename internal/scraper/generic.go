package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/content-capture/internal/capture"
	"github.com/JakeFAU/content-capture/internal/metrics"
)

// GenericConfig bounds the HTML strategy.
type GenericConfig struct {
	Timeout      time.Duration
	MaxImages    int
	MaxBodyChars int
	// Screenshot enables the rendered-page capture after extraction.
	Screenshot bool
}

// screenshotAttempts are tried in order until one succeeds.
var screenshotAttempts = []capture.ScreenshotRequest{
	{ViewportWidth: 1920, ViewportHeight: 1080, WaitNetworkIdle: true, Timeout: 30 * time.Second, FullPage: true},
	{ViewportWidth: 1280, ViewportHeight: 720, WaitNetworkIdle: false, Timeout: 12 * time.Second},
}

// GenericStrategy extracts content from any HTML page.
type GenericStrategy struct {
	cfg     GenericConfig
	fetcher capture.Fetcher
	shots   capture.Screenshotter
	logger  *zap.Logger
}

// NewGeneric builds the HTML strategy. shots may be nil.
func NewGeneric(cfg GenericConfig, fetcher capture.Fetcher, shots capture.Screenshotter, logger *zap.Logger) *GenericStrategy {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = 10
	}
	if cfg.MaxBodyChars <= 0 {
		cfg.MaxBodyChars = 5000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenericStrategy{cfg: cfg, fetcher: fetcher, shots: shots, logger: logger}
}

// Name implements Strategy.
func (s *GenericStrategy) Name() string { return "generic" }

// CanHandle implements Strategy.
func (s *GenericStrategy) CanHandle(u *url.URL) bool {
	return u.Scheme == "http" || u.Scheme == "https"
}

// Attempt implements Strategy.
func (s *GenericStrategy) Attempt(ctx context.Context, u *url.URL) (capture.ExtractedContent, error) {
	page, err := fetchPage(ctx, s.fetcher, u.String(), s.cfg.Timeout)
	if err != nil {
		return capture.ExtractedContent{}, err
	}
	base := u
	if final, err := url.Parse(page.URL); err == nil && final.Host != "" {
		base = final
	}

	doc, err := parseDocument(page.Body)
	if err != nil {
		return capture.ExtractedContent{}, err
	}
	meta := extractMeta(doc)
	images := collectMetaImages(doc, base)
	body, readableTitle := bodyWithFallback(doc, page.Body, base, s.cfg.MaxBodyChars)
	images = collectInlineImages(doc, base, images)

	content := capture.ExtractedContent{
		Title:        firstNonEmpty(meta.Title, readableTitle),
		Description:  meta.Description,
		BodyText:     body,
		AuthorName:   meta.Author,
		PublishedAt:  meta.PublishedAt,
		Images:       capImages(images, s.cfg.MaxImages),
		PlatformData: map[string]any{},
	}
	if meta.SiteName != "" {
		content.PlatformData["site_name"] = meta.SiteName
	}
	if content.Title == "" && content.BodyText == "" {
		return capture.ExtractedContent{}, errors.New("page has neither title nor body text")
	}

	if s.cfg.Screenshot && s.shots != nil {
		content.Screenshot = s.screenshot(ctx, u.String())
	}
	return content, nil
}

// screenshot tries each attempt in order. A miss is logged, never returned.
func (s *GenericStrategy) screenshot(ctx context.Context, target string) *capture.Screenshot {
	for i, attempt := range screenshotAttempts {
		attempt.URL = target
		shot, err := s.shots.Capture(ctx, attempt)
		if err == nil && (len(shot.Data) > 0 || shot.URL != "") {
			return &shot
		}
		s.logger.Debug("screenshot attempt failed",
			zap.String("url", target),
			zap.Int("attempt", i+1),
			zap.Error(err),
		)
	}
	metrics.ObserveDegradation("screenshot")
	s.logger.Warn("screenshot unavailable", zap.String("url", target))
	return nil
}

func fetchPage(ctx context.Context, fetcher capture.Fetcher, target string, timeout time.Duration) (capture.FetchResponse, error) {
	header := http.Header{}
	header.Set("Accept", "text/html,application/xhtml+xml")
	resp, err := fetcher.Fetch(ctx, capture.FetchRequest{URL: target, Headers: header, Timeout: timeout})
	if err != nil {
		return capture.FetchResponse{}, fmt.Errorf("fetch page: %w", err)
	}
	if len(resp.Body) == 0 {
		return capture.FetchResponse{}, errors.New("fetch page: empty body")
	}
	return resp, nil
}
