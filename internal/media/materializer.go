// Package media re-hosts the images and screenshot referenced by extracted content
// into durable blob storage.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder for DecodeConfig
	_ "image/jpeg" // register decoder for DecodeConfig
	_ "image/png"  // register decoder for DecodeConfig
	"strings"
	"sync/atomic"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp" // register decoder for DecodeConfig
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/content-capture/internal/capture"
	"github.com/JakeFAU/content-capture/internal/httpclient"
	"github.com/JakeFAU/content-capture/internal/metrics"
	"github.com/JakeFAU/content-capture/internal/policy/ratelimit"
)

// Config bounds media downloads.
type Config struct {
	Concurrency int
	MaxBytes    int64
	Timeout     time.Duration
}

// Result is the materialized media for one capture.
type Result struct {
	Images     []capture.MediaAsset
	Videos     []capture.VideoAsset
	Screenshot *capture.MediaAsset
	// Degraded counts assets that stayed at their original URL.
	Degraded int
}

// Materializer downloads media and writes it to a BlobStore.
type Materializer struct {
	cfg     Config
	blobs   capture.BlobStore
	client  *httpclient.Client
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

// New builds a Materializer. limiter may be nil to disable per-host pacing.
func New(cfg Config, blobs capture.BlobStore, limiter *ratelimit.Limiter, logger *zap.Logger) *Materializer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 15 << 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.Config{})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Materializer{
		cfg:   cfg,
		blobs: blobs,
		// One byte of headroom lets download detect oversize bodies.
		client:  httpclient.New(httpclient.WithMaxBytes(cfg.MaxBytes + 1)),
		limiter: limiter,
		logger:  logger,
	}
}

// Materialize uploads every image and the screenshot. It never fails: an image that cannot
// be re-hosted keeps its original URL and is counted in Result.Degraded.
func (m *Materializer) Materialize(ctx context.Context, captureID string, content capture.ExtractedContent) Result {
	result := Result{
		Images: make([]capture.MediaAsset, len(content.Images)),
		Videos: append([]capture.VideoAsset(nil), content.Videos...),
	}
	copy(result.Images, content.Images)

	var degraded atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Concurrency)
	for i := range result.Images {
		g.Go(func() error {
			asset, err := m.materializeImage(gctx, captureID, i, result.Images[i])
			if err != nil {
				degraded.Add(1)
				metrics.ObserveMediaDownload("failure")
				m.logger.Warn("image materialization degraded",
					zap.String("capture_id", captureID),
					zap.String("url", result.Images[i].OriginalURL),
					zap.Error(err),
				)
				return nil
			}
			metrics.ObserveMediaDownload("success")
			result.Images[i] = asset
			return nil
		})
	}
	_ = g.Wait()

	result.Screenshot = m.materializeScreenshot(ctx, captureID, content.Screenshot)
	result.Degraded = int(degraded.Load())
	if result.Degraded > 0 {
		metrics.ObserveDegradation("media")
	}
	return result
}

func (m *Materializer) materializeImage(
	ctx context.Context,
	captureID string,
	index int,
	asset capture.MediaAsset,
) (capture.MediaAsset, error) {
	data, mtype, err := m.download(ctx, asset.OriginalURL)
	if err != nil {
		return asset, err
	}
	if !strings.HasPrefix(mtype.String(), "image/") {
		return asset, fmt.Errorf("unexpected media type %s", mtype.String())
	}

	path := fmt.Sprintf("captures/%s/images/%d%s", captureID, index, mtype.Extension())
	publicURL, err := m.blobs.PutObject(ctx, path, mtype.String(), bytes.NewReader(data))
	if err != nil {
		return asset, fmt.Errorf("upload image: %w", err)
	}

	asset.StoragePath = path
	asset.PublicURL = publicURL
	if asset.Width == 0 || asset.Height == 0 {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			asset.Width, asset.Height = cfg.Width, cfg.Height
		}
	}
	return asset, nil
}

// materializeScreenshot uploads inline bytes or re-hosts a remote screenshot. A remote
// screenshot that cannot be copied keeps its URL; failed inline bytes are dropped.
func (m *Materializer) materializeScreenshot(
	ctx context.Context,
	captureID string,
	shot *capture.Screenshot,
) *capture.MediaAsset {
	if shot == nil {
		return nil
	}

	data := shot.Data
	contentType := shot.ContentType
	if len(data) == 0 && shot.URL != "" {
		downloaded, mtype, err := m.download(ctx, shot.URL)
		if err != nil {
			m.logger.Warn("screenshot download failed; keeping remote url",
				zap.String("capture_id", captureID),
				zap.String("url", shot.URL),
				zap.Error(err),
			)
			metrics.ObserveDegradation("screenshot")
			return &capture.MediaAsset{OriginalURL: shot.URL}
		}
		data, contentType = downloaded, mtype.String()
	}
	if len(data) == 0 {
		return nil
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") && contentType != "" {
		mtype = mimetype.Lookup(contentType)
	}
	ext, mediaType := ".png", "image/png"
	if mtype != nil && strings.HasPrefix(mtype.String(), "image/") {
		ext, mediaType = mtype.Extension(), mtype.String()
	}

	path := fmt.Sprintf("captures/%s/screenshot%s", captureID, ext)
	publicURL, err := m.blobs.PutObject(ctx, path, mediaType, bytes.NewReader(data))
	if err != nil {
		m.logger.Warn("screenshot upload failed",
			zap.String("capture_id", captureID),
			zap.Error(err),
		)
		metrics.ObserveDegradation("screenshot")
		if shot.URL != "" {
			return &capture.MediaAsset{OriginalURL: shot.URL}
		}
		return nil
	}

	asset := &capture.MediaAsset{OriginalURL: shot.URL, StoragePath: path, PublicURL: publicURL}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		asset.Width, asset.Height = cfg.Width, cfg.Height
	}
	return asset
}

func (m *Materializer) download(ctx context.Context, rawURL string) ([]byte, *mimetype.MIME, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, nil, errors.New("empty media url")
	}
	if err := m.limiter.Wait(ctx, rawURL); err != nil {
		return nil, nil, err
	}
	resp, err := m.client.Get(ctx, m.cfg.Timeout, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("download media: %w", err)
	}
	if int64(len(resp.Body)) > m.cfg.MaxBytes {
		return nil, nil, fmt.Errorf("media exceeds %d bytes", m.cfg.MaxBytes)
	}
	if len(resp.Body) == 0 {
		return nil, nil, errors.New("empty media body")
	}
	return resp.Body, mimetype.Detect(resp.Body), nil
}
