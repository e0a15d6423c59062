// Package screenshot provides capture.Screenshotter implementations.
package screenshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/content-capture/internal/capture"
)

// ChromedpConfig controls the behavior of the headless screenshotter.
type ChromedpConfig struct {
	MaxParallel    int
	UserAgent      string
	DefaultTimeout time.Duration
}

// Chromedp implements capture.Screenshotter using chromedp and headless Chrome.
type Chromedp struct {
	cfg         ChromedpConfig
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates a headless screenshotter backed by chromedp.
func NewChromedp(cfg ChromedpConfig) (*Chromedp, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Chromedp{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context.
func (c *Chromedp) Close() {
	c.allocCancel()
}

// Capture renders the page in headless Chrome and returns the screenshot bytes inline.
func (c *Chromedp) Capture(ctx context.Context, request capture.ScreenshotRequest) (capture.Screenshot, error) {
	if err := c.acquire(ctx); err != nil {
		return capture.Screenshot{}, err
	}
	defer c.release()

	taskCtx, taskCancel := chromedp.NewContext(c.allocator)
	defer taskCancel()

	timeout := request.Timeout
	if timeout <= 0 {
		timeout = c.cfg.DefaultTimeout
	}
	taskCtx, cancel := context.WithTimeout(taskCtx, timeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	idle := newIdleSignal()
	chromedp.ListenTarget(taskCtx, idle.captureEvent)

	var buf []byte
	if err := chromedp.Run(taskCtx, c.actions(request, idle, &buf)...); err != nil {
		return capture.Screenshot{}, fmt.Errorf("chromedp screenshot: %w", err)
	}
	if len(buf) == 0 {
		return capture.Screenshot{}, fmt.Errorf("chromedp screenshot: empty image")
	}

	contentType := "image/png"
	if request.FullPage {
		contentType = "image/jpeg"
	}
	return capture.Screenshot{Data: buf, ContentType: contentType}, nil
}

func (c *Chromedp) actions(request capture.ScreenshotRequest, idle *idleSignal, buf *[]byte) []chromedp.Action {
	width, height := request.ViewportWidth, request.ViewportHeight
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}

	actions := []chromedp.Action{
		chromedp.ActionFunc(func(ctx context.Context) error {
			if err := emulation.SetDeviceMetricsOverride(int64(width), int64(height), 1, false).Do(ctx); err != nil {
				return fmt.Errorf("set viewport: %w", err)
			}
			if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
				return fmt.Errorf("enable lifecycle events: %w", err)
			}
			return nil
		}),
		chromedp.Navigate(request.URL),
	}
	if request.WaitNetworkIdle {
		actions = append(actions, idle.wait(), chromedp.Sleep(250*time.Millisecond))
	} else {
		actions = append(actions, chromedp.WaitReady("body", chromedp.ByQuery))
	}
	if request.FullPage {
		actions = append(actions, chromedp.FullScreenshot(buf, 90))
	} else {
		actions = append(actions, chromedp.CaptureScreenshot(buf))
	}
	return actions
}

func (c *Chromedp) acquire(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	select {
	case c.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("screenshot slot wait canceled: %w", ctx.Err())
	}
}

func (c *Chromedp) release() {
	if c.limiter == nil {
		return
	}
	select {
	case <-c.limiter:
	default:
	}
}

// idleSignal closes once Chrome reports the networkIdle lifecycle event.
type idleSignal struct {
	once sync.Once
	ch   chan struct{}
}

func newIdleSignal() *idleSignal {
	return &idleSignal{ch: make(chan struct{})}
}

func (s *idleSignal) captureEvent(ev any) {
	if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == "networkIdle" {
		s.once.Do(func() { close(s.ch) })
	}
}

func (s *idleSignal) wait() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		select {
		case <-s.ch:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("wait for network idle: %w", ctx.Err())
		}
	})
}
