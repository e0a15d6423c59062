package scraper

import (
	"go.uber.org/zap"

	"github.com/JakeFAU/content-capture/internal/capture"
	"github.com/JakeFAU/content-capture/internal/httpclient"
)

// Options wires the standard chains.
type Options struct {
	HTTP        *httpclient.Client
	Fetcher     capture.Fetcher
	Screenshots capture.Screenshotter
	Generic     GenericConfig
	FxTwitter   MirrorConfig
	VxTwitter   MirrorConfig
	YouTube     YouTubeConfig
	// Providers are appended to their chain in the order given.
	Providers []ProviderConfig
	Logger    *zap.Logger
}

// NewDefaultRegistry builds the standard chains:
// twitter: fxtwitter, vxtwitter, twitter providers; instagram: instagram providers;
// youtube: youtube. LinkedIn, Pinterest and the open web rely on the generic fallback.
func NewDefaultRegistry(opts Options) (*Registry, error) {
	if opts.HTTP == nil {
		opts.HTTP = httpclient.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := NewRegistry(NewGeneric(opts.Generic, opts.Fetcher, opts.Screenshots, logger), logger.Named("scraper"))
	registry.Register(capture.SourceTwitter,
		NewFxTwitter(opts.FxTwitter, opts.HTTP),
		NewVxTwitter(opts.VxTwitter, opts.HTTP),
	)
	registry.Register(capture.SourceYouTube, NewYouTube(opts.YouTube, opts.HTTP, opts.Fetcher))

	for _, cfg := range opts.Providers {
		sourceType, strategy, err := NewProvider(cfg, opts.HTTP)
		if err != nil {
			return nil, err
		}
		registry.Register(sourceType, strategy)
	}
	return registry, nil
}
