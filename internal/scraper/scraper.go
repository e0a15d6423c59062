// Package scraper resolves a capture URL into ExtractedContent through ordered per-source
// strategy chains. Each strategy either returns content or a failure; a failure never
// leaves state behind and the chain moves on to the next strategy. A generic HTML
// strategy closes every chain.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/content-capture/internal/capture"
	"github.com/JakeFAU/content-capture/internal/metrics"
)

// Strategy is one way of extracting content from a URL.
type Strategy interface {
	Name() string
	CanHandle(u *url.URL) bool
	Attempt(ctx context.Context, u *url.URL) (capture.ExtractedContent, error)
}

// errNotApplicable is recorded when a strategy declines a URL.
var errNotApplicable = errors.New("not applicable to url")

// Failure records why one strategy did not produce content.
type Failure struct {
	Strategy string
	Err      error
}

// ChainError aggregates every failure from an exhausted chain.
type ChainError struct {
	SourceType capture.SourceType
	Failures   []Failure
}

func (e *ChainError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "all %d strategies failed for %s source", len(e.Failures), e.SourceType)
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "\n- %s: %v", f.Strategy, f.Err)
	}
	return b.String()
}

// Unwrap lets errors.Is match capture.ErrScrapeChainExhausted.
func (e *ChainError) Unwrap() error {
	return capture.ErrScrapeChainExhausted
}

// Registry maps each source type to its ordered strategy chain.
type Registry struct {
	chains   map[capture.SourceType][]Strategy
	fallback Strategy
	logger   *zap.Logger
}

// NewRegistry creates a registry whose chains all end with fallback.
func NewRegistry(fallback Strategy, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		chains:   make(map[capture.SourceType][]Strategy),
		fallback: fallback,
		logger:   logger,
	}
}

// Register appends strategies to the chain for a source type.
func (r *Registry) Register(sourceType capture.SourceType, strategies ...Strategy) {
	for _, s := range strategies {
		if s != nil {
			r.chains[sourceType] = append(r.chains[sourceType], s)
		}
	}
}

// Chain returns the full ordered chain for a source type, fallback included.
func (r *Registry) Chain(sourceType capture.SourceType) []Strategy {
	chain := append([]Strategy(nil), r.chains[sourceType]...)
	if r.fallback != nil {
		chain = append(chain, r.fallback)
	}
	return chain
}

// Resolve runs the chain for sourceType and returns the first successful extraction.
// When every strategy fails the error is a *ChainError listing each failure.
func (r *Registry) Resolve(
	ctx context.Context,
	sourceType capture.SourceType,
	rawURL string,
) (capture.ExtractedContent, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return capture.ExtractedContent{}, fmt.Errorf("%w: %v", capture.ErrInvalidURL, err)
	}

	chainErr := &ChainError{SourceType: sourceType}
	for _, strategy := range r.Chain(sourceType) {
		if ctx.Err() != nil {
			chainErr.Failures = append(chainErr.Failures, Failure{Strategy: strategy.Name(), Err: ctx.Err()})
			break
		}
		if !strategy.CanHandle(u) {
			chainErr.Failures = append(chainErr.Failures, Failure{Strategy: strategy.Name(), Err: errNotApplicable})
			continue
		}

		start := time.Now()
		content, err := strategy.Attempt(ctx, u)
		if err != nil {
			metrics.ObserveStrategy(strategy.Name(), "failure", time.Since(start))
			r.logger.Warn("strategy failed",
				zap.String("strategy", strategy.Name()),
				zap.String("url", rawURL),
				zap.Error(err),
			)
			chainErr.Failures = append(chainErr.Failures, Failure{Strategy: strategy.Name(), Err: err})
			continue
		}

		metrics.ObserveStrategy(strategy.Name(), "success", time.Since(start))
		r.logger.Debug("strategy succeeded",
			zap.String("strategy", strategy.Name()),
			zap.String("url", rawURL),
		)
		if content.PlatformData == nil {
			content.PlatformData = map[string]any{}
		}
		content.PlatformData["strategy"] = strategy.Name()
		return content, nil
	}
	return capture.ExtractedContent{}, chainErr
}
