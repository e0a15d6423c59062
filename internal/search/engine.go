// Package search answers free-text queries over completed captures.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/content-capture/internal/capture"
	"github.com/JakeFAU/content-capture/internal/metrics"
)

// Score weights.
const (
	titleWeight       = 25
	descriptionWeight = 15
	summaryWeight     = 10
	topicWeight       = 5
)

// Config tunes the engine.
type Config struct {
	// CandidateLimit bounds how many records are pulled from the store before re-ranking.
	CandidateLimit  int
	DefaultPageSize int
	MaxPageSize     int
}

// Query is one search request. Page is 1-based.
type Query struct {
	Text     string
	Page     int
	PageSize int
}

// Hit is a scored record.
type Hit struct {
	Record capture.Record `json:"record"`
	Score  int            `json:"score"`
}

// Results is one page of hits.
type Results struct {
	Hits     []Hit  `json:"hits"`
	Total    int    `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
	Intent   Intent `json:"intent"`
	// Degraded is set when the query intent came from the keyword fallback.
	Degraded bool `json:"degraded"`
}

// Engine runs intent extraction, candidate retrieval, and scoring.
type Engine struct {
	store     capture.RecordStore
	generator capture.TextGenerator
	cfg       Config
	logger    *zap.Logger
}

// New builds an Engine. generator may be nil.
func New(cfg Config, store capture.RecordStore, generator capture.TextGenerator, logger *zap.Logger) *Engine {
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 100
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 20
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, generator: generator, cfg: cfg, logger: logger}
}

// Search returns the requested page of scored completed captures.
func (e *Engine) Search(ctx context.Context, q Query) (Results, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	size := q.PageSize
	if size <= 0 {
		size = e.cfg.DefaultPageSize
	}
	if size > e.cfg.MaxPageSize {
		size = e.cfg.MaxPageSize
	}

	intent, degraded := e.intent(ctx, q.Text)

	listed, err := e.store.List(ctx, capture.ListFilter{
		Keywords:     intent.Keywords,
		SourceTypes:  intent.SourceTypes,
		ContentTypes: intent.ContentTypes,
		Status:       capture.StatusComplete,
		Limit:        e.cfg.CandidateLimit,
	})
	if err != nil {
		return Results{}, fmt.Errorf("list candidates: %w", err)
	}

	hits := Rank(listed.Records, intent)
	total := listed.Total
	if len(hits) > total {
		total = len(hits)
	}

	start, end := pageBounds(page, size, len(hits))
	return Results{
		Hits:     hits[start:end],
		Total:    total,
		Page:     page,
		PageSize: size,
		Intent:   intent,
		Degraded: degraded,
	}, nil
}

// pageBounds returns the slice window for a 1-based page. Pages past the end yield an
// empty window; the comparison runs before multiplying so huge pages cannot overflow.
func pageBounds(page, size, n int) (int, int) {
	if page-1 >= (n+size-1)/size {
		return n, n
	}
	start := (page - 1) * size
	return start, min(start+size, n)
}

func (e *Engine) intent(ctx context.Context, text string) (Intent, bool) {
	if e.generator == nil {
		return fallbackIntent(text), true
	}
	raw, err := e.generator.Generate(ctx, intentSystemPrompt(), "Query: "+text)
	if err == nil {
		var intent Intent
		if intent, err = parseIntent(raw); err == nil {
			return intent, false
		}
	}
	metrics.ObserveDegradation("search_intent")
	e.logger.Warn("search intent degraded to keyword fallback", zap.String("query", text), zap.Error(err))
	return fallbackIntent(text), true
}

// Rank scores candidates in store order and sorts them by descending score, keeping
// store order among ties.
func Rank(candidates []capture.Record, intent Intent) []Hit {
	hits := make([]Hit, len(candidates))
	for i, rec := range candidates {
		hits[i] = Hit{Record: rec, Score: score(len(candidates)-i, rec, intent)}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	return hits
}

func score(base int, rec capture.Record, intent Intent) int {
	title := strings.ToLower(rec.Title)
	description := strings.ToLower(rec.Description)
	summary := strings.ToLower(rec.Summary)

	total := base
	for _, kw := range intent.Keywords {
		kw = strings.ToLower(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(title, kw) {
			total += titleWeight
		}
		if strings.Contains(description, kw) {
			total += descriptionWeight
		}
		if strings.Contains(summary, kw) {
			total += summaryWeight
		}
	}
	for _, topic := range intent.Topics {
		for _, have := range rec.Topics {
			if strings.EqualFold(topic, have) {
				total += topicWeight
			}
		}
	}
	return total
}
