// Package pipeline runs one capture from claim to persisted record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/content-capture/internal/capture"
	"github.com/JakeFAU/content-capture/internal/categorize"
	"github.com/JakeFAU/content-capture/internal/media"
	"github.com/JakeFAU/content-capture/internal/metrics"
	"github.com/JakeFAU/content-capture/internal/progress"
)

// OutcomeKind is the terminal result of processing one message.
type OutcomeKind string

// Outcome kinds. Only Failed asks for redelivery.
const (
	Completed OutcomeKind = "completed"
	Failed    OutcomeKind = "failed"
	Skipped   OutcomeKind = "skipped"
)

// Outcome reports how a message was handled.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
}

// Scraper resolves extracted content for a URL.
type Scraper interface {
	Resolve(ctx context.Context, sourceType capture.SourceType, rawURL string) (capture.ExtractedContent, error)
}

// Materializer re-hosts media referenced by extracted content.
type Materializer interface {
	Materialize(ctx context.Context, captureID string, content capture.ExtractedContent) media.Result
}

// Categorizer classifies extracted content.
type Categorizer interface {
	Categorize(ctx context.Context, in categorize.Input) (capture.Categorization, bool)
}

// Config tunes the processor.
type Config struct {
	// MinThumbnailPx is the smallest side a preferred thumbnail may have.
	MinThumbnailPx int
	// Events receives lifecycle milestones. Nil disables them.
	Events progress.Emitter
}

// Processor drives a capture record through its lifecycle.
type Processor struct {
	store        capture.RecordStore
	scraper      Scraper
	materializer Materializer
	categorizer  Categorizer
	clock        capture.Clock
	cfg          Config
	logger       *zap.Logger
}

// New constructs a Processor.
func New(
	store capture.RecordStore,
	scraper Scraper,
	materializer Materializer,
	categorizer Categorizer,
	clock capture.Clock,
	cfg Config,
	logger *zap.Logger,
) *Processor {
	if cfg.MinThumbnailPx <= 0 {
		cfg.MinThumbnailPx = 200
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		store:        store,
		scraper:      scraper,
		materializer: materializer,
		categorizer:  categorizer,
		clock:        clock,
		cfg:          cfg,
		logger:       logger,
	}
}

// Process handles one queue message. A record that is already complete is processed
// again and fully replaced.
func (p *Processor) Process(ctx context.Context, msg capture.QueueMessage) Outcome {
	outcome := p.process(ctx, msg)
	metrics.ObserveOutcome(string(outcome.Kind))
	return outcome
}

func (p *Processor) process(ctx context.Context, msg capture.QueueMessage) Outcome {
	logger := p.logger.With(zap.String("capture_id", msg.CaptureID))

	record, err := p.store.Get(ctx, msg.CaptureID)
	if errors.Is(err, capture.ErrNotFound) {
		logger.Warn("capture record missing; dropping message")
		return Outcome{Kind: Skipped, Reason: "record not found"}
	}
	if err != nil {
		logger.Error("load capture failed", zap.Error(err))
		return Outcome{Kind: Failed, Reason: fmt.Sprintf("load record: %v", err)}
	}
	logger = logger.With(zap.String("url", record.SourceURL), zap.String("source_type", string(record.SourceType)))

	started := p.clock.Now()
	record.Status = capture.StatusProcessing
	record.UpdatedAt = started
	if err := p.store.Update(ctx, record); err != nil {
		logger.Error("claim capture failed", zap.Error(err))
		return Outcome{Kind: Failed, Reason: fmt.Sprintf("claim record: %v", err)}
	}
	stage := newStageTimer(p, record, started)
	stage.emit(progress.StageClaimed, false, "")

	content, err := p.scraper.Resolve(ctx, record.SourceType, record.SourceURL)
	if err != nil {
		logger.Warn("scrape failed", zap.Error(err))
		record.Status = capture.StatusFailed
		record.ErrorMessage = err.Error()
		record.UpdatedAt = p.clock.Now()
		if uerr := p.store.Update(ctx, record); uerr != nil {
			logger.Error("persist failed status", zap.Error(uerr))
		}
		stage.finish(progress.StageFailed, err.Error())
		return Outcome{Kind: Failed, Reason: err.Error()}
	}
	stage.strategy = strategyOf(content)
	stage.emit(progress.StageScraped, false, "")

	materialized := p.materializer.Materialize(ctx, record.ID, content)
	content.Images = materialized.Images
	content.Videos = materialized.Videos
	stage.emit(progress.StageMaterialized, materialized.Degraded > 0, "")

	categorization, degraded := p.categorizer.Categorize(ctx, categorize.Input{
		SourceType: record.SourceType,
		URL:        record.SourceURL,
		Content:    content,
		Notes:      record.Notes,
	})
	stage.emit(progress.StageCategorized, degraded, "")

	enriched := p.enrich(record, content, materialized, categorization)
	if err := p.store.Update(ctx, enriched); err != nil {
		logger.Error("persist capture failed", zap.Error(err))
		stage.finish(progress.StageFailed, err.Error())
		return Outcome{Kind: Failed, Reason: fmt.Sprintf("persist record: %v", err)}
	}
	stage.finish(progress.StageCompleted, "")

	logger.Info("capture complete",
		zap.String("strategy", stage.strategy),
		zap.Int("images", len(enriched.Images)),
		zap.Int("media_degraded", materialized.Degraded),
		zap.Bool("categorization_degraded", degraded),
	)
	return Outcome{Kind: Completed}
}

// enrich builds the complete record from the claimed one. Every derived field is replaced.
func (p *Processor) enrich(
	record capture.Record,
	content capture.ExtractedContent,
	materialized media.Result,
	cat capture.Categorization,
) capture.Record {
	now := p.clock.Now()

	platformData := make(map[string]any, len(content.PlatformData)+1)
	for k, v := range content.PlatformData {
		platformData[k] = v
	}
	if thumb, ok := media.SelectThumbnail(materialized.Images, p.cfg.MinThumbnailPx); ok {
		platformData["thumbnail_url"] = thumb.URL()
	}

	record.Status = capture.StatusComplete
	record.ErrorMessage = ""
	record.Title = content.Title
	record.Description = content.Description
	record.BodyText = content.BodyText
	record.AuthorName = content.AuthorName
	record.AuthorHandle = content.AuthorHandle
	record.PublishedAt = content.PublishedAt
	record.Images = nonNilImages(materialized.Images)
	record.Videos = nonNilVideos(materialized.Videos)
	record.Screenshot = materialized.Screenshot
	record.Summary = cat.Summary
	record.Topics = cat.Topics
	record.Disciplines = []string{cat.Discipline}
	record.UseCases = cat.UseCases
	record.ContentType = cat.ContentType
	record.PlatformData = platformData
	record.ProcessedAt = &now
	record.UpdatedAt = now
	return record
}

// stageTimer emits lifecycle events with the time spent since the previous one.
type stageTimer struct {
	p        *Processor
	record   capture.Record
	started  time.Time
	last     time.Time
	strategy string
}

func newStageTimer(p *Processor, record capture.Record, started time.Time) *stageTimer {
	return &stageTimer{p: p, record: record, started: started, last: started}
}

func (s *stageTimer) emit(stage progress.Stage, degraded bool, note string) {
	now := s.p.clock.Now()
	s.send(stage, degraded, now.Sub(s.last), note)
	s.last = now
}

// finish emits a terminal event whose duration spans the whole run.
func (s *stageTimer) finish(stage progress.Stage, note string) {
	s.send(stage, false, s.p.clock.Now().Sub(s.started), note)
}

func (s *stageTimer) send(stage progress.Stage, degraded bool, dur time.Duration, note string) {
	if s.p.cfg.Events == nil {
		return
	}
	s.p.cfg.Events.Emit(progress.Event{
		CaptureID:  s.record.ID,
		TS:         s.p.clock.Now(),
		Stage:      stage,
		SourceType: s.record.SourceType,
		Strategy:   s.strategy,
		Degraded:   degraded,
		Dur:        max(dur, 0),
		Note:       note,
	})
}

func strategyOf(content capture.ExtractedContent) string {
	if name, ok := content.PlatformData["strategy"].(string); ok && name != "" {
		return name
	}
	return "unknown"
}

func nonNilImages(images []capture.MediaAsset) []capture.MediaAsset {
	if images == nil {
		return []capture.MediaAsset{}
	}
	return images
}

func nonNilVideos(videos []capture.VideoAsset) []capture.VideoAsset {
	if videos == nil {
		return []capture.VideoAsset{}
	}
	return videos
}
