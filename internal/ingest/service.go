// Package ingest accepts capture submissions and queues them for processing.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/content-capture/internal/capture"
	"github.com/JakeFAU/content-capture/internal/normalize"
)

// ErrNotRetryable is returned by Reset for a record that is not in the failed state.
var ErrNotRetryable = errors.New("capture is not in failed state")

// Request is one capture submission.
type Request struct {
	URL     string
	Notes   string
	Channel *capture.ChannelContext
}

// Service creates pending records and enqueues them.
type Service struct {
	store     capture.RecordStore
	publisher capture.Publisher
	ids       capture.IDGenerator
	clock     capture.Clock
	logger    *zap.Logger
}

// New constructs a Service.
func New(
	store capture.RecordStore,
	publisher capture.Publisher,
	ids capture.IDGenerator,
	clock capture.Clock,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, publisher: publisher, ids: ids, clock: clock, logger: logger}
}

// Submit normalizes the URL, rejects duplicates, inserts a pending record, and publishes it.
// An invalid URL wraps capture.ErrInvalidURL; a known URL returns *capture.DuplicateError.
func (s *Service) Submit(ctx context.Context, req Request) (capture.Record, error) {
	sourceURL, sourceType, err := normalize.Resolve(req.URL)
	if err != nil {
		return capture.Record{}, err
	}

	existing, err := s.store.GetByURL(ctx, sourceURL)
	switch {
	case err == nil:
		return capture.Record{}, &capture.DuplicateError{URL: sourceURL, ExistingID: existing.ID}
	case !errors.Is(err, capture.ErrNotFound):
		return capture.Record{}, fmt.Errorf("check duplicate: %w", err)
	}

	id, err := s.ids.NewID()
	if err != nil {
		return capture.Record{}, err
	}
	now := s.clock.Now()
	record := capture.Record{
		ID:           id,
		SourceURL:    sourceURL,
		SourceType:   sourceType,
		Status:       capture.StatusPending,
		Images:       []capture.MediaAsset{},
		Videos:       []capture.VideoAsset{},
		Topics:       []string{},
		Disciplines:  []string{},
		UseCases:     []string{},
		PlatformData: map[string]any{},
		Notes:        strings.TrimSpace(req.Notes),
		Channel:      req.Channel,
		CapturedAt:   now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// The store's unique index also catches a duplicate that raced past the lookup.
	if err := s.store.Insert(ctx, record); err != nil {
		var dup *capture.DuplicateError
		if errors.As(err, &dup) {
			return capture.Record{}, err
		}
		return capture.Record{}, fmt.Errorf("insert capture: %w", err)
	}

	if err := s.enqueue(ctx, record); err != nil {
		s.markUnqueued(ctx, record, err)
		return capture.Record{}, err
	}
	s.logger.Info("capture submitted",
		zap.String("capture_id", record.ID),
		zap.String("url", record.SourceURL),
		zap.String("source_type", string(record.SourceType)),
	)
	return record, nil
}

// Reset moves a failed record back to pending and enqueues it again. The next run fully
// replaces the record's derived fields.
func (s *Service) Reset(ctx context.Context, id string) (capture.Record, error) {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return capture.Record{}, fmt.Errorf("load capture: %w", err)
	}
	if record.Status != capture.StatusFailed {
		return capture.Record{}, fmt.Errorf("%w: status is %s", ErrNotRetryable, record.Status)
	}

	record.Status = capture.StatusPending
	record.ErrorMessage = ""
	record.UpdatedAt = s.clock.Now()
	if err := s.store.Update(ctx, record); err != nil {
		return capture.Record{}, fmt.Errorf("reset capture: %w", err)
	}
	if err := s.enqueue(ctx, record); err != nil {
		s.markUnqueued(ctx, record, err)
		return capture.Record{}, err
	}
	s.logger.Info("capture reset", zap.String("capture_id", record.ID))
	return record, nil
}

// Get returns a record by ID.
func (s *Service) Get(ctx context.Context, id string) (capture.Record, error) {
	return s.store.Get(ctx, id)
}

// markUnqueued fails a record whose queue message was never published so Reset can
// recover it; a pending record without a message would never be processed.
func (s *Service) markUnqueued(ctx context.Context, record capture.Record, cause error) {
	record.Status = capture.StatusFailed
	record.ErrorMessage = cause.Error()
	record.UpdatedAt = s.clock.Now()
	if err := s.store.Update(context.WithoutCancel(ctx), record); err != nil {
		s.logger.Error("mark unqueued capture failed",
			zap.String("capture_id", record.ID), zap.Error(err), zap.NamedError("cause", cause))
	}
}

func (s *Service) enqueue(ctx context.Context, record capture.Record) error {
	msgID, err := s.publisher.Publish(ctx, capture.QueueMessage{
		CaptureID:  record.ID,
		URL:        record.SourceURL,
		SourceType: record.SourceType,
		Notes:      record.Notes,
		Channel:    record.Channel,
	})
	if err != nil {
		return fmt.Errorf("enqueue capture %s: %w", record.ID, err)
	}
	s.logger.Debug("capture enqueued", zap.String("capture_id", record.ID), zap.String("message_id", msgID))
	return nil
}
