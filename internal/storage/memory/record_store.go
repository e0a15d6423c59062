package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/JakeFAU/content-capture/internal/capture"
)

// RecordStore is a capture.RecordStore backed by maps.
type RecordStore struct {
	mu    sync.RWMutex
	byID  map[string]capture.Record
	byURL map[string]string
}

// NewRecordStore constructs an empty store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		byID:  make(map[string]capture.Record),
		byURL: make(map[string]string),
	}
}

// Get returns the record with id.
func (s *RecordStore) Get(_ context.Context, id string) (capture.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return capture.Record{}, capture.ErrNotFound
	}
	return clone(rec), nil
}

// GetByURL returns the record whose normalized source URL is sourceURL.
func (s *RecordStore) GetByURL(_ context.Context, sourceURL string) (capture.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byURL[sourceURL]
	if !ok {
		return capture.Record{}, capture.ErrNotFound
	}
	return clone(s.byID[id]), nil
}

// Insert adds a new record. A second record for the same source URL is rejected.
func (s *RecordStore) Insert(_ context.Context, record capture.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byURL[record.SourceURL]; ok {
		return &capture.DuplicateError{URL: record.SourceURL, ExistingID: existing}
	}
	s.byID[record.ID] = clone(record)
	s.byURL[record.SourceURL] = record.ID
	return nil
}

// Update replaces an existing record.
func (s *RecordStore) Update(_ context.Context, record capture.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[record.ID]; !ok {
		return capture.ErrNotFound
	}
	s.byID[record.ID] = clone(record)
	return nil
}

// List returns matching records, newest first.
func (s *RecordStore) List(_ context.Context, filter capture.ListFilter) (capture.ListResult, error) {
	s.mu.RLock()
	var matched []capture.Record
	for _, rec := range s.byID {
		if matches(rec, filter) {
			matched = append(matched, clone(rec))
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	start := filter.Offset
	if start > total {
		start = total
	}
	end := total
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}
	return capture.ListResult{Records: matched[start:end], Total: total}, nil
}

func matches(rec capture.Record, filter capture.ListFilter) bool {
	if filter.Status != "" && rec.Status != filter.Status {
		return false
	}
	if len(filter.SourceTypes) > 0 && !slices.Contains(filter.SourceTypes, rec.SourceType) {
		return false
	}
	if len(filter.ContentTypes) > 0 && !slices.Contains(filter.ContentTypes, rec.ContentType) {
		return false
	}
	if len(filter.Keywords) == 0 {
		return true
	}
	fields := []string{
		strings.ToLower(rec.Title),
		strings.ToLower(rec.Description),
		strings.ToLower(rec.Summary),
		strings.ToLower(rec.BodyText),
	}
	for _, kw := range filter.Keywords {
		kw = strings.ToLower(kw)
		for _, f := range fields {
			if strings.Contains(f, kw) {
				return true
			}
		}
	}
	return false
}

// clone copies the slices and maps of rec so callers cannot mutate stored state.
func clone(rec capture.Record) capture.Record {
	rec.Images = slices.Clone(rec.Images)
	rec.Videos = slices.Clone(rec.Videos)
	rec.Topics = slices.Clone(rec.Topics)
	rec.Disciplines = slices.Clone(rec.Disciplines)
	rec.UseCases = slices.Clone(rec.UseCases)
	rec.PlatformData = maps.Clone(rec.PlatformData)
	if rec.Screenshot != nil {
		shot := *rec.Screenshot
		rec.Screenshot = &shot
	}
	if rec.Channel != nil {
		ch := *rec.Channel
		rec.Channel = &ch
	}
	return rec
}
