package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/content-capture/internal/capture"
	"github.com/JakeFAU/content-capture/internal/storage/memory"
)

type fakePublisher struct {
	messages []capture.QueueMessage
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, msg capture.QueueMessage) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.messages = append(f.messages, msg)
	return "msg-1", nil
}

type seqIDs struct{ n int }

func (s *seqIDs) NewID() (string, error) {
	s.n++
	return "cap-" + string(rune('0'+s.n)), nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var now = time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)

func newService() (*Service, *memory.RecordStore, *fakePublisher) {
	store := memory.NewRecordStore()
	pub := &fakePublisher{}
	return New(store, pub, &seqIDs{}, fixedClock{now}, nil), store, pub
}

func TestSubmitCreatesPendingRecordAndPublishes(t *testing.T) {
	t.Parallel()

	svc, store, pub := newService()
	channel := &capture.ChannelContext{ChannelID: "C1", UserID: "U1"}
	rec, err := svc.Submit(context.Background(), Request{
		URL:     "https://twitter.com/ada/status/123?utm_source=x",
		Notes:   "  thread on queues ",
		Channel: channel,
	})
	require.NoError(t, err)

	assert.Equal(t, "cap-1", rec.ID)
	assert.Equal(t, capture.StatusPending, rec.Status)
	assert.Equal(t, capture.SourceTwitter, rec.SourceType)
	assert.NotContains(t, rec.SourceURL, "utm_source")
	assert.Equal(t, "thread on queues", rec.Notes)
	assert.Equal(t, now, rec.CapturedAt)

	stored, err := store.Get(context.Background(), "cap-1")
	require.NoError(t, err)
	assert.Equal(t, rec, stored)

	require.Len(t, pub.messages, 1)
	msg := pub.messages[0]
	assert.Equal(t, "cap-1", msg.CaptureID)
	assert.Equal(t, rec.SourceURL, msg.URL)
	assert.Equal(t, capture.SourceTwitter, msg.SourceType)
	assert.Equal(t, channel, msg.Channel)
}

func TestSubmitRejectsInvalidURL(t *testing.T) {
	t.Parallel()

	svc, _, pub := newService()
	for _, raw := range []string{"", "ftp://example.com/file", "not a url"} {
		_, err := svc.Submit(context.Background(), Request{URL: raw})
		require.ErrorIs(t, err, capture.ErrInvalidURL, raw)
	}
	assert.Empty(t, pub.messages)
}

func TestSubmitRejectsDuplicateNormalizedURL(t *testing.T) {
	t.Parallel()

	svc, _, pub := newService()
	first, err := svc.Submit(context.Background(), Request{URL: "https://example.com/post"})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), Request{URL: "https://EXAMPLE.com/post?fbclid=abc"})
	require.ErrorIs(t, err, capture.ErrDuplicate)
	var dup *capture.DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, first.ID, dup.ExistingID)
	assert.Len(t, pub.messages, 1)
}

func TestSubmitPublishFailure(t *testing.T) {
	t.Parallel()

	svc, store, pub := newService()
	pub.err = errors.New("topic not found")
	_, err := svc.Submit(context.Background(), Request{URL: "https://example.com/a"})
	require.ErrorContains(t, err, "enqueue capture")

	stored, err := store.Get(context.Background(), "cap-1")
	require.NoError(t, err)
	assert.Equal(t, capture.StatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "topic not found")

	// once the topic is back the capture is recoverable through Reset
	pub.err = nil
	reset, err := svc.Reset(context.Background(), "cap-1")
	require.NoError(t, err)
	assert.Equal(t, capture.StatusPending, reset.Status)
	require.Len(t, pub.messages, 1)
	assert.Equal(t, "cap-1", pub.messages[0].CaptureID)
}

func TestResetPublishFailureLeavesRecordRetryable(t *testing.T) {
	t.Parallel()

	svc, store, pub := newService()
	rec, err := svc.Submit(context.Background(), Request{URL: "https://example.com/a"})
	require.NoError(t, err)
	rec.Status = capture.StatusFailed
	require.NoError(t, store.Update(context.Background(), rec))

	pub.err = errors.New("deadline exceeded")
	_, err = svc.Reset(context.Background(), rec.ID)
	require.ErrorContains(t, err, "deadline exceeded")

	stored, err := store.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, capture.StatusFailed, stored.Status)
}

func TestResetRequeuesFailedRecord(t *testing.T) {
	t.Parallel()

	svc, store, pub := newService()
	rec, err := svc.Submit(context.Background(), Request{URL: "https://example.com/a"})
	require.NoError(t, err)

	_, err = svc.Reset(context.Background(), rec.ID)
	require.ErrorIs(t, err, ErrNotRetryable)

	rec.Status = capture.StatusFailed
	rec.ErrorMessage = "all 1 strategies failed"
	require.NoError(t, store.Update(context.Background(), rec))

	reset, err := svc.Reset(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, capture.StatusPending, reset.Status)
	assert.Empty(t, reset.ErrorMessage)
	require.Len(t, pub.messages, 2)
	assert.Equal(t, rec.ID, pub.messages[1].CaptureID)

	_, err = svc.Reset(context.Background(), "missing")
	require.ErrorIs(t, err, capture.ErrNotFound)
}
