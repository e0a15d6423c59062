package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/content-capture/internal/capture"
)

func seed(t *testing.T, store *RecordStore, records ...capture.Record) {
	t.Helper()
	for _, r := range records {
		require.NoError(t, store.Insert(context.Background(), r))
	}
}

func TestRecordStoreInsertGetUpdate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := NewRecordStore()
	rec := capture.Record{ID: "1", SourceURL: "https://a.test/", Status: capture.StatusPending, Topics: []string{"AI"}}
	seed(t, store, rec)

	got, err := store.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	got.Topics[0] = "mutated"
	again, err := store.GetByURL(ctx, "https://a.test/")
	require.NoError(t, err)
	assert.Equal(t, "AI", again.Topics[0])

	again.Status = capture.StatusComplete
	require.NoError(t, store.Update(ctx, again))
	got, err = store.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, capture.StatusComplete, got.Status)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, capture.ErrNotFound)
	_, err = store.GetByURL(ctx, "https://missing.test/")
	assert.ErrorIs(t, err, capture.ErrNotFound)
	assert.ErrorIs(t, store.Update(ctx, capture.Record{ID: "missing"}), capture.ErrNotFound)
}

func TestRecordStoreRejectsDuplicateURL(t *testing.T) {
	t.Parallel()

	store := NewRecordStore()
	seed(t, store, capture.Record{ID: "1", SourceURL: "https://a.test/"})

	err := store.Insert(context.Background(), capture.Record{ID: "2", SourceURL: "https://a.test/"})
	require.ErrorIs(t, err, capture.ErrDuplicate)
	var dup *capture.DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "1", dup.ExistingID)
}

func TestRecordStoreList(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store := NewRecordStore()
	seed(t, store,
		capture.Record{ID: "old", SourceURL: "u1", Status: capture.StatusComplete, Title: "Go Generics",
			SourceType: capture.SourceWeb, ContentType: capture.ContentArticle, CreatedAt: base},
		capture.Record{ID: "new", SourceURL: "u2", Status: capture.StatusComplete, BodyText: "all about GENERICS",
			SourceType: capture.SourceTwitter, ContentType: capture.ContentPost, CreatedAt: base.Add(time.Hour)},
		capture.Record{ID: "pending", SourceURL: "u3", Status: capture.StatusPending, Title: "generics",
			CreatedAt: base.Add(2 * time.Hour)},
		capture.Record{ID: "other", SourceURL: "u4", Status: capture.StatusComplete, Summary: "cooking",
			SourceType: capture.SourceWeb, CreatedAt: base.Add(3 * time.Hour)},
	)
	ctx := context.Background()

	res, err := store.List(ctx, capture.ListFilter{Keywords: []string{"generics"}, Status: capture.StatusComplete})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "new", res.Records[0].ID)
	assert.Equal(t, "old", res.Records[1].ID)

	res, err = store.List(ctx, capture.ListFilter{Status: capture.StatusComplete, SourceTypes: []capture.SourceType{capture.SourceWeb}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)

	res, err = store.List(ctx, capture.ListFilter{ContentTypes: []capture.ContentType{capture.ContentPost}})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "new", res.Records[0].ID)

	res, err = store.List(ctx, capture.ListFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Total)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "pending", res.Records[0].ID)

	res, err = store.List(ctx, capture.ListFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
}
