package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/content-capture/internal/capture"
)

var columnNames = []string{
	"id", "source_url", "source_type", "status", "error_message", "title", "description", "body_text",
	"author_name", "author_handle", "published_at", "images", "videos", "screenshot", "summary", "topics",
	"disciplines", "use_cases", "content_type", "platform_data", "notes", "channel", "captured_at",
	"processed_at", "created_at", "updated_at",
}

func newMockStore(t *testing.T) (*RecordStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewWithPool(mock)
	require.NoError(t, err)
	return store, mock
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func completeRow(now time.Time) []any {
	processed := now.Add(time.Minute)
	return []any{
		"cap-1", "https://example.com/a", "web", "complete", "", "Title", "Desc", "Body",
		"Ada", "ada", (*time.Time)(nil),
		[]byte(`[{"originalUrl":"https://img.test/a.png","publicUrl":"https://cdn.test/a.png","width":800}]`),
		[]byte(`[]`),
		[]byte(`{"originalUrl":"inline","publicUrl":"https://cdn.test/s.png"}`),
		"Summary", []string{"AI"}, []string{"Engineering"}, []string{"Learning"}, "article",
		[]byte(`{"strategy":"generic"}`), "notes", []byte(nil),
		now, &processed, now, now,
	}
}

func TestGetScansRecord(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	mock.ExpectQuery("FROM captures WHERE id = \\$1").
		WithArgs("cap-1").
		WillReturnRows(pgxmock.NewRows(columnNames).AddRow(completeRow(now)...))

	rec, err := store.Get(context.Background(), "cap-1")
	require.NoError(t, err)
	assert.Equal(t, capture.SourceWeb, rec.SourceType)
	assert.Equal(t, capture.StatusComplete, rec.Status)
	assert.Equal(t, capture.ContentArticle, rec.ContentType)
	require.Len(t, rec.Images, 1)
	assert.Equal(t, "https://cdn.test/a.png", rec.Images[0].PublicURL)
	assert.Equal(t, 800, rec.Images[0].Width)
	assert.NotNil(t, rec.Videos)
	require.NotNil(t, rec.Screenshot)
	assert.Equal(t, "https://cdn.test/s.png", rec.Screenshot.PublicURL)
	assert.Nil(t, rec.Channel)
	assert.Nil(t, rec.PublishedAt)
	require.NotNil(t, rec.ProcessedAt)
	assert.Equal(t, now.Add(time.Minute), *rec.ProcessedAt)
	assert.Equal(t, "generic", rec.PlatformData["strategy"])
	assert.Equal(t, []string{"Engineering"}, rec.Disciplines)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM captures WHERE id = \\$1").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(columnNames))

	_, err := store.Get(context.Background(), "missing")
	require.ErrorIs(t, err, capture.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Now().UTC()
	rec := capture.Record{
		ID:         "cap-1",
		SourceURL:  "https://example.com/a",
		SourceType: capture.SourceWeb,
		Status:     capture.StatusPending,
		Channel:    &capture.ChannelContext{ChannelID: "C1"},
		CapturedAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	args := anyArgs(26)
	args[0] = "cap-1"
	args[1] = "https://example.com/a"
	args[2] = "web"
	args[3] = "pending"
	args[11] = []byte(`[]`)
	args[15] = []string{}
	args[21] = []byte(`{"channelId":"C1"}`)
	mock.ExpectExec("INSERT INTO captures").
		WithArgs(args...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Insert(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDuplicate(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO captures").
		WithArgs(anyArgs(26)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("FROM captures WHERE source_url = \\$1").
		WithArgs("https://example.com/a").
		WillReturnRows(pgxmock.NewRows(columnNames).AddRow(completeRow(now)...))

	err := store.Insert(context.Background(), capture.Record{ID: "cap-2", SourceURL: "https://example.com/a"})
	require.ErrorIs(t, err, capture.ErrDuplicate)
	var dup *capture.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "cap-1", dup.ExistingID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE captures SET").
		WithArgs(anyArgs(26)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE captures SET").
		WithArgs(anyArgs(26)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, store.Update(context.Background(), capture.Record{ID: "cap-1", Status: capture.StatusProcessing}))
	err := store.Update(context.Background(), capture.Record{ID: "gone"})
	require.ErrorIs(t, err, capture.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Now().UTC()
	filter := capture.ListFilter{
		Keywords:    []string{"go_lang", "100%"},
		SourceTypes: []capture.SourceType{capture.SourceWeb},
		Status:      capture.StatusComplete,
		Limit:       10,
		Offset:      5,
	}

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM captures WHERE status = \\$1 AND source_type = ANY\\(\\$2\\) AND \\(title ILIKE \\$3").
		WithArgs("complete", []string{"web"}, `%go\_lang%`, `%100\%%`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery("ORDER BY created_at DESC, id LIMIT \\$5 OFFSET \\$6").
		WithArgs("complete", []string{"web"}, `%go\_lang%`, `%100\%%`, 10, 5).
		WillReturnRows(pgxmock.NewRows(columnNames).AddRow(completeRow(now)...))

	res, err := store.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Total)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "cap-1", res.Records[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildWhereEmpty(t *testing.T) {
	t.Parallel()

	where, args := buildWhere(capture.ListFilter{Keywords: []string{"  "}})
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestMigrateAndPing(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS captures").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT 1").WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.ErrorContains(t, err, "dsn")
	_, err = NewWithPool(nil)
	require.Error(t, err)
}
