package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/content-capture/internal/capture"
	"github.com/JakeFAU/content-capture/internal/ingest"
	"github.com/JakeFAU/content-capture/internal/search"
)

type fakeCaptures struct {
	submitted []ingest.Request
	submitErr error
	records   map[string]capture.Record
	resetErr  error
}

func (f *fakeCaptures) Submit(_ context.Context, req ingest.Request) (capture.Record, error) {
	if f.submitErr != nil {
		return capture.Record{}, f.submitErr
	}
	f.submitted = append(f.submitted, req)
	return capture.Record{ID: "cap-1", Status: capture.StatusPending, SourceType: capture.SourceWeb}, nil
}

func (f *fakeCaptures) Reset(_ context.Context, id string) (capture.Record, error) {
	if f.resetErr != nil {
		return capture.Record{}, f.resetErr
	}
	rec, ok := f.records[id]
	if !ok {
		return capture.Record{}, capture.ErrNotFound
	}
	rec.Status = capture.StatusPending
	return rec, nil
}

func (f *fakeCaptures) Get(_ context.Context, id string) (capture.Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return capture.Record{}, capture.ErrNotFound
	}
	return rec, nil
}

type fakeSearcher struct {
	got     search.Query
	results search.Results
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, q search.Query) (search.Results, error) {
	f.got = q
	return f.results, f.err
}

func newHandler(captures *fakeCaptures, searcher *fakeSearcher, cfg Config) http.Handler {
	return NewServer(captures, searcher, nil, cfg, nil).Handler()
}

func do(h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSubmitCapture(t *testing.T) {
	t.Parallel()

	captures := &fakeCaptures{}
	h := newHandler(captures, &fakeSearcher{}, Config{})

	rec := do(h, http.MethodPost, "/v1/captures",
		`{"url":"https://example.com/a","notes":"read later","channelContext":{"channelId":"C1"}}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	body := decode(t, rec)
	assert.Equal(t, "cap-1", body["id"])
	assert.Equal(t, "pending", body["status"])

	require.Len(t, captures.submitted, 1)
	assert.Equal(t, "https://example.com/a", captures.submitted[0].URL)
	assert.Equal(t, "read later", captures.submitted[0].Notes)
	require.NotNil(t, captures.submitted[0].Channel)
	assert.Equal(t, "C1", captures.submitted[0].Channel.ChannelID)
}

func TestSubmitCaptureErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{name: "bad json", body: `{`, status: http.StatusBadRequest},
		{name: "invalid url", body: `{"url":"ftp://x"}`, err: capture.ErrInvalidURL, status: http.StatusBadRequest},
		{
			name:   "duplicate",
			body:   `{"url":"https://example.com/a"}`,
			err:    &capture.DuplicateError{URL: "https://example.com/a", ExistingID: "cap-0"},
			status: http.StatusConflict,
		},
		{name: "store down", body: `{"url":"https://example.com/a"}`, err: errors.New("boom"), status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHandler(&fakeCaptures{submitErr: tt.err}, &fakeSearcher{}, Config{})
			rec := do(h, http.MethodPost, "/v1/captures", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			assert.NotEmpty(t, body["error"])
			if tt.status == http.StatusConflict {
				assert.Equal(t, "cap-0", body["existingId"])
			}
		})
	}
}

func TestGetCapture(t *testing.T) {
	t.Parallel()

	captures := &fakeCaptures{records: map[string]capture.Record{
		"cap-1": {ID: "cap-1", Title: "Queues", Status: capture.StatusComplete},
	}}
	h := newHandler(captures, &fakeSearcher{}, Config{})

	rec := do(h, http.MethodGet, "/v1/captures/cap-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Queues", decode(t, rec)["title"])

	rec = do(h, http.MethodGet, "/v1/captures/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRetryCapture(t *testing.T) {
	t.Parallel()

	captures := &fakeCaptures{records: map[string]capture.Record{
		"cap-1": {ID: "cap-1", Status: capture.StatusFailed},
	}}
	h := newHandler(captures, &fakeSearcher{}, Config{})

	rec := do(h, http.MethodPost, "/v1/captures/cap-1/retry", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "pending", decode(t, rec)["status"])

	rec = do(h, http.MethodPost, "/v1/captures/missing/retry", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	captures.resetErr = ingest.ErrNotRetryable
	rec = do(h, http.MethodPost, "/v1/captures/cap-1/retry", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSearch(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{results: search.Results{
		Hits:     []search.Hit{{Record: capture.Record{ID: "cap-1"}, Score: 30}},
		Total:    1,
		Page:     2,
		PageSize: 5,
	}}
	h := newHandler(&fakeCaptures{}, searcher, Config{})

	rec := do(h, http.MethodGet, "/v1/search?q=distributed+queues&page=2&page_size=5", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, search.Query{Text: "distributed queues", Page: 2, PageSize: 5}, searcher.got)

	for _, path := range []string{"/v1/search", "/v1/search?q=x&page=two", "/v1/search?q=x&page_size=z"} {
		rec := do(h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}

	searcher.err = errors.New("store down")
	rec = do(h, http.MethodGet, "/v1/search?q=x", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	captures := &fakeCaptures{records: map[string]capture.Record{"cap-1": {ID: "cap-1"}}}
	h := newHandler(captures, &fakeSearcher{}, Config{APIKey: "secret"})

	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/v1/captures/cap-1", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/v1/captures/cap-1", "", "X-API-Key", "wrong").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/v1/captures/cap-1", "", "X-API-Key", "secret").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/healthz", "").Code)
}

func TestRequestIDIsPropagated(t *testing.T) {
	t.Parallel()

	h := newHandler(&fakeCaptures{}, &fakeSearcher{}, Config{})
	rec := do(h, http.MethodGet, "/healthz", "", "X-Request-ID", "req-42")
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	var dbErr error
	checks := map[string]ReadinessCheck{
		"db": func(context.Context) error { return dbErr },
	}
	h := NewServer(&fakeCaptures{}, &fakeSearcher{}, checks, Config{}, nil).Handler()

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/readyz", "").Code)

	dbErr = errors.New("connection refused")
	rec := do(h, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	failures, ok := decode(t, rec)["failures"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "connection refused", failures["db"])
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	h := newHandler(&fakeCaptures{}, &fakeSearcher{}, Config{})
	rec := do(h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	h := recoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := do(h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
