package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

// newTestStore points a storage client at a test server standing in for the GCS JSON API.
func newTestStore(t *testing.T, cfg Config, handler http.Handler) *BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, cfg)
	require.NoError(t, err)
	return store
}

func TestPutObjectUploadsAndReturnsPublicURL(t *testing.T) {
	t.Parallel()

	const bucket = "media-bucket"
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, fmt.Sprintf("/upload/storage/v1/b/%s/o", bucket))
		assert.Equal(t, "captures/captures/c1/images/0.png", r.URL.Query().Get("name"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), "png-bytes")
		assert.Contains(t, string(body), "image/png")
		assert.Contains(t, string(body), DefaultCacheControl)
		assert.NotContains(t, string(body), "immutable")

		fmt.Fprintln(w, `{"name":"captures/captures/c1/images/0.png","bucket":"`+bucket+`"}`)
	})

	store := newTestStore(t, Config{Bucket: bucket, Prefix: "/captures/"}, handler)
	uri, err := store.PutObject(context.Background(), "captures/c1/images/0.png", "image/png", bytes.NewReader([]byte("png-bytes")))
	require.NoError(t, err)
	assert.Equal(t, "https://storage.googleapis.com/media-bucket/captures/captures/c1/images/0.png", uri)
}

func TestPutObjectError(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	store := newTestStore(t, Config{Bucket: "b"}, handler)
	_, err := store.PutObject(context.Background(), "x.png", "image/png", bytes.NewReader([]byte("x")))
	require.Error(t, err)

	_, err = store.PutObject(context.Background(), "/", "", bytes.NewReader(nil))
	require.ErrorContains(t, err, "path is required")
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close()
	_, err = New(client, Config{})
	require.ErrorContains(t, err, "bucket")

	store, err := New(client, Config{Bucket: "b", PublicBaseURL: "https://cdn.example.com/"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a%20b/c.png", store.publicURL("a b/c.png"))
}
