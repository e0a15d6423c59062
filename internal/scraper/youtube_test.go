package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/content-capture/internal/httpclient"
)

func TestYouTubeVideoID(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ": "dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ":                "dQw4w9WgXcQ",
		"https://youtube.com/shorts/abc123":           "abc123",
		"https://m.youtube.com/watch?v=xyz&t=42":      "xyz",
		"https://www.youtube.com/embed/e1":            "e1",
		"https://www.youtube.com/@channel":            "",
		"https://youtu.be/":                           "",
		"https://example.com/watch?v=dQw4w9WgXcQ":     "",
	}
	for raw, want := range cases {
		require.Equal(t, want, youTubeVideoID(mustParse(t, raw)), raw)
	}
}

const watchPage = `<html><head>
<meta property="og:title" content="Page Title">
<meta property="og:description" content="A talk about queues.">
</head><body></body></html>`

func oEmbedServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "json", r.URL.Query().Get("format"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestYouTubeAttemptCombinesSources(t *testing.T) {
	t.Parallel()

	srv := oEmbedServer(t, http.StatusOK, `{"title":"Queues at Scale","author_name":"Conf Talks",
		"author_url":"https://www.youtube.com/@conftalks","thumbnail_url":"https://i.ytimg.com/vi/abc/hqdefault.jpg",
		"thumbnail_width":480,"thumbnail_height":360}`)
	fetcher := &stubFetcher{pages: map[string]string{"https://youtu.be/abc": watchPage}}
	s := NewYouTube(YouTubeConfig{OEmbedURL: srv.URL}, httpclient.New(), fetcher)

	content, err := s.Attempt(context.Background(), mustParse(t, "https://youtu.be/abc"))
	require.NoError(t, err)
	require.Equal(t, "Queues at Scale", content.Title)
	require.Equal(t, "A talk about queues.", content.Description)
	require.Equal(t, "Conf Talks", content.AuthorName)
	require.Equal(t, "@conftalks", content.AuthorHandle)
	require.Equal(t, "abc", content.PlatformData["video_id"])
	require.Equal(t, "https://www.youtube.com/embed/abc", content.PlatformData["embed_url"])
	require.Len(t, content.Images, 1)
	require.Equal(t, 480, content.Images[0].Width)
	require.Len(t, content.Videos, 1)
	require.Equal(t, "https://i.ytimg.com/vi/abc/hqdefault.jpg", content.Videos[0].Thumbnail)
}

func TestYouTubeAttemptToleratesOneFailure(t *testing.T) {
	t.Parallel()

	srv := oEmbedServer(t, http.StatusUnauthorized, `Unauthorized`)
	fetcher := &stubFetcher{pages: map[string]string{"https://www.youtube.com/watch?v=abc": watchPage}}
	s := NewYouTube(YouTubeConfig{OEmbedURL: srv.URL}, httpclient.New(), fetcher)

	content, err := s.Attempt(context.Background(), mustParse(t, "https://www.youtube.com/watch?v=abc"))
	require.NoError(t, err)
	require.Equal(t, "Page Title", content.Title)
	require.Contains(t, content.PlatformData, "oembed_error")
	require.Equal(t, "https://i.ytimg.com/vi/abc/hqdefault.jpg", content.Images[0].OriginalURL)
}

func TestYouTubeAttemptFailsWhenBothFail(t *testing.T) {
	t.Parallel()

	srv := oEmbedServer(t, http.StatusNotFound, `Not Found`)
	s := NewYouTube(YouTubeConfig{OEmbedURL: srv.URL}, httpclient.New(), &stubFetcher{err: errors.New("status 429")})

	_, err := s.Attempt(context.Background(), mustParse(t, "https://www.youtube.com/watch?v=abc"))
	require.ErrorContains(t, err, "oembed")
	require.ErrorContains(t, err, "page")
}
