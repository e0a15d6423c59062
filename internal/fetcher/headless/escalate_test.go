package headless

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/content-capture/internal/capture"
)

func TestDetectorNeedsRender(t *testing.T) {
	t.Parallel()

	article := "<html><body><article>" + strings.Repeat("<p>Plain server rendered text.</p>", 100) + "</article></body></html>"
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{name: "empty body", status: 200, body: "  ", want: true},
		{name: "next shell", status: 200, body: `<div id="__next"></div>` + article, want: true},
		{name: "noscript hint", status: 200, body: `<noscript>Please enable JavaScript to continue.</noscript>`, want: true},
		{name: "script heavy small page", status: 200, body: `<html><script>var a=1;</script><p>t</p></html>`, want: true},
		{name: "static article", status: 200, body: article, want: false},
		{name: "non 200", status: 404, body: "", want: false},
	}
	d := NewDetector(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := d.NeedsRender(capture.FetchResponse{StatusCode: tt.status, Body: []byte(tt.body)})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScriptShareUnterminated(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 100, scriptShare([]byte("<script>for(;;){")))
	assert.Equal(t, 0, scriptShare([]byte("<p>no scripts</p>")))
}

type stubFetcher struct {
	resp  capture.FetchResponse
	err   error
	calls int
}

func (s *stubFetcher) Fetch(context.Context, capture.FetchRequest) (capture.FetchResponse, error) {
	s.calls++
	return s.resp, s.err
}

func TestEscalatingFetch(t *testing.T) {
	t.Parallel()

	shell := capture.FetchResponse{StatusCode: http.StatusOK, Body: []byte(`<div id="root"></div>`)}
	rendered := capture.FetchResponse{StatusCode: http.StatusOK, Body: []byte("<article>rendered</article>")}

	t.Run("static page skips renderer", func(t *testing.T) {
		t.Parallel()
		static := &stubFetcher{resp: capture.FetchResponse{StatusCode: http.StatusOK, Body: []byte(strings.Repeat("<p>text</p>", 300))}}
		renderer := &stubFetcher{resp: rendered}
		resp, err := NewEscalating(static, renderer, NewDetector(0), nil).Fetch(context.Background(), capture.FetchRequest{URL: "https://example.com"})
		require.NoError(t, err)
		assert.Equal(t, static.resp, resp)
		assert.Zero(t, renderer.calls)
	})

	t.Run("shell is rendered", func(t *testing.T) {
		t.Parallel()
		renderer := &stubFetcher{resp: rendered}
		resp, err := NewEscalating(&stubFetcher{resp: shell}, renderer, NewDetector(0), nil).Fetch(context.Background(), capture.FetchRequest{})
		require.NoError(t, err)
		assert.Equal(t, rendered, resp)
	})

	t.Run("render failure keeps static response", func(t *testing.T) {
		t.Parallel()
		renderer := &stubFetcher{err: errors.New("chrome not found")}
		resp, err := NewEscalating(&stubFetcher{resp: shell}, renderer, NewDetector(0), nil).Fetch(context.Background(), capture.FetchRequest{})
		require.NoError(t, err)
		assert.Equal(t, shell, resp)
	})

	t.Run("static error is returned", func(t *testing.T) {
		t.Parallel()
		renderer := &stubFetcher{resp: rendered}
		_, err := NewEscalating(&stubFetcher{err: errors.New("dial")}, renderer, NewDetector(0), nil).Fetch(context.Background(), capture.FetchRequest{})
		require.ErrorContains(t, err, "dial")
		assert.Zero(t, renderer.calls)
	})
}
