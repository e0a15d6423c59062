package headless

import (
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChromedpConfig(t *testing.T) {
	t.Parallel()

	_, err := NewChromedp(Config{MaxParallel: -1})
	require.Error(t, err)

	r, err := NewChromedp(Config{MaxParallel: 2})
	require.NoError(t, err)
	t.Cleanup(r.Close)
	assert.Equal(t, 2, cap(r.slots))
	assert.Equal(t, 45*time.Second, r.cfg.NavigationTimeout)
	assert.Equal(t, 500*time.Millisecond, r.cfg.Settle)
}

func TestNetworkHeaders(t *testing.T) {
	t.Parallel()

	got := networkHeaders(http.Header{"X-One": {"a"}, "X-Many": {"a", "b"}, "X-None": {}})
	assert.Equal(t, "a", got["X-One"])
	assert.Equal(t, []string{"a", "b"}, got["X-Many"])
	assert.NotContains(t, got, "X-None")
}

func TestDocumentResponse(t *testing.T) {
	t.Parallel()

	doc := &documentResponse{}
	doc.observe(&network.EventResponseReceived{
		Type:     network.ResourceTypeImage,
		Response: &network.Response{Status: 404, URL: "https://example.com/logo.png"},
	})
	doc.observe(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			Status:  203,
			URL:     "https://example.com/rendered",
			Headers: network.Headers{"X-Request-ID": "abc"},
		},
	})
	status, headers, finalURL := doc.result("https://example.com/req", "")
	assert.Equal(t, 203, status)
	assert.Equal(t, "abc", headers.Get("X-Request-ID"))
	assert.Equal(t, "https://example.com/rendered", finalURL)

	status, headers, finalURL = (&documentResponse{}).result("https://example.com/req", "https://example.com/final")
	assert.Equal(t, http.StatusOK, status)
	assert.NotNil(t, headers)
	assert.Equal(t, "https://example.com/final", finalURL)
}
