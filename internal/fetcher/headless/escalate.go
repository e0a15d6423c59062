package headless

import (
	"bytes"
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/content-capture/internal/capture"
	"github.com/JakeFAU/content-capture/internal/metrics"
)

// Detector decides whether a static response is a client-rendered shell.
type Detector struct {
	// MinBodyBytes is the size below which a script-dominated page counts as a shell.
	MinBodyBytes int
}

// NewDetector returns a Detector; a non-positive threshold defaults to 2048 bytes.
func NewDetector(minBodyBytes int) Detector {
	if minBodyBytes <= 0 {
		minBodyBytes = 2048
	}
	return Detector{MinBodyBytes: minBodyBytes}
}

var shellMarkers = [][]byte{
	[]byte(`id="__next"`),
	[]byte(`id="root"></div>`),
	[]byte(`id="app"></div>`),
	[]byte("data-reactroot"),
	[]byte("ng-version="),
}

var noscriptHints = [][]byte{
	[]byte("enable javascript"),
	[]byte("javascript is required"),
	[]byte("javascript is disabled"),
}

// NeedsRender reports whether resp should be fetched again through a browser. Only
// successful responses qualify.
func (d Detector) NeedsRender(resp capture.FetchResponse) bool {
	if resp.StatusCode != http.StatusOK {
		return false
	}
	body := bytes.ToLower(resp.Body)
	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	for _, hint := range noscriptHints {
		if bytes.Contains(body, hint) {
			return true
		}
	}
	for _, marker := range shellMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return len(body) < d.MinBodyBytes && scriptShare(body) >= 25
}

// scriptShare returns the percentage of body bytes inside <script> elements. An
// unterminated element extends to the end of the body.
func scriptShare(body []byte) int {
	covered := 0
	rest := body
	for {
		start := bytes.Index(rest, []byte("<script"))
		if start < 0 {
			break
		}
		rest = rest[start:]
		end := bytes.Index(rest, []byte("</script>"))
		if end < 0 {
			covered += len(rest)
			break
		}
		end += len("</script>")
		covered += end
		rest = rest[end:]
	}
	return covered * 100 / len(body)
}

// Escalating fetches statically first and re-renders through a browser when the
// detector flags the page. A render failure falls back to the static response.
type Escalating struct {
	static   capture.Fetcher
	renderer capture.Fetcher
	detector Detector
	logger   *zap.Logger
}

// NewEscalating wraps static with renderer.
func NewEscalating(static, renderer capture.Fetcher, detector Detector, logger *zap.Logger) *Escalating {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Escalating{static: static, renderer: renderer, detector: detector, logger: logger}
}

// Fetch implements capture.Fetcher.
func (e *Escalating) Fetch(ctx context.Context, request capture.FetchRequest) (capture.FetchResponse, error) {
	resp, err := e.static.Fetch(ctx, request)
	if err != nil || !e.detector.NeedsRender(resp) {
		return resp, err
	}
	rendered, rerr := e.renderer.Fetch(ctx, request)
	if rerr != nil {
		metrics.ObserveDegradation("render")
		e.logger.Warn("headless render failed; using static response",
			zap.String("url", request.URL), zap.Error(rerr))
		return resp, nil
	}
	e.logger.Debug("page rendered in headless browser", zap.String("url", request.URL))
	return rendered, nil
}
