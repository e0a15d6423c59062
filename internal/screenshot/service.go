package screenshot

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/content-capture/internal/capture"
	"github.com/JakeFAU/content-capture/internal/httpclient"
)

// ServiceConfig points at a hosted screenshot API.
type ServiceConfig struct {
	Endpoint string
	APIKey   string
}

// Service implements capture.Screenshotter against a hosted screenshot API.
// The API may answer with raw image bytes, or JSON carrying a hosted URL or base64 image.
type Service struct {
	cfg    ServiceConfig
	client *httpclient.Client
}

// NewService builds a hosted screenshot client.
func NewService(cfg ServiceConfig, client *httpclient.Client) (*Service, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("screenshot endpoint is required")
	}
	if client == nil {
		client = httpclient.New()
	}
	return &Service{cfg: cfg, client: client}, nil
}

type serviceResponse struct {
	URL           string `json:"url"`
	ScreenshotURL string `json:"screenshot_url"`
	Image         string `json:"image"`
	ContentType   string `json:"content_type"`
}

// Capture requests one screenshot from the hosted API.
func (s *Service) Capture(ctx context.Context, request capture.ScreenshotRequest) (capture.Screenshot, error) {
	endpoint, err := s.buildURL(request)
	if err != nil {
		return capture.Screenshot{}, err
	}
	header := http.Header{}
	if s.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	// Leave headroom over the render budget for the API round trip.
	timeout := request.Timeout + 10*time.Second
	resp, err := s.client.Get(ctx, timeout, endpoint, header)
	if err != nil {
		return capture.Screenshot{}, fmt.Errorf("screenshot service: %w", err)
	}
	return decodeServiceResponse(resp)
}

func (s *Service) buildURL(request capture.ScreenshotRequest) (string, error) {
	u, err := url.Parse(s.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse screenshot endpoint: %w", err)
	}
	q := u.Query()
	q.Set("url", request.URL)
	if request.ViewportWidth > 0 {
		q.Set("viewport_width", strconv.Itoa(request.ViewportWidth))
	}
	if request.ViewportHeight > 0 {
		q.Set("viewport_height", strconv.Itoa(request.ViewportHeight))
	}
	q.Set("full_page", strconv.FormatBool(request.FullPage))
	if request.WaitNetworkIdle {
		q.Set("wait_until", "networkidle0")
	} else {
		q.Set("wait_until", "load")
	}
	if request.Timeout > 0 {
		q.Set("timeout", strconv.Itoa(int(request.Timeout.Seconds())))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func decodeServiceResponse(resp httpclient.Response) (capture.Screenshot, error) {
	contentType := strings.ToLower(resp.ContentType)
	if strings.HasPrefix(contentType, "image/") {
		if len(resp.Body) == 0 {
			return capture.Screenshot{}, fmt.Errorf("screenshot service: empty image")
		}
		return capture.Screenshot{Data: resp.Body, ContentType: contentType}, nil
	}

	var payload serviceResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return capture.Screenshot{}, fmt.Errorf("decode screenshot response: %w", err)
	}
	if hosted := firstNonEmpty(payload.URL, payload.ScreenshotURL); hosted != "" {
		return capture.Screenshot{URL: hosted}, nil
	}
	if payload.Image != "" {
		data, mediaType, err := DecodeInline(payload.Image)
		if err != nil {
			return capture.Screenshot{}, err
		}
		if payload.ContentType != "" {
			mediaType = payload.ContentType
		}
		return capture.Screenshot{Data: data, ContentType: mediaType}, nil
	}
	return capture.Screenshot{}, fmt.Errorf("screenshot service: response has neither url nor image")
}

// DecodeInline decodes a base64 image, accepting an optional data: URI prefix.
func DecodeInline(encoded string) ([]byte, string, error) {
	mediaType := "image/png"
	if strings.HasPrefix(encoded, "data:") {
		comma := strings.IndexByte(encoded, ',')
		if comma < 0 {
			return nil, "", fmt.Errorf("malformed data uri")
		}
		meta := encoded[len("data:"):comma]
		if mt, _, _ := strings.Cut(meta, ";"); mt != "" {
			mediaType = mt
		}
		encoded = encoded[comma+1:]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, "", fmt.Errorf("decode base64 image: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("decode base64 image: empty")
	}
	return data, mediaType, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
