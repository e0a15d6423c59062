// Package httpclient wraps net/http for the timeout-bounded JSON and binary calls the pipeline makes.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultMaxBytes bounds every response body read by this package.
const DefaultMaxBytes = 20 << 20

// Client issues outbound requests with a per-call timeout.
type Client struct {
	http      *http.Client
	userAgent string
	maxBytes  int64
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		cl.userAgent = ua
	}
}

// WithMaxBytes bounds response bodies.
func WithMaxBytes(n int64) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.maxBytes = n
		}
	}
}

// New builds a Client.
func New(opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{},
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Response is a fully-read HTTP response.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Do sends the request bounded by timeout and reads the body. Non-2xx statuses return *StatusError.
func (c *Client) Do(ctx context.Context, timeout time.Duration, req *http.Request) (Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req = req.WithContext(ctx)
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return Response{}, fmt.Errorf("read body: %w", err)
	}
	out := Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, &StatusError{StatusCode: resp.StatusCode, URL: req.URL.Redacted()}
	}
	return out, nil
}

// Get fetches a URL.
func (c *Client) Get(ctx context.Context, timeout time.Duration, url string, header http.Header) (Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	return c.Do(ctx, timeout, req)
}

// PostJSON marshals payload and posts it.
func (c *Client) PostJSON(
	ctx context.Context,
	timeout time.Duration,
	url string,
	header http.Header,
	payload any,
) (Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	return c.Do(ctx, timeout, req)
}

// LooksLikeHTML reports whether a body that should be JSON is actually an HTML page.
func LooksLikeHTML(resp Response) bool {
	if strings.Contains(strings.ToLower(resp.ContentType), "text/html") {
		return true
	}
	trimmed := bytes.TrimSpace(resp.Body)
	return len(trimmed) > 0 && trimmed[0] == '<'
}
