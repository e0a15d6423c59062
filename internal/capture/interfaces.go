package capture

import (
	"context"
	"io"
	"net/http"
	"time"
)

// RecordStore persists capture records.
type RecordStore interface {
	Get(ctx context.Context, id string) (Record, error)
	GetByURL(ctx context.Context, sourceURL string) (Record, error)
	Insert(ctx context.Context, record Record) error
	// Update replaces the full record keyed by ID.
	Update(ctx context.Context, record Record) error
	List(ctx context.Context, filter ListFilter) (ListResult, error)
}

// BlobStore writes media and returns a stable public URL.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes capture messages onto the queue.
type Publisher interface {
	Publish(ctx context.Context, msg QueueMessage) (string, error)
}

// Delivery is one at-least-once delivery of a queue message.
type Delivery struct {
	Message QueueMessage
	Attempt int
}

// Handler processes one delivery. Returning false asks the transport to redeliver.
type Handler func(ctx context.Context, delivery Delivery) bool

// Consumer delivers queued messages to a handler until the context ends.
type Consumer interface {
	Receive(ctx context.Context, handler Handler) error
}

// TextGenerator runs a single prompt completion and returns the raw text.
type TextGenerator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ScreenshotRequest describes one screenshot attempt.
type ScreenshotRequest struct {
	URL             string
	ViewportWidth   int
	ViewportHeight  int
	WaitNetworkIdle bool
	Timeout         time.Duration
	FullPage        bool
}

// Screenshotter captures a rendered page.
type Screenshotter interface {
	Capture(ctx context.Context, request ScreenshotRequest) (Screenshot, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces capture IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// FetchRequest captures everything needed to fetch a page.
type FetchRequest struct {
	URL     string
	Headers http.Header
	Timeout time.Duration
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}
