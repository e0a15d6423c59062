// Package capture defines the core types shared across the capture pipeline.
package capture

import (
	"time"
)

// SourceType is the platform classification of a capture's URL.
type SourceType string

// Known source types.
const (
	SourceTwitter   SourceType = "twitter"
	SourceInstagram SourceType = "instagram"
	SourceLinkedIn  SourceType = "linkedin"
	SourcePinterest SourceType = "pinterest"
	SourceYouTube   SourceType = "youtube"
	SourceWeb       SourceType = "web"
)

// SourceTypes lists every source type in a stable order.
var SourceTypes = []SourceType{
	SourceTwitter,
	SourceInstagram,
	SourceLinkedIn,
	SourcePinterest,
	SourceYouTube,
	SourceWeb,
}

// Valid reports whether s is a known source type.
func (s SourceType) Valid() bool {
	for _, known := range SourceTypes {
		if s == known {
			return true
		}
	}
	return false
}

// Status represents the lifecycle state of a capture.
type Status string

// Capture status values persisted in the record store.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// ContentType is the coarse shape of captured content.
type ContentType string

// Content types produced by categorization.
const (
	ContentPost    ContentType = "post"
	ContentArticle ContentType = "article"
	ContentThread  ContentType = "thread"
	ContentImage   ContentType = "image"
	ContentVideo   ContentType = "video"
)

// ContentTypes lists every content type in a stable order.
var ContentTypes = []ContentType{ContentPost, ContentArticle, ContentThread, ContentImage, ContentVideo}

// Valid reports whether c is a known content type.
func (c ContentType) Valid() bool {
	for _, known := range ContentTypes {
		if c == known {
			return true
		}
	}
	return false
}

// MediaAsset is an image referenced by a capture.
type MediaAsset struct {
	OriginalURL string `json:"originalUrl"`
	StoragePath string `json:"storagePath,omitempty"`
	PublicURL   string `json:"publicUrl,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Alt         string `json:"alt,omitempty"`
}

// Materialized reports whether the asset was re-hosted in durable storage.
func (m MediaAsset) Materialized() bool {
	return m.PublicURL != ""
}

// URL returns the best URL for displaying the asset.
func (m MediaAsset) URL() string {
	if m.PublicURL != "" {
		return m.PublicURL
	}
	return m.OriginalURL
}

// VideoAsset is a video referenced by a capture. Only metadata is retained.
type VideoAsset struct {
	OriginalURL string  `json:"originalUrl"`
	Thumbnail   string  `json:"thumbnail,omitempty"`
	Duration    float64 `json:"duration,omitempty"`
}

// Screenshot is a page capture returned by a screenshot capability, either hosted or inline.
type Screenshot struct {
	URL         string
	Data        []byte
	ContentType string
}

// ChannelContext describes the chat channel a capture originated from.
type ChannelContext struct {
	MessageID   string `json:"messageId,omitempty"`
	ChannelID   string `json:"channelId,omitempty"`
	UserID      string `json:"userId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	RawText     string `json:"rawText,omitempty"`
}

// ExtractedContent is the normalized output of a scraping strategy.
type ExtractedContent struct {
	Title        string
	Description  string
	BodyText     string
	AuthorName   string
	AuthorHandle string
	PublishedAt  *time.Time
	Images       []MediaAsset
	Videos       []VideoAsset
	Screenshot   *Screenshot
	PlatformData map[string]any
}

// Categorization is the AI-or-fallback classification of a capture.
type Categorization struct {
	Summary     string      `json:"summary"`
	Topics      []string    `json:"topics"`
	Discipline  string      `json:"discipline"`
	UseCases    []string    `json:"useCases"`
	ContentType ContentType `json:"contentType"`
}

// Record is the persisted capture row.
type Record struct {
	ID           string          `json:"id"`
	SourceURL    string          `json:"sourceUrl"`
	SourceType   SourceType      `json:"sourceType"`
	Status       Status          `json:"status"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	Title        string          `json:"title,omitempty"`
	Description  string          `json:"description,omitempty"`
	BodyText     string          `json:"bodyText,omitempty"`
	AuthorName   string          `json:"authorName,omitempty"`
	AuthorHandle string          `json:"authorHandle,omitempty"`
	PublishedAt  *time.Time      `json:"publishedAt,omitempty"`
	Images       []MediaAsset    `json:"images"`
	Videos       []VideoAsset    `json:"videos"`
	Screenshot   *MediaAsset     `json:"screenshot,omitempty"`
	Summary      string          `json:"summary,omitempty"`
	Topics       []string        `json:"topics"`
	Disciplines  []string        `json:"disciplines"`
	UseCases     []string        `json:"useCases"`
	ContentType  ContentType     `json:"contentType,omitempty"`
	PlatformData map[string]any  `json:"platformData,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	Channel      *ChannelContext `json:"channel,omitempty"`
	CapturedAt   time.Time       `json:"capturedAt"`
	ProcessedAt  *time.Time      `json:"processedAt,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// QueueMessage is the payload published for each capture awaiting processing.
type QueueMessage struct {
	CaptureID  string          `json:"captureId"`
	URL        string          `json:"url"`
	SourceType SourceType      `json:"sourceType"`
	Notes      string          `json:"notes,omitempty"`
	Channel    *ChannelContext `json:"channelContext,omitempty"`
}

// Attributes returns the transport attributes published alongside the message.
func (m QueueMessage) Attributes() map[string]string {
	return map[string]string{
		"capture_id":  m.CaptureID,
		"source_type": string(m.SourceType),
	}
}

// ListFilter narrows a record listing.
type ListFilter struct {
	// Keywords match case-insensitively against title, description, summary, and body text.
	// A row matches when any keyword matches.
	Keywords     []string
	SourceTypes  []SourceType
	ContentTypes []ContentType
	Status       Status
	Limit        int
	Offset       int
}

// ListResult is a page of records plus the store's exact matched-row count.
type ListResult struct {
	Records []Record
	Total   int
}
