package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/JakeFAU/content-capture/internal/capture"
	"github.com/JakeFAU/content-capture/internal/httpclient"
)

// tweetRef identifies a post by author handle and status id.
type tweetRef struct {
	Username string
	StatusID string
}

// parseTweetURL extracts the handle and status id from /<user>/status/<id> paths.
func parseTweetURL(u *url.URL) (tweetRef, bool) {
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i+1] != "status" && parts[i+1] != "statuses" {
			continue
		}
		id := parts[i+2]
		if id == "" || strings.Trim(id, "0123456789") != "" {
			continue
		}
		user := parts[i]
		if user == "web" {
			user = "i"
		}
		return tweetRef{Username: user, StatusID: id}, true
	}
	return tweetRef{}, false
}

// twitterTimeLayout is the created_at format used by Twitter-shaped payloads.
const twitterTimeLayout = "Mon Jan 02 15:04:05 -0700 2006"

func parseTwitterTime(raw string, epoch int64) *time.Time {
	if epoch > 0 {
		t := time.Unix(epoch, 0).UTC()
		return &t
	}
	for _, layout := range []string{twitterTimeLayout, time.RFC3339, time.RFC3339Nano} {
		if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// MirrorConfig configures an unauthenticated mirror API.
type MirrorConfig struct {
	BaseURL string
	Timeout time.Duration
}

// FxTwitterStrategy looks a post up through the primary mirror API.
type FxTwitterStrategy struct {
	cfg    MirrorConfig
	client *httpclient.Client
}

// NewFxTwitter builds the primary mirror strategy.
func NewFxTwitter(cfg MirrorConfig, client *httpclient.Client) *FxTwitterStrategy {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.fxtwitter.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &FxTwitterStrategy{cfg: cfg, client: client}
}

// Name implements Strategy.
func (s *FxTwitterStrategy) Name() string { return "fxtwitter" }

// CanHandle implements Strategy.
func (s *FxTwitterStrategy) CanHandle(u *url.URL) bool {
	_, ok := parseTweetURL(u)
	return ok
}

type fxResponse struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Tweet   *fxTweet `json:"tweet"`
}

type fxTweet struct {
	URL       string `json:"url"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
	Timestamp int64  `json:"created_timestamp"`
	Likes     int    `json:"likes"`
	Retweets  int    `json:"retweets"`
	Replies   int    `json:"replies"`
	Author    struct {
		Name       string `json:"name"`
		ScreenName string `json:"screen_name"`
		AvatarURL  string `json:"avatar_url"`
	} `json:"author"`
	Media *struct {
		Photos []struct {
			URL     string `json:"url"`
			Width   int    `json:"width"`
			Height  int    `json:"height"`
			AltText string `json:"altText"`
		} `json:"photos"`
		Videos []struct {
			URL          string  `json:"url"`
			ThumbnailURL string  `json:"thumbnail_url"`
			Duration     float64 `json:"duration"`
		} `json:"videos"`
	} `json:"media"`
}

// Attempt implements Strategy.
func (s *FxTwitterStrategy) Attempt(ctx context.Context, u *url.URL) (capture.ExtractedContent, error) {
	ref, _ := parseTweetURL(u)
	endpoint := fmt.Sprintf("%s/%s/status/%s",
		strings.TrimRight(s.cfg.BaseURL, "/"), url.PathEscape(ref.Username), url.PathEscape(ref.StatusID))

	resp, err := s.client.Get(ctx, s.cfg.Timeout, endpoint, nil)
	if err != nil {
		return capture.ExtractedContent{}, err
	}
	if httpclient.LooksLikeHTML(resp) || !gjson.ValidBytes(resp.Body) {
		return capture.ExtractedContent{}, errors.New("mirror returned non-JSON body")
	}
	if code := gjson.GetBytes(resp.Body, "code"); code.Exists() && code.Int() != 200 {
		return capture.ExtractedContent{}, fmt.Errorf("mirror error %d: %s", code.Int(), gjson.GetBytes(resp.Body, "message").String())
	}

	var payload fxResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return capture.ExtractedContent{}, fmt.Errorf("decode mirror response: %w", err)
	}
	if payload.Tweet == nil || (strings.TrimSpace(payload.Tweet.Text) == "" && payload.Tweet.Media == nil) {
		return capture.ExtractedContent{}, errors.New("mirror response has no tweet")
	}
	return payload.Tweet.toContent(ref), nil
}

func (t *fxTweet) toContent(ref tweetRef) capture.ExtractedContent {
	content := capture.ExtractedContent{
		Title:        tweetTitle(t.Author.Name, t.Author.ScreenName),
		BodyText:     strings.TrimSpace(t.Text),
		AuthorName:   t.Author.Name,
		AuthorHandle: firstNonEmpty(t.Author.ScreenName, ref.Username),
		PublishedAt:  parseTwitterTime(t.CreatedAt, t.Timestamp),
		PlatformData: map[string]any{
			"status_id": ref.StatusID,
			"likes":     t.Likes,
			"retweets":  t.Retweets,
			"replies":   t.Replies,
		},
	}
	content.Description = truncateRunes(content.BodyText, 280)
	if t.Media != nil {
		for _, p := range t.Media.Photos {
			content.Images = appendImage(content.Images, capture.MediaAsset{
				OriginalURL: p.URL, Width: p.Width, Height: p.Height, Alt: p.AltText,
			})
		}
		for _, v := range t.Media.Videos {
			content.Videos = appendVideo(content.Videos, capture.VideoAsset{
				OriginalURL: v.URL, Thumbnail: v.ThumbnailURL, Duration: v.Duration,
			})
		}
	}
	return content
}

// VxTwitterStrategy looks a post up through the secondary mirror API.
type VxTwitterStrategy struct {
	cfg    MirrorConfig
	client *httpclient.Client
}

// NewVxTwitter builds the secondary mirror strategy.
func NewVxTwitter(cfg MirrorConfig, client *httpclient.Client) *VxTwitterStrategy {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.vxtwitter.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &VxTwitterStrategy{cfg: cfg, client: client}
}

// Name implements Strategy.
func (s *VxTwitterStrategy) Name() string { return "vxtwitter" }

// CanHandle implements Strategy.
func (s *VxTwitterStrategy) CanHandle(u *url.URL) bool {
	_, ok := parseTweetURL(u)
	return ok
}

type vxTweet struct {
	Text           string `json:"text"`
	UserName       string `json:"user_name"`
	UserScreenName string `json:"user_screen_name"`
	Date           string `json:"date"`
	DateEpoch      int64  `json:"date_epoch"`
	Likes          int    `json:"likes"`
	Retweets       int    `json:"retweets"`
	Replies        int    `json:"replies"`
	MediaExtended  []struct {
		Type           string `json:"type"`
		URL            string `json:"url"`
		ThumbnailURL   string `json:"thumbnail_url"`
		AltText        string `json:"altText"`
		DurationMillis int64  `json:"duration_millis"`
		Size           struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"size"`
	} `json:"media_extended"`
}

// Attempt implements Strategy.
func (s *VxTwitterStrategy) Attempt(ctx context.Context, u *url.URL) (capture.ExtractedContent, error) {
	ref, _ := parseTweetURL(u)
	endpoint := fmt.Sprintf("%s/%s/status/%s",
		strings.TrimRight(s.cfg.BaseURL, "/"), url.PathEscape(ref.Username), url.PathEscape(ref.StatusID))

	resp, err := s.client.Get(ctx, s.cfg.Timeout, endpoint, nil)
	if err != nil {
		return capture.ExtractedContent{}, err
	}
	// The secondary mirror serves its HTML embed page with a 200 when the API path misses.
	if httpclient.LooksLikeHTML(resp) {
		return capture.ExtractedContent{}, errors.New("mirror returned HTML instead of JSON")
	}
	if !gjson.ValidBytes(resp.Body) || !gjson.ParseBytes(resp.Body).IsObject() {
		return capture.ExtractedContent{}, errors.New("mirror returned invalid JSON")
	}

	var tweet vxTweet
	if err := json.Unmarshal(resp.Body, &tweet); err != nil {
		return capture.ExtractedContent{}, fmt.Errorf("decode mirror response: %w", err)
	}
	if strings.TrimSpace(tweet.Text) == "" && len(tweet.MediaExtended) == 0 {
		return capture.ExtractedContent{}, errors.New("mirror response has no tweet")
	}
	return tweet.toContent(ref), nil
}

func (t vxTweet) toContent(ref tweetRef) capture.ExtractedContent {
	content := capture.ExtractedContent{
		Title:        tweetTitle(t.UserName, t.UserScreenName),
		BodyText:     strings.TrimSpace(t.Text),
		AuthorName:   t.UserName,
		AuthorHandle: firstNonEmpty(t.UserScreenName, ref.Username),
		PublishedAt:  parseTwitterTime(t.Date, t.DateEpoch),
		PlatformData: map[string]any{
			"status_id": ref.StatusID,
			"likes":     t.Likes,
			"retweets":  t.Retweets,
			"replies":   t.Replies,
		},
	}
	content.Description = truncateRunes(content.BodyText, 280)
	for _, m := range t.MediaExtended {
		switch m.Type {
		case "video", "gif":
			content.Videos = appendVideo(content.Videos, capture.VideoAsset{
				OriginalURL: m.URL, Thumbnail: m.ThumbnailURL, Duration: float64(m.DurationMillis) / 1000,
			})
		default:
			content.Images = appendImage(content.Images, capture.MediaAsset{
				OriginalURL: m.URL, Width: m.Size.Width, Height: m.Size.Height, Alt: m.AltText,
			})
		}
	}
	return content
}

func tweetTitle(name, handle string) string {
	switch {
	case name != "" && handle != "":
		return fmt.Sprintf("%s (@%s) on X", name, handle)
	case handle != "":
		return fmt.Sprintf("@%s on X", handle)
	case name != "":
		return name + " on X"
	default:
		return "Post on X"
	}
}
