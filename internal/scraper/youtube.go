package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/content-capture/internal/capture"
	"github.com/JakeFAU/content-capture/internal/httpclient"
)

// YouTubeConfig configures the oEmbed + page metadata strategy.
type YouTubeConfig struct {
	OEmbedURL string
	Timeout   time.Duration
}

// YouTubeStrategy combines the oEmbed record with the watch page's meta tags.
type YouTubeStrategy struct {
	cfg     YouTubeConfig
	client  *httpclient.Client
	fetcher capture.Fetcher
}

// NewYouTube builds the YouTube strategy.
func NewYouTube(cfg YouTubeConfig, client *httpclient.Client, fetcher capture.Fetcher) *YouTubeStrategy {
	if cfg.OEmbedURL == "" {
		cfg.OEmbedURL = "https://www.youtube.com/oembed"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if client == nil {
		client = httpclient.New()
	}
	return &YouTubeStrategy{cfg: cfg, client: client, fetcher: fetcher}
}

// Name implements Strategy.
func (s *YouTubeStrategy) Name() string { return "youtube" }

// CanHandle implements Strategy.
func (s *YouTubeStrategy) CanHandle(u *url.URL) bool {
	return youTubeVideoID(u) != ""
}

// youTubeVideoID reads the id from watch?v=, youtu.be/<id>, /shorts/<id> and /embed/<id>.
func youTubeVideoID(u *url.URL) string {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	switch {
	case host == "youtu.be":
		return parts[0]
	case host == "youtube.com" || strings.HasSuffix(host, ".youtube.com"):
		if v := u.Query().Get("v"); v != "" {
			return v
		}
		if len(parts) >= 2 && (parts[0] == "shorts" || parts[0] == "embed" || parts[0] == "live") {
			return parts[1]
		}
	}
	return ""
}

type oEmbed struct {
	Title           string `json:"title"`
	AuthorName      string `json:"author_name"`
	AuthorURL       string `json:"author_url"`
	ThumbnailURL    string `json:"thumbnail_url"`
	ThumbnailWidth  int    `json:"thumbnail_width"`
	ThumbnailHeight int    `json:"thumbnail_height"`
	ProviderName    string `json:"provider_name"`
}

// Attempt implements Strategy. The oEmbed lookup and page scrape run side by side
// and the strategy fails only if both do.
func (s *YouTubeStrategy) Attempt(ctx context.Context, u *url.URL) (capture.ExtractedContent, error) {
	videoID := youTubeVideoID(u)

	var (
		wg       sync.WaitGroup
		embed    oEmbed
		meta     pageMeta
		embedErr error
		pageErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		embed, embedErr = s.lookupOEmbed(ctx, u)
	}()
	go func() {
		defer wg.Done()
		meta, pageErr = s.scrapePage(ctx, u)
	}()
	wg.Wait()

	if embedErr != nil && pageErr != nil {
		return capture.ExtractedContent{}, fmt.Errorf("oembed: %v; page: %w", embedErr, pageErr)
	}

	content := capture.ExtractedContent{
		Title:       firstNonEmpty(embed.Title, meta.Title),
		Description: meta.Description,
		BodyText:    meta.Description,
		AuthorName:  firstNonEmpty(embed.AuthorName, meta.Author),
		PublishedAt: meta.PublishedAt,
		PlatformData: map[string]any{
			"video_id":  videoID,
			"embed_url": "https://www.youtube.com/embed/" + url.PathEscape(videoID),
		},
	}
	if handle := channelHandle(embed.AuthorURL); handle != "" {
		content.AuthorHandle = handle
	}
	if embedErr != nil {
		content.PlatformData["oembed_error"] = embedErr.Error()
	}
	if pageErr != nil {
		content.PlatformData["page_error"] = pageErr.Error()
	}

	thumbnail := firstNonEmpty(embed.ThumbnailURL, "https://i.ytimg.com/vi/"+url.PathEscape(videoID)+"/hqdefault.jpg")
	content.Images = appendImage(content.Images, capture.MediaAsset{
		OriginalURL: thumbnail,
		Width:       embed.ThumbnailWidth,
		Height:      embed.ThumbnailHeight,
	})
	content.Videos = appendVideo(content.Videos, capture.VideoAsset{
		OriginalURL: "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID),
		Thumbnail:   thumbnail,
	})
	return content, nil
}

func (s *YouTubeStrategy) lookupOEmbed(ctx context.Context, u *url.URL) (oEmbed, error) {
	endpoint, err := url.Parse(s.cfg.OEmbedURL)
	if err != nil {
		return oEmbed{}, fmt.Errorf("parse oembed url: %w", err)
	}
	q := endpoint.Query()
	q.Set("url", u.String())
	q.Set("format", "json")
	endpoint.RawQuery = q.Encode()

	resp, err := s.client.Get(ctx, s.cfg.Timeout, endpoint.String(), nil)
	if err != nil {
		return oEmbed{}, err
	}
	var out oEmbed
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return oEmbed{}, fmt.Errorf("decode oembed: %w", err)
	}
	if out.Title == "" {
		return oEmbed{}, errors.New("oembed response has no title")
	}
	return out, nil
}

func (s *YouTubeStrategy) scrapePage(ctx context.Context, u *url.URL) (pageMeta, error) {
	if s.fetcher == nil {
		return pageMeta{}, errors.New("no page fetcher configured")
	}
	page, err := fetchPage(ctx, s.fetcher, u.String(), s.cfg.Timeout)
	if err != nil {
		return pageMeta{}, err
	}
	doc, err := parseDocument(page.Body)
	if err != nil {
		return pageMeta{}, err
	}
	meta := extractMeta(doc)
	if meta.Title == "" && meta.Description == "" {
		return pageMeta{}, errors.New("page has no metadata")
	}
	return meta, nil
}

// channelHandle returns "@name" from a channel URL such as https://www.youtube.com/@name.
func channelHandle(authorURL string) string {
	u, err := url.Parse(authorURL)
	if err != nil {
		return ""
	}
	last := strings.Trim(u.Path, "/")
	if i := strings.LastIndex(last, "/"); i >= 0 {
		last = last[i+1:]
	}
	if strings.HasPrefix(last, "@") {
		return last
	}
	return ""
}
