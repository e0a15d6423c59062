package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JakeFAU/content-capture/internal/capture"
	"github.com/JakeFAU/content-capture/internal/httpclient"
)

// Heavyweight provider names accepted in configuration.
const (
	ProviderApifyTweet          = "apify-tweet"
	ProviderScrapeCreatorsTweet = "scrapecreators-tweet"
	ProviderApifyInstagram      = "apify-instagram"
)

// ProviderConfig configures one paid scraping service.
type ProviderConfig struct {
	Name     string
	Endpoint string
	Token    string
	Timeout  time.Duration
	// MinBodyChars rejects results whose body is shorter than this. Zero uses 10.
	MinBodyChars int
}

// NewProvider builds the strategy for a configured provider and reports which chain it joins.
func NewProvider(cfg ProviderConfig, client *httpclient.Client) (capture.SourceType, Strategy, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return "", nil, fmt.Errorf("provider %q: endpoint is required", cfg.Name)
	}
	if client == nil {
		client = httpclient.New()
	}
	if cfg.MinBodyChars <= 0 {
		cfg.MinBodyChars = 10
	}
	base := provider{cfg: cfg, client: client}
	switch cfg.Name {
	case ProviderApifyTweet:
		base.defaultTimeout(60 * time.Second)
		return capture.SourceTwitter, &apifyTweetStrategy{provider: base}, nil
	case ProviderScrapeCreatorsTweet:
		base.defaultTimeout(30 * time.Second)
		return capture.SourceTwitter, &scrapeCreatorsTweetStrategy{provider: base}, nil
	case ProviderApifyInstagram:
		base.defaultTimeout(90 * time.Second)
		return capture.SourceInstagram, &apifyInstagramStrategy{provider: base}, nil
	default:
		return "", nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}

type provider struct {
	cfg    ProviderConfig
	client *httpclient.Client
}

func (p *provider) defaultTimeout(d time.Duration) {
	if p.cfg.Timeout <= 0 {
		p.cfg.Timeout = d
	}
}

func (p provider) Name() string { return p.cfg.Name }

func (p provider) bearer() http.Header {
	header := http.Header{}
	if p.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+p.cfg.Token)
	}
	return header
}

// twitterMedia is the extended_entities media shape shared by Twitter-derived payloads.
type twitterMedia struct {
	Type          string `json:"type"`
	MediaURLHTTPS string `json:"media_url_https"`
	ExtAltText    string `json:"ext_alt_text"`
	OriginalInfo  struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"original_info"`
	VideoInfo *struct {
		DurationMillis int64 `json:"duration_millis"`
		Variants       []struct {
			Bitrate     int    `json:"bitrate"`
			ContentType string `json:"content_type"`
			URL         string `json:"url"`
		} `json:"variants"`
	} `json:"video_info"`
}

func mergeTwitterMedia(content *capture.ExtractedContent, media []twitterMedia) {
	for _, m := range media {
		if m.VideoInfo != nil && (m.Type == "video" || m.Type == "animated_gif") {
			best, bitrate := "", -1
			for _, v := range m.VideoInfo.Variants {
				if v.ContentType == "video/mp4" && v.Bitrate > bitrate {
					best, bitrate = v.URL, v.Bitrate
				}
			}
			content.Videos = appendVideo(content.Videos, capture.VideoAsset{
				OriginalURL: best,
				Thumbnail:   m.MediaURLHTTPS,
				Duration:    float64(m.VideoInfo.DurationMillis) / 1000,
			})
			continue
		}
		content.Images = appendImage(content.Images, capture.MediaAsset{
			OriginalURL: m.MediaURLHTTPS,
			Width:       m.OriginalInfo.Width,
			Height:      m.OriginalInfo.Height,
			Alt:         m.ExtAltText,
		})
	}
}

func (p provider) validateTweet(content capture.ExtractedContent) error {
	if strings.TrimSpace(content.BodyText) == "" && len(content.Images) == 0 && len(content.Videos) == 0 {
		return errors.New("provider returned an empty tweet")
	}
	// Media does not excuse a missing body: a tweet without text is a failed scrape.
	return Validator{MinBodyChars: p.cfg.MinBodyChars, RequireBody: true}.Check(content)
}

type apifyTweetStrategy struct {
	provider
}

func (s *apifyTweetStrategy) CanHandle(u *url.URL) bool {
	_, ok := parseTweetURL(u)
	return ok
}

type apifyTweet struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	FullText     string `json:"fullText"`
	CreatedAt    string `json:"createdAt"`
	LikeCount    int    `json:"likeCount"`
	RetweetCount int    `json:"retweetCount"`
	ReplyCount   int    `json:"replyCount"`
	Author       struct {
		Name     string `json:"name"`
		UserName string `json:"userName"`
	} `json:"author"`
	ExtendedEntities struct {
		Media []twitterMedia `json:"media"`
	} `json:"extendedEntities"`
	Error string `json:"error"`
}

func (s *apifyTweetStrategy) Attempt(ctx context.Context, u *url.URL) (capture.ExtractedContent, error) {
	ref, _ := parseTweetURL(u)
	payload := map[string]any{
		"startUrls": []string{u.String()},
		"maxItems":  1,
	}
	resp, err := s.client.PostJSON(ctx, s.cfg.Timeout, s.cfg.Endpoint, s.bearer(), payload)
	if err != nil {
		return capture.ExtractedContent{}, err
	}
	var items []apifyTweet
	if err := json.Unmarshal(resp.Body, &items); err != nil {
		return capture.ExtractedContent{}, fmt.Errorf("decode provider response: %w", err)
	}
	if len(items) == 0 {
		return capture.ExtractedContent{}, errors.New("provider returned no items")
	}
	if items[0].Error != "" {
		return capture.ExtractedContent{}, fmt.Errorf("provider error: %s", items[0].Error)
	}
	content := items[0].toContent(ref)
	if err := s.validateTweet(content); err != nil {
		return capture.ExtractedContent{}, err
	}
	return content, nil
}

func (t apifyTweet) toContent(ref tweetRef) capture.ExtractedContent {
	content := capture.ExtractedContent{
		Title:        tweetTitle(t.Author.Name, t.Author.UserName),
		BodyText:     firstNonEmpty(t.FullText, t.Text),
		AuthorName:   t.Author.Name,
		AuthorHandle: firstNonEmpty(t.Author.UserName, ref.Username),
		PublishedAt:  parseTwitterTime(t.CreatedAt, 0),
		PlatformData: map[string]any{
			"status_id": firstNonEmpty(t.ID, ref.StatusID),
			"likes":     t.LikeCount,
			"retweets":  t.RetweetCount,
			"replies":   t.ReplyCount,
		},
	}
	content.Description = truncateRunes(content.BodyText, 280)
	mergeTwitterMedia(&content, t.ExtendedEntities.Media)
	return content
}

type scrapeCreatorsTweetStrategy struct {
	provider
}

func (s *scrapeCreatorsTweetStrategy) CanHandle(u *url.URL) bool {
	_, ok := parseTweetURL(u)
	return ok
}

// scrapeCreatorsTweet mirrors the GraphQL tweet result: user under core, text under legacy.
type scrapeCreatorsTweet struct {
	RestID string `json:"rest_id"`
	Core   struct {
		UserResults struct {
			Result struct {
				Legacy struct {
					Name       string `json:"name"`
					ScreenName string `json:"screen_name"`
				} `json:"legacy"`
			} `json:"result"`
		} `json:"user_results"`
	} `json:"core"`
	Legacy struct {
		FullText         string `json:"full_text"`
		CreatedAt        string `json:"created_at"`
		FavoriteCount    int    `json:"favorite_count"`
		RetweetCount     int    `json:"retweet_count"`
		ReplyCount       int    `json:"reply_count"`
		ExtendedEntities struct {
			Media []twitterMedia `json:"media"`
		} `json:"extended_entities"`
	} `json:"legacy"`
}

func (s *scrapeCreatorsTweetStrategy) Attempt(ctx context.Context, u *url.URL) (capture.ExtractedContent, error) {
	ref, _ := parseTweetURL(u)
	endpoint, err := url.Parse(s.cfg.Endpoint)
	if err != nil {
		return capture.ExtractedContent{}, fmt.Errorf("parse provider endpoint: %w", err)
	}
	q := endpoint.Query()
	q.Set("url", u.String())
	endpoint.RawQuery = q.Encode()

	header := http.Header{}
	if s.cfg.Token != "" {
		header.Set("x-api-key", s.cfg.Token)
	}
	resp, err := s.client.Get(ctx, s.cfg.Timeout, endpoint.String(), header)
	if err != nil {
		return capture.ExtractedContent{}, err
	}
	var tweet scrapeCreatorsTweet
	if err := json.Unmarshal(resp.Body, &tweet); err != nil {
		return capture.ExtractedContent{}, fmt.Errorf("decode provider response: %w", err)
	}
	content := tweet.toContent(ref)
	if err := s.validateTweet(content); err != nil {
		return capture.ExtractedContent{}, err
	}
	return content, nil
}

func (t scrapeCreatorsTweet) toContent(ref tweetRef) capture.ExtractedContent {
	user := t.Core.UserResults.Result.Legacy
	content := capture.ExtractedContent{
		Title:        tweetTitle(user.Name, user.ScreenName),
		BodyText:     strings.TrimSpace(t.Legacy.FullText),
		AuthorName:   user.Name,
		AuthorHandle: firstNonEmpty(user.ScreenName, ref.Username),
		PublishedAt:  parseTwitterTime(t.Legacy.CreatedAt, 0),
		PlatformData: map[string]any{
			"status_id": firstNonEmpty(t.RestID, ref.StatusID),
			"likes":     t.Legacy.FavoriteCount,
			"retweets":  t.Legacy.RetweetCount,
			"replies":   t.Legacy.ReplyCount,
		},
	}
	content.Description = truncateRunes(content.BodyText, 280)
	mergeTwitterMedia(&content, t.Legacy.ExtendedEntities.Media)
	return content
}

type apifyInstagramStrategy struct {
	provider
}

// CanHandle accepts post, reel and tv permalinks.
func (s *apifyInstagramStrategy) CanHandle(u *url.URL) bool {
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		switch parts[i] {
		case "p", "reel", "reels", "tv":
			return parts[i+1] != ""
		}
	}
	return false
}

type instagramMedia struct {
	Type             string  `json:"type"`
	DisplayURL       string  `json:"displayUrl"`
	VideoURL         string  `json:"videoUrl"`
	VideoDuration    float64 `json:"videoDuration"`
	DimensionsWidth  int     `json:"dimensionsWidth"`
	DimensionsHeight int     `json:"dimensionsHeight"`
	Alt              string  `json:"alt"`
}

type instagramPost struct {
	instagramMedia
	ShortCode     string           `json:"shortCode"`
	Caption       string           `json:"caption"`
	OwnerUsername string           `json:"ownerUsername"`
	OwnerFullName string           `json:"ownerFullName"`
	Timestamp     string           `json:"timestamp"`
	LikesCount    int              `json:"likesCount"`
	CommentsCount int              `json:"commentsCount"`
	Images        []string         `json:"images"`
	ChildPosts    []instagramMedia `json:"childPosts"`
	Error         string           `json:"error"`
	ErrorDesc     string           `json:"errorDescription"`
}

func (s *apifyInstagramStrategy) Attempt(ctx context.Context, u *url.URL) (capture.ExtractedContent, error) {
	payload := map[string]any{
		"directUrls":   []string{u.String()},
		"resultsType":  "posts",
		"resultsLimit": 1,
	}
	resp, err := s.client.PostJSON(ctx, s.cfg.Timeout, s.cfg.Endpoint, s.bearer(), payload)
	if err != nil {
		return capture.ExtractedContent{}, err
	}
	var items []instagramPost
	if err := json.Unmarshal(resp.Body, &items); err != nil {
		return capture.ExtractedContent{}, fmt.Errorf("decode provider response: %w", err)
	}
	if len(items) == 0 {
		return capture.ExtractedContent{}, errors.New("provider returned no items")
	}
	post := items[0]
	if post.Error != "" {
		return capture.ExtractedContent{}, fmt.Errorf("provider error: %s", firstNonEmpty(post.ErrorDesc, post.Error))
	}

	content := post.toContent()
	if len(content.Images) == 0 && len(content.Videos) == 0 && content.BodyText == "" {
		return capture.ExtractedContent{}, errors.New("provider returned an empty post")
	}
	// Captions are optional, so only the placeholder check applies.
	if err := (Validator{}).Check(content); err != nil {
		return capture.ExtractedContent{}, err
	}
	return content, nil
}

func (p instagramPost) toContent() capture.ExtractedContent {
	caption := strings.TrimSpace(p.Caption)
	content := capture.ExtractedContent{
		Title:        instagramTitle(p.OwnerFullName, p.OwnerUsername),
		Description:  truncateRunes(caption, 300),
		BodyText:     caption,
		AuthorName:   p.OwnerFullName,
		AuthorHandle: p.OwnerUsername,
		PlatformData: map[string]any{
			"shortcode": p.ShortCode,
			"post_type": p.Type,
			"likes":     p.LikesCount,
			"comments":  p.CommentsCount,
		},
	}
	if t, err := time.Parse(time.RFC3339, p.Timestamp); err == nil {
		t = t.UTC()
		content.PublishedAt = &t
	}

	mergeInstagramMedia(&content, p.instagramMedia)
	for _, img := range p.Images {
		content.Images = appendImage(content.Images, capture.MediaAsset{OriginalURL: img})
	}
	for _, child := range p.ChildPosts {
		mergeInstagramMedia(&content, child)
	}
	return content
}

func mergeInstagramMedia(content *capture.ExtractedContent, m instagramMedia) {
	if m.VideoURL != "" {
		content.Videos = appendVideo(content.Videos, capture.VideoAsset{
			OriginalURL: m.VideoURL,
			Thumbnail:   m.DisplayURL,
			Duration:    m.VideoDuration,
		})
		return
	}
	content.Images = appendImage(content.Images, capture.MediaAsset{
		OriginalURL: m.DisplayURL,
		Width:       m.DimensionsWidth,
		Height:      m.DimensionsHeight,
		Alt:         m.Alt,
	})
}

func instagramTitle(name, handle string) string {
	switch {
	case name != "" && handle != "":
		return fmt.Sprintf("%s (@%s) on Instagram", name, handle)
	case handle != "":
		return fmt.Sprintf("@%s on Instagram", handle)
	default:
		return "Instagram post"
	}
}
