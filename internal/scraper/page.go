package scraper

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// nonContentSelector matches DOM that never carries the page's own text.
const nonContentSelector = "script, style, noscript, nav, header, footer, aside, form, iframe, svg"

// readabilityThreshold triggers article extraction when the sampled body is shorter than this.
const readabilityThreshold = 200

// pageMeta is everything the head of an HTML page says about itself.
type pageMeta struct {
	Title       string
	Description string
	Author      string
	SiteName    string
	PublishedAt *time.Time
}

func parseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func extractMeta(doc *goquery.Document) pageMeta {
	meta := pageMeta{
		Title: firstNonEmpty(
			metaContent(doc, "meta[property='og:title']", "meta[name='twitter:title']"),
			doc.Find("title").First().Text(),
		),
		Description: metaContent(doc,
			"meta[property='og:description']",
			"meta[name='twitter:description']",
			"meta[name='description']",
		),
		Author: metaContent(doc,
			"meta[name='author']",
			"meta[property='article:author']",
			"meta[name='twitter:creator']",
		),
		SiteName: metaContent(doc, "meta[property='og:site_name']"),
	}
	if raw := metaContent(doc, "meta[property='article:published_time']", "meta[name='pubdate']"); raw != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z0700", "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				t = t.UTC()
				meta.PublishedAt = &t
				break
			}
		}
	}
	meta.Title = collapseSpace(meta.Title)
	return meta
}

// sampleBody strips non-content DOM and returns whitespace-collapsed body text bounded to limit runes.
// It mutates doc.
func sampleBody(doc *goquery.Document, limit int) string {
	doc.Find(nonContentSelector).Remove()
	text := collapseSpace(doc.Find("body").Text())
	return truncateRunes(text, limit)
}

// readableText runs article extraction over the raw page.
func readableText(body []byte, pageURL *url.URL, limit int) (title, text string) {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return "", ""
	}
	return collapseSpace(article.Title), truncateRunes(collapseSpace(article.TextContent), limit)
}

// bodyWithFallback prefers the sampled body and swaps in the readability text when the sample is thin.
func bodyWithFallback(doc *goquery.Document, raw []byte, pageURL *url.URL, limit int) (body, fallbackTitle string) {
	body = sampleBody(doc, limit)
	if utf8.RuneCountInString(body) >= readabilityThreshold {
		return body, ""
	}
	title, text := readableText(raw, pageURL, limit)
	if utf8.RuneCountInString(text) > utf8.RuneCountInString(body) {
		body = text
	}
	return body, title
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
