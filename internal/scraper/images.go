package scraper

import (
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/content-capture/internal/capture"
)

// metaImageSelectors are checked in order before inline images.
var metaImageSelectors = []struct {
	selector string
	attr     string
}{
	{"meta[property='og:image']", "content"},
	{"meta[property='og:image:secure_url']", "content"},
	{"meta[name='twitter:image']", "content"},
	{"meta[name='twitter:image:src']", "content"},
	{"link[rel='image_src']", "href"},
}

// rejectedImageMarkers flag icons, logos, and tracking pixels by URL substring.
var rejectedImageMarkers = []string{
	"favicon", "icon-", "-icon", "_icon", "logo", "sprite", "pixel", "tracking", "spacer", "blank.", "1x1", "badge",
}

// collectMetaImages returns declared share images. Call before stripping the DOM.
func collectMetaImages(doc *goquery.Document, base *url.URL) []capture.MediaAsset {
	var images []capture.MediaAsset
	for _, m := range metaImageSelectors {
		doc.Find(m.selector).Each(func(_ int, s *goquery.Selection) {
			raw, _ := s.Attr(m.attr)
			if resolved, ok := resolveImageURL(base, raw); ok {
				images = appendImage(images, capture.MediaAsset{OriginalURL: resolved})
			}
		})
	}
	return images
}

// collectInlineImages walks <img> tags, preferring the largest srcset candidate.
func collectInlineImages(doc *goquery.Document, base *url.URL, images []capture.MediaAsset) []capture.MediaAsset {
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		width, height := intAttr(s, "width"), intAttr(s, "height")
		if (width > 0 && width <= 1) || (height > 0 && height <= 1) {
			return
		}
		raw := ""
		if srcset, ok := s.Attr("srcset"); ok {
			raw = largestSrcset(srcset)
		}
		if raw == "" {
			for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
				if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" && !strings.HasPrefix(v, "data:") {
					raw = v
					break
				}
			}
		}
		resolved, ok := resolveImageURL(base, raw)
		if !ok {
			return
		}
		alt, _ := s.Attr("alt")
		images = appendImage(images, capture.MediaAsset{
			OriginalURL: resolved,
			Width:       width,
			Height:      height,
			Alt:         strings.TrimSpace(alt),
		})
	})
	return images
}

// largestSrcset picks the candidate with the biggest w or x descriptor. A candidate URL
// runs to the next whitespace, so commas inside it (w_100,h_100) are kept.
func largestSrcset(srcset string) string {
	best, bestScore := "", -1.0
	rest := srcset
	for {
		rest = strings.TrimLeft(rest, " \t\n\r\f,")
		if rest == "" {
			break
		}
		end := strings.IndexAny(rest, " \t\n\r\f")
		if end < 0 {
			end = len(rest)
		}
		candidate, desc := rest[:end], ""
		rest = rest[end:]
		if trimmed := strings.TrimRight(candidate, ","); trimmed != candidate {
			candidate = trimmed
		} else if comma := strings.IndexByte(rest, ','); comma >= 0 {
			desc, rest = rest[:comma], rest[comma+1:]
		} else {
			desc, rest = rest, ""
		}

		score := 1.0
		if fields := strings.Fields(desc); len(fields) > 0 {
			if n, err := strconv.ParseFloat(strings.TrimRight(fields[0], "wx"), 64); err == nil {
				score = n
			}
		}
		if score > bestScore {
			best, bestScore = candidate, score
		}
	}
	return best
}

// resolveImageURL makes raw absolute against base and applies the rejection rules.
func resolveImageURL(base *url.URL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return "", false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if rejectImage(abs) {
		return "", false
	}
	return abs.String(), true
}

func rejectImage(u *url.URL) bool {
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == ".svg" || ext == ".gif" || ext == ".ico" {
		return true
	}
	lower := strings.ToLower(u.Path)
	if strings.Contains(lower, "/icons/") {
		return true
	}
	name := path.Base(lower)
	for _, marker := range rejectedImageMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

func intAttr(s *goquery.Selection, name string) int {
	v, ok := s.Attr(name)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	if err != nil {
		return 0
	}
	return n
}

func capImages(images []capture.MediaAsset, limit int) []capture.MediaAsset {
	if limit > 0 && len(images) > limit {
		return images[:limit]
	}
	return images
}
