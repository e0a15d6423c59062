// Package normalize canonicalizes submitted URLs and classifies their source platform.
package normalize

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/JakeFAU/content-capture/internal/capture"
)

// trackingParams are dropped from every normalized URL. Keys starting with utm_ are also dropped.
var trackingParams = map[string]struct{}{
	"igsh":    {},
	"igshid":  {},
	"ig_rid":  {},
	"s":       {},
	"t":       {},
	"ref":     {},
	"ref_src": {},
	"ref_url": {},
	"fbclid":  {},
	"gclid":   {},
	"gclsrc":  {},
	"mc_cid":  {},
	"mc_eid":  {},
	"_ga":     {},
	"_gl":     {},
}

type hostRule struct {
	pattern    string
	sourceType capture.SourceType
}

var hostRules = []hostRule{
	{pattern: "twitter.com", sourceType: capture.SourceTwitter},
	{pattern: "x.com", sourceType: capture.SourceTwitter},
	{pattern: "instagram.com", sourceType: capture.SourceInstagram},
	{pattern: "youtube.com", sourceType: capture.SourceYouTube},
	{pattern: "youtu.be", sourceType: capture.SourceYouTube},
	{pattern: "linkedin.com", sourceType: capture.SourceLinkedIn},
	{pattern: "pinterest.com", sourceType: capture.SourcePinterest},
	{pattern: "pin.it", sourceType: capture.SourcePinterest},
}

// Normalize standardizes a submitted URL so equivalent submissions dedupe to one record.
// It lowercases scheme and host, drops tracking parameters and the fragment, sorts the
// remaining query, and strips a trailing slash unless the path is root.
func Normalize(rawURL string) (string, error) {
	u, err := parseHTTPURL(rawURL)
	if err != nil {
		return "", err
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	escaped := u.EscapedPath()
	u.Path = trimPath(u.Path)
	u.RawPath = ""
	// Escaped reserved characters such as %2F change which resource is addressed.
	if escapesReserved(escaped) {
		u.RawPath = trimPath(escaped)
	}

	q := u.Query()
	for key := range q {
		if isTrackingParam(key) {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()
	u.ForceQuery = false

	return u.String(), nil
}

// Classify maps a URL onto its source type using the longest matching host rule.
// A rule matches when the host equals the pattern or ends with "."+pattern.
func Classify(rawURL string) capture.SourceType {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return capture.SourceWeb
	}
	host := strings.ToLower(u.Hostname())

	best := capture.SourceWeb
	bestLen := 0
	for _, rule := range hostRules {
		if !hostMatches(host, rule.pattern) {
			continue
		}
		if len(rule.pattern) > bestLen {
			best = rule.sourceType
			bestLen = len(rule.pattern)
		}
	}
	return best
}

// Resolve normalizes the URL and classifies the normalized form.
func Resolve(rawURL string) (string, capture.SourceType, error) {
	normalized, err := Normalize(rawURL)
	if err != nil {
		return "", "", err
	}
	return normalized, Classify(normalized), nil
}

func parseHTTPURL(rawURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty", capture.ErrInvalidURL)
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", capture.ErrInvalidURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", capture.ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", capture.ErrInvalidURL)
	}
	return u, nil
}

func isTrackingParam(key string) bool {
	lower := strings.ToLower(key)
	if strings.HasPrefix(lower, "utm_") {
		return true
	}
	_, ok := trackingParams[lower]
	return ok
}

func trimPath(p string) string {
	if p = strings.TrimRight(p, "/"); p == "" {
		return "/"
	}
	return p
}

func escapesReserved(escaped string) bool {
	for i := 0; i+2 < len(escaped); i++ {
		if escaped[i] != '%' {
			continue
		}
		b, err := strconv.ParseUint(escaped[i+1:i+3], 16, 8)
		if err == nil && strings.IndexByte("/?#;,:=@&+$", byte(b)) >= 0 {
			return true
		}
	}
	return false
}

// hostMatches compares on label boundaries: x.com matches mobile.x.com but not fox.com.
func hostMatches(host, pattern string) bool {
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}
