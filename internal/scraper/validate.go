package scraper

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/JakeFAU/content-capture/internal/capture"
)

// placeholderMarkers are known sample texts some scraping services return instead of the real post.
var placeholderMarkers = []string{
	"lorem ipsum",
	"sample tweet",
	"this is a sample",
	"this is a test tweet",
	"example post",
	"placeholder text",
	"tweet text goes here",
	"your tweet here",
	"dummy content",
}

// Validator rejects scraping-service results that are placeholders or too short.
type Validator struct {
	MinBodyChars int
	// RequireBody rejects results with no body text at all.
	RequireBody bool
}

// Check returns an error when content looks like a placeholder or sample record.
func (v Validator) Check(content capture.ExtractedContent) error {
	body := strings.TrimSpace(content.BodyText)
	if marker := matchPlaceholder(body); marker != "" {
		return fmt.Errorf("placeholder content detected (%q)", marker)
	}
	if marker := matchPlaceholder(content.Title); marker != "" {
		return fmt.Errorf("placeholder title detected (%q)", marker)
	}
	if body == "" {
		if v.RequireBody {
			return fmt.Errorf("empty body text")
		}
		return nil
	}
	if n := utf8.RuneCountInString(body); v.MinBodyChars > 0 && n < v.MinBodyChars {
		return fmt.Errorf("body text too short (%d < %d chars)", n, v.MinBodyChars)
	}
	return nil
}

func matchPlaceholder(text string) string {
	lower := strings.ToLower(text)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			return marker
		}
	}
	return ""
}
