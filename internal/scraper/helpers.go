package scraper

import (
	"strings"
	"unicode/utf8"

	"github.com/JakeFAU/content-capture/internal/capture"
)

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit]))
}

// appendImage adds an image unless its URL is empty or already present.
func appendImage(images []capture.MediaAsset, img capture.MediaAsset) []capture.MediaAsset {
	img.OriginalURL = strings.TrimSpace(img.OriginalURL)
	if img.OriginalURL == "" {
		return images
	}
	for _, existing := range images {
		if existing.OriginalURL == img.OriginalURL {
			return images
		}
	}
	return append(images, img)
}

// appendVideo adds a video unless its URL is empty or already present.
func appendVideo(videos []capture.VideoAsset, v capture.VideoAsset) []capture.VideoAsset {
	v.OriginalURL = strings.TrimSpace(v.OriginalURL)
	if v.OriginalURL == "" {
		return videos
	}
	for _, existing := range videos {
		if existing.OriginalURL == v.OriginalURL {
			return videos
		}
	}
	return append(videos, v)
}
