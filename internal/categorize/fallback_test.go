package categorize

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JakeFAU/content-capture/internal/capture"
)

func TestFallbackMatchesWholeWords(t *testing.T) {
	t.Parallel()

	f := NewFallback()
	assert.Equal(t, []string{"AI"}, f.matchTopics("Notes on Machine-Learning"))
	// "said" and "paid" contain "ai" but are not the word.
	assert.Empty(t, f.matchTopics("She said it was paid for"))
	assert.Equal(t, []string{"Food", "Travel"}, f.matchTopics("A RECIPE for the trip"))
}

func TestFallbackRanksByHits(t *testing.T) {
	t.Parallel()

	f := NewFallback()
	got := f.matchTopics("travel tips: cheap flight, good hotel, and one recipe")
	assert.Equal(t, "Travel", got[0])
	assert.Contains(t, got, "Food")
}

func TestFallbackCategorize(t *testing.T) {
	t.Parallel()

	got := NewFallback().Categorize(Input{
		SourceType: capture.SourceWeb,
		Content: capture.ExtractedContent{
			Title:       "Kubernetes in production",
			Description: "Running a database on kubernetes",
		},
	})
	assert.Equal(t, []string{"Software Engineering"}, got.Topics)
	assert.Equal(t, "Engineering", got.Discipline)
	assert.Equal(t, "Running a database on kubernetes", got.Summary)
	assert.Equal(t, []string{"Reference"}, got.UseCases)
}

func TestFallbackIsSafeForConcurrentUse(t *testing.T) {
	t.Parallel()

	f := NewFallback()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, []string{"AI"}, f.matchTopics("deep learning"))
		}()
	}
	wg.Wait()
}

func TestInferContentType(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 1501)
	medium := strings.Repeat("a", 281)
	img := []capture.MediaAsset{{OriginalURL: "x"}}
	vid := []capture.VideoAsset{{OriginalURL: "v"}}

	cases := []struct {
		name    string
		source  capture.SourceType
		content capture.ExtractedContent
		want    capture.ContentType
	}{
		{"youtube", capture.SourceYouTube, capture.ExtractedContent{BodyText: long}, capture.ContentVideo},
		{"instagram video", capture.SourceInstagram, capture.ExtractedContent{Videos: vid, BodyText: "caption"}, capture.ContentVideo},
		{"instagram images only", capture.SourceInstagram, capture.ExtractedContent{Images: img}, capture.ContentImage},
		{"long body", capture.SourceWeb, capture.ExtractedContent{BodyText: long}, capture.ContentArticle},
		{"twitter thread", capture.SourceTwitter, capture.ExtractedContent{BodyText: medium}, capture.ContentThread},
		{"web medium", capture.SourceWeb, capture.ExtractedContent{BodyText: medium}, capture.ContentPost},
		{"short tweet", capture.SourceTwitter, capture.ExtractedContent{BodyText: "hi", Images: img}, capture.ContentPost},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, InferContentType(tc.source, tc.content), tc.name)
	}
}

func TestFallbackSummary(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "desc", fallbackSummary(capture.ExtractedContent{Description: " desc ", Title: "t"}))
	assert.Equal(t, "t", fallbackSummary(capture.ExtractedContent{Title: "t"}))
	assert.Equal(t, FallbackSummary, fallbackSummary(capture.ExtractedContent{}))
	assert.Len(t, []rune(fallbackSummary(capture.ExtractedContent{Description: strings.Repeat("z", 600)})), MaxSummaryRunes)
}
