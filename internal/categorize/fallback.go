package categorize

import (
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"github.com/JakeFAU/content-capture/internal/capture"
)

// Fallback categorizes content with keyword rules. It never fails.
type Fallback struct {
	// mu guards matcher, whose Match mutates internal hit counters.
	mu       sync.Mutex
	matcher  *ahocorasick.Matcher
	keywords []string
	topicOf  []string
}

// NewFallback builds the keyword automaton from the topic vocabulary.
func NewFallback() *Fallback {
	f := &Fallback{}
	for _, topic := range Topics {
		for _, kw := range topicKeywords[topic] {
			// Space padding restricts hits to whole words.
			f.keywords = append(f.keywords, " "+kw+" ")
			f.topicOf = append(f.topicOf, topic)
		}
	}
	f.matcher = ahocorasick.NewStringMatcher(f.keywords)
	return f
}

// Categorize applies the keyword rules to in.
func (f *Fallback) Categorize(in Input) capture.Categorization {
	topics := f.matchTopics(in.Content.Title + " " + in.Content.Description + " " + in.Content.BodyText)
	discipline := FallbackDiscipline
	if len(topics) == 0 {
		topics = []string{FallbackTopic}
	} else if d, ok := topicDiscipline[topics[0]]; ok {
		discipline = d
	}
	return capture.Categorization{
		Summary:     fallbackSummary(in.Content),
		Topics:      topics,
		Discipline:  discipline,
		UseCases:    []string{FallbackUseCase},
		ContentType: InferContentType(in.SourceType, in.Content),
	}
}

// matchTopics returns matched topics ordered by hit count, ties broken by vocabulary order.
func (f *Fallback) matchTopics(text string) []string {
	f.mu.Lock()
	hits := f.matcher.Match([]byte(normalizeText(text)))
	f.mu.Unlock()
	counts := map[string]int{}
	for _, idx := range hits {
		if idx < len(f.topicOf) {
			counts[f.topicOf[idx]]++
		}
	}
	var topics []string
	for _, topic := range Topics {
		if counts[topic] > 0 {
			topics = append(topics, topic)
		}
	}
	sort.SliceStable(topics, func(i, j int) bool {
		return counts[topics[i]] > counts[topics[j]]
	})
	if len(topics) > MaxTopics {
		topics = topics[:MaxTopics]
	}
	return topics
}

// normalizeText lower-cases text and collapses every non-alphanumeric run to one space,
// with a leading and trailing space so padded keywords match at the edges.
func normalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}

// Thresholds used to infer content type from body length.
const (
	articleMinRunes = 1500
	threadMinRunes  = 280
)

// InferContentType derives a content type from the source and the shape of the content.
func InferContentType(sourceType capture.SourceType, content capture.ExtractedContent) capture.ContentType {
	body := strings.TrimSpace(content.BodyText)
	bodyLen := utf8.RuneCountInString(body)
	switch {
	case sourceType == capture.SourceYouTube:
		return capture.ContentVideo
	case sourceType == capture.SourceInstagram && len(content.Videos) > 0:
		return capture.ContentVideo
	case len(content.Images) > 0 && body == "":
		return capture.ContentImage
	case bodyLen > articleMinRunes:
		return capture.ContentArticle
	case sourceType == capture.SourceTwitter && bodyLen > threadMinRunes:
		return capture.ContentThread
	default:
		return capture.ContentPost
	}
}

func fallbackSummary(content capture.ExtractedContent) string {
	summary := FallbackSummary
	if d := strings.TrimSpace(content.Description); d != "" {
		summary = d
	} else if t := strings.TrimSpace(content.Title); t != "" {
		summary = t
	}
	return truncate(summary, MaxSummaryRunes)
}
