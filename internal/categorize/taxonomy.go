package categorize

import (
	"strings"

	"github.com/JakeFAU/content-capture/internal/capture"
)

// Fallback values used when nothing better is known.
const (
	FallbackTopic      = "General"
	FallbackDiscipline = "General"
	FallbackUseCase    = "Reference"
	FallbackSummary    = "No summary available"
)

// Limits applied to every categorization.
const (
	MaxSummaryRunes = 500
	MaxTopics       = 5
	MaxUseCases     = 3
)

// Topics is the fixed topic vocabulary.
var Topics = []string{
	"AI",
	"Software Engineering",
	"Design",
	"Product",
	"Business",
	"Marketing",
	"Finance",
	"Science",
	"Health",
	"Education",
	"Career",
	"Productivity",
	"Politics",
	"Culture",
	"Food",
	"Travel",
	"Sports",
	FallbackTopic,
}

// Disciplines is the fixed discipline vocabulary.
var Disciplines = []string{
	"Engineering",
	"Design",
	"Product Management",
	"Marketing",
	"Finance",
	"Research",
	"Operations",
	"Leadership",
	"Education",
	FallbackDiscipline,
}

// UseCases is the fixed use-case vocabulary.
var UseCases = []string{
	FallbackUseCase,
	"Inspiration",
	"Learning",
	"Research",
	"To Read",
	"To Watch",
	"Share",
	"Tool",
}

// topicDiscipline maps a topic to the discipline it most often belongs to.
var topicDiscipline = map[string]string{
	"AI":                   "Engineering",
	"Software Engineering": "Engineering",
	"Design":               "Design",
	"Product":              "Product Management",
	"Business":             "Leadership",
	"Marketing":            "Marketing",
	"Finance":              "Finance",
	"Science":              "Research",
	"Health":               "Research",
	"Education":            "Education",
	"Career":               "Leadership",
	"Productivity":         "Operations",
}

// topicKeywords drive the fallback matcher. Keywords are lower-case whole words or phrases.
var topicKeywords = map[string][]string{
	"AI": {
		"ai", "machine learning", "artificial intelligence", "llm", "llms", "neural network",
		"deep learning", "gpt", "chatgpt", "openai", "anthropic", "language model", "generative",
	},
	"Software Engineering": {
		"software", "programming", "golang", "python", "javascript", "typescript", "rust", "kubernetes",
		"database", "api", "backend", "frontend", "devops", "open source", "github", "compiler", "code",
	},
	"Design":       {"design", "typography", "ux", "ui", "figma", "illustration", "color palette", "branding"},
	"Product":      {"product management", "roadmap", "user research", "product launch", "product manager"},
	"Business":     {"business", "revenue", "startup", "founder", "entrepreneur", "saas", "enterprise"},
	"Marketing":    {"marketing", "seo", "advertising", "newsletter", "growth hacking", "audience"},
	"Finance":      {"finance", "investing", "stocks", "crypto", "bitcoin", "economy", "inflation", "interest rates"},
	"Science":      {"science", "physics", "biology", "chemistry", "research paper", "astronomy", "climate"},
	"Health":       {"health", "fitness", "nutrition", "mental health", "workout", "sleep", "medicine"},
	"Education":    {"education", "course", "tutorial", "teaching", "students", "university"},
	"Career":       {"career", "hiring", "interview", "resume", "job search", "promotion"},
	"Productivity": {"productivity", "workflow", "habits", "time management", "note taking", "focus"},
	"Politics":     {"politics", "election", "government", "senate", "congress", "legislation"},
	"Culture":      {"art", "music", "film", "movie", "book", "history", "museum"},
	"Food":         {"recipe", "cooking", "food", "restaurant", "baking"},
	"Travel":       {"travel", "trip", "flight", "hotel", "itinerary"},
	"Sports":       {"sports", "football", "soccer", "basketball", "nba", "olympics"},
}

// canonical returns the vocabulary entry matching value case-insensitively.
func canonical(vocabulary []string, value string) (string, bool) {
	value = strings.TrimSpace(value)
	for _, v := range vocabulary {
		if strings.EqualFold(v, value) {
			return v, true
		}
	}
	return "", false
}

// CanonicalTopic resolves a topic against the vocabulary.
func CanonicalTopic(value string) (string, bool) { return canonical(Topics, value) }

// CanonicalUseCase resolves a use case against the vocabulary.
func CanonicalUseCase(value string) (string, bool) { return canonical(UseCases, value) }

// ContentTypeNames lists the content types as strings for prompts.
func ContentTypeNames() []string {
	names := make([]string, 0, len(capture.ContentTypes))
	for _, ct := range capture.ContentTypes {
		names = append(names, string(ct))
	}
	return names
}
