// Package categorize assigns a summary, topics, discipline, use cases, and content type
// to extracted content. It asks a text generator first and falls back to deterministic
// keyword rules, so categorization itself never fails.
package categorize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/JakeFAU/content-capture/internal/capture"
	"github.com/JakeFAU/content-capture/internal/metrics"
)

// Input is what the categorizer knows about one capture.
type Input struct {
	SourceType capture.SourceType
	URL        string
	Content    capture.ExtractedContent
	Notes      string
}

// Categorizer produces a Categorization for extracted content.
type Categorizer struct {
	generator capture.TextGenerator
	fallback  *Fallback
	logger    *zap.Logger
}

// New builds a Categorizer. generator may be nil, in which case only the fallback runs.
func New(generator capture.TextGenerator, logger *zap.Logger) *Categorizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Categorizer{
		generator: generator,
		fallback:  NewFallback(),
		logger:    logger,
	}
}

// Categorize returns the model's categorization, or the fallback's when the model call
// or its response is unusable. degraded reports whether the fallback was used.
func (c *Categorizer) Categorize(ctx context.Context, in Input) (result capture.Categorization, degraded bool) {
	if c.generator == nil {
		return c.fallback.Categorize(in), true
	}

	raw, err := c.generator.Generate(ctx, systemPrompt(), userPrompt(in))
	if err == nil {
		result, err = parseResponse(raw)
	}
	if err != nil {
		metrics.ObserveDegradation("categorization")
		c.logger.Warn("categorization degraded to fallback",
			zap.String("url", in.URL),
			zap.String("source_type", string(in.SourceType)),
			zap.Error(err),
		)
		return c.fallback.Categorize(in), true
	}

	if result.Summary == "" {
		result.Summary = fallbackSummary(in.Content)
	}
	return result, false
}

func systemPrompt() string {
	var b strings.Builder
	b.WriteString("You categorize saved web content for a personal knowledge base.\n")
	b.WriteString("Respond with a single JSON object and nothing else, using exactly these keys:\n")
	b.WriteString(`{"summary": string, "topics": [string], "discipline": string, "useCases": [string], "contentType": string}`)
	b.WriteString("\n\nRules:\n")
	fmt.Fprintf(&b, "- summary: at most %d characters, plain prose.\n", MaxSummaryRunes)
	fmt.Fprintf(&b, "- topics: 1 to %d values from: %s.\n", MaxTopics, strings.Join(Topics, ", "))
	fmt.Fprintf(&b, "- discipline: one value from: %s.\n", strings.Join(Disciplines, ", "))
	fmt.Fprintf(&b, "- useCases: 1 to %d values from: %s.\n", MaxUseCases, strings.Join(UseCases, ", "))
	fmt.Fprintf(&b, "- contentType: one of: %s.\n", strings.Join(ContentTypeNames(), ", "))
	return b.String()
}

// maxPromptBodyRunes bounds the body text sent to the model.
const maxPromptBodyRunes = 4000

func userPrompt(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s\n", in.SourceType)
	if in.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", in.URL)
	}
	writeField(&b, "Title", in.Content.Title)
	writeField(&b, "Author", strings.TrimSpace(in.Content.AuthorName+" "+handle(in.Content.AuthorHandle)))
	writeField(&b, "Description", in.Content.Description)
	writeField(&b, "Notes", in.Notes)
	fmt.Fprintf(&b, "Images: %d, Videos: %d\n", len(in.Content.Images), len(in.Content.Videos))
	if body := strings.TrimSpace(in.Content.BodyText); body != "" {
		fmt.Fprintf(&b, "\nBody:\n%s\n", truncate(body, maxPromptBodyRunes))
	}
	return b.String()
}

func writeField(b *strings.Builder, name, value string) {
	if value = strings.TrimSpace(value); value != "" {
		fmt.Fprintf(b, "%s: %s\n", name, value)
	}
}

func handle(h string) string {
	if h == "" {
		return ""
	}
	return "(@" + strings.TrimPrefix(h, "@") + ")"
}

type modelResponse struct {
	Summary     string          `json:"summary"`
	Topics      []string        `json:"topics"`
	Discipline  json.RawMessage `json:"discipline"`
	UseCases    []string        `json:"useCases"`
	ContentType string          `json:"contentType"`
}

// parseResponse decodes and clamps a model response.
func parseResponse(raw string) (capture.Categorization, error) {
	body, err := UnwrapJSON(raw)
	if err != nil {
		return capture.Categorization{}, err
	}
	var resp modelResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return capture.Categorization{}, fmt.Errorf("decode categorization: %w", err)
	}
	return clamp(resp), nil
}

// UnwrapJSON strips markdown fences and surrounding prose, returning the outermost object.
func UnwrapJSON(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if start := strings.Index(text, "```"); start >= 0 {
		inner := text[start+3:]
		if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
			// Drop the language tag line (```json).
			inner = inner[nl+1:]
		}
		if end := strings.Index(inner, "```"); end >= 0 {
			inner = inner[:end]
		}
		text = inner
	}
	open := strings.IndexByte(text, '{')
	closing := strings.LastIndexByte(text, '}')
	if open < 0 || closing < open {
		return "", errors.New("no JSON object in response")
	}
	return text[open : closing+1], nil
}

func clamp(resp modelResponse) capture.Categorization {
	out := capture.Categorization{
		Summary:     truncate(strings.TrimSpace(resp.Summary), MaxSummaryRunes),
		Topics:      pick(resp.Topics, Topics, MaxTopics),
		Discipline:  firstDiscipline(resp.Discipline),
		UseCases:    pick(resp.UseCases, UseCases, MaxUseCases),
		ContentType: capture.ContentType(strings.ToLower(strings.TrimSpace(resp.ContentType))),
	}
	if len(out.Topics) == 0 {
		out.Topics = []string{FallbackTopic}
	}
	if len(out.UseCases) == 0 {
		out.UseCases = []string{FallbackUseCase}
	}
	if !out.ContentType.Valid() {
		out.ContentType = capture.ContentPost
	}
	return out
}

// pick keeps vocabulary values in order, deduplicated and capped.
func pick(values, vocabulary []string, limit int) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		c, ok := canonical(vocabulary, v)
		if !ok || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out
}

// firstDiscipline accepts a string or an array and returns the first value in the vocabulary.
func firstDiscipline(raw json.RawMessage) string {
	var candidates []string
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		candidates = []string{single}
	} else {
		_ = json.Unmarshal(raw, &candidates)
	}
	for _, c := range candidates {
		if known, ok := canonical(Disciplines, c); ok {
			return known
		}
	}
	return FallbackDiscipline
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:limit]))
}
