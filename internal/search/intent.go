package search

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JakeFAU/content-capture/internal/capture"
	"github.com/JakeFAU/content-capture/internal/categorize"
)

// MaxKeywords bounds how many keywords an intent carries.
const MaxKeywords = 8

// Strategy is the breadth the intent extractor chose for a query.
type Strategy string

// Known strategies.
const (
	StrategyBroad   Strategy = "broad"
	StrategyFocused Strategy = "focused"
	StrategyExact   Strategy = "exact"
)

// Intent is the structured reading of a free-text query.
type Intent struct {
	Keywords     []string              `json:"keywords"`
	Topics       []string              `json:"topics"`
	UseCases     []string              `json:"useCases"`
	SourceTypes  []capture.SourceType  `json:"sourceTypes"`
	ContentTypes []capture.ContentType `json:"contentTypes"`
	Strategy     Strategy              `json:"strategy"`
}

type intentResponse struct {
	Keywords     []string `json:"keywords"`
	Topics       []string `json:"topics"`
	UseCases     []string `json:"useCases"`
	SourceTypes  []string `json:"sourceTypes"`
	ContentTypes []string `json:"contentTypes"`
	Strategy     string   `json:"strategy"`
}

func intentSystemPrompt() string {
	sources := make([]string, len(capture.SourceTypes))
	for i, s := range capture.SourceTypes {
		sources[i] = string(s)
	}

	var b strings.Builder
	b.WriteString("You turn a search query over saved web captures into JSON.\n")
	b.WriteString("Respond with a single JSON object and nothing else, with fields:\n")
	fmt.Fprintf(&b, "  keywords: up to %d short lowercase search terms\n", MaxKeywords)
	fmt.Fprintf(&b, "  topics: zero or more of [%s]\n", strings.Join(categorize.Topics, ", "))
	fmt.Fprintf(&b, "  useCases: zero or more of [%s]\n", strings.Join(categorize.UseCases, ", "))
	fmt.Fprintf(&b, "  sourceTypes: zero or more of [%s], only when the query names a platform\n", strings.Join(sources, ", "))
	fmt.Fprintf(&b, "  contentTypes: zero or more of [%s], only when the query names a format\n",
		strings.Join(categorize.ContentTypeNames(), ", "))
	b.WriteString("  strategy: one of broad, focused, exact\n")
	return b.String()
}

func parseIntent(raw string) (Intent, error) {
	body, err := categorize.UnwrapJSON(raw)
	if err != nil {
		return Intent{}, err
	}
	var resp intentResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return Intent{}, fmt.Errorf("decode intent: %w", err)
	}

	intent := Intent{Strategy: StrategyBroad}
	seen := map[string]bool{}
	for _, kw := range resp.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		intent.Keywords = append(intent.Keywords, kw)
		if len(intent.Keywords) == MaxKeywords {
			break
		}
	}
	for _, t := range resp.Topics {
		if c, ok := categorize.CanonicalTopic(t); ok && !contains(intent.Topics, c) {
			intent.Topics = append(intent.Topics, c)
		}
	}
	for _, u := range resp.UseCases {
		if c, ok := categorize.CanonicalUseCase(u); ok && !contains(intent.UseCases, c) {
			intent.UseCases = append(intent.UseCases, c)
		}
	}
	for _, s := range resp.SourceTypes {
		st := capture.SourceType(strings.ToLower(strings.TrimSpace(s)))
		if st.Valid() {
			intent.SourceTypes = append(intent.SourceTypes, st)
		}
	}
	for _, c := range resp.ContentTypes {
		ct := capture.ContentType(strings.ToLower(strings.TrimSpace(c)))
		if ct.Valid() {
			intent.ContentTypes = append(intent.ContentTypes, ct)
		}
	}
	switch s := Strategy(strings.ToLower(strings.TrimSpace(resp.Strategy))); s {
	case StrategyBroad, StrategyFocused, StrategyExact:
		intent.Strategy = s
	}
	return intent, nil
}

// fallbackIntent treats every whitespace token longer than two characters as a keyword.
func fallbackIntent(text string) Intent {
	intent := Intent{Strategy: StrategyBroad}
	for _, tok := range strings.Fields(text) {
		tok = strings.ToLower(tok)
		if len([]rune(tok)) <= 2 {
			continue
		}
		intent.Keywords = append(intent.Keywords, tok)
		if len(intent.Keywords) == MaxKeywords {
			break
		}
	}
	return intent
}

func contains(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}
