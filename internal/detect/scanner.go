package detect

import "strings"

// Category identifiers attached to detector outcomes.
const (
	CategoryHallucination    = "hallucination"
	CategoryBias             = "bias"
	CategoryToxicity         = "toxicity"
	CategoryPromptInjection  = "prompt_injection"
	CategoryDataExfiltration = "data_exfiltration"
	CategoryPII              = "pii"
)

// Outcome reports the first matching detector category, if any.
// A zero Outcome means no category matched.
type Outcome struct {
	Hit        bool
	Category   string
	Rule       string
	Pattern    string
	ScoreDelta float64
}

// KeywordList is an ordered, case-insensitive substring matcher.
// The first pattern in list order that occurs in the text wins; there is
// no scoring of later matches. Matching is deterministic and allocation
// free after construction.
type KeywordList struct {
	patterns []string
	lowered  []string
}

// NewKeywordList lowercases the patterns once up front. Empty or
// whitespace-only entries are dropped.
func NewKeywordList(patterns []string) KeywordList {
	kl := KeywordList{
		patterns: make([]string, 0, len(patterns)),
		lowered:  make([]string, 0, len(patterns)),
	}
	for _, p := range patterns {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		kl.patterns = append(kl.patterns, trimmed)
		kl.lowered = append(kl.lowered, strings.ToLower(trimmed))
	}
	return kl
}

// Len reports the number of usable patterns.
func (kl KeywordList) Len() int { return len(kl.patterns) }

// Match returns the first pattern contained in text, with its position in
// the list. The text should already be lowercased by the caller so that a
// single pass serves several lists.
func (kl KeywordList) Match(loweredText string) (pattern string, index int, ok bool) {
	for i, p := range kl.lowered {
		if strings.Contains(loweredText, p) {
			return kl.patterns[i], i, true
		}
	}
	return "", -1, false
}
