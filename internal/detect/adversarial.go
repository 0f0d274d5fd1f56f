package detect

import (
	"fmt"
	"strings"

	"github.com/calionestevar/orionai/internal/config"
)

// AdversarialFilter checks prompt-injection and data-exfiltration keyword
// lists, in that order. Both categories carry the full 1.0 score weight.
// The pipeline runs it only when the content scanner produced no hit.
type AdversarialFilter struct {
	enabled      bool
	injection    KeywordList
	exfiltration KeywordList
}

func NewAdversarialFilter(cfg config.AdversarialConfig) *AdversarialFilter {
	return &AdversarialFilter{
		enabled:      cfg.Enabled,
		injection:    NewKeywordList(cfg.PromptInjectionPatterns),
		exfiltration: NewKeywordList(cfg.DataExfiltrationPatterns),
	}
}

// Scan returns the first adversarial category hit, if any.
func (f *AdversarialFilter) Scan(text string) Outcome {
	var out Outcome
	if f == nil || !f.enabled {
		return out
	}

	lowered := strings.ToLower(text)

	if p, _, ok := f.injection.Match(lowered); ok {
		out.Hit = true
		out.Category = CategoryPromptInjection
		out.Pattern = p
		out.Rule = fmt.Sprintf("Prompt injection attempt - '%s'", p)
		out.ScoreDelta = 1.0
		return out
	}

	if p, _, ok := f.exfiltration.Match(lowered); ok {
		out.Hit = true
		out.Category = CategoryDataExfiltration
		out.Pattern = p
		out.Rule = fmt.Sprintf("Data exfiltration attempt - '%s'", p)
		out.ScoreDelta = 1.0
		return out
	}

	return out
}
