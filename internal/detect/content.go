package detect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/calionestevar/orionai/internal/config"
)

// ContentOutcome extends Outcome with the content scanner's side signals.
type ContentOutcome struct {
	Outcome

	// TripSafeMode is set on bias hits: bias is a zero-tolerance trigger
	// that bypasses the consecutive-failure counter entirely.
	TripSafeMode bool

	// Advisory signals from the PII regexes. They never reject, only
	// raise suspicion; AdvisoryPII additionally marks the text for
	// auto-quarantine when the policy asks for it.
	AdvisoryRules []string
	AdvisoryScore float64
	AdvisoryPII   bool
}

// ContentScanner checks hallucination, bias and toxicity keyword lists in
// that fixed order, short-circuiting on the first hit across all three.
// Score weights per category are fixed: 1.0, 0.9, 0.8.
type ContentScanner struct {
	enabled       bool
	hallucination KeywordList
	bias          KeywordList
	toxicity      KeywordList
	pii           []*regexp.Regexp
}

// NewContentScanner compiles the scanner from config. A malformed PII
// regex is a hard error so initialization aborts instead of running with
// a silently missing detector.
func NewContentScanner(cfg config.ScannerConfig) (*ContentScanner, error) {
	s := &ContentScanner{
		enabled:       cfg.Enabled,
		hallucination: NewKeywordList(cfg.HallucinationPatterns),
		bias:          NewKeywordList(cfg.BiasKeywords),
		toxicity:      NewKeywordList(cfg.ToxicityPatterns),
	}
	for i, p := range cfg.PIIPatterns {
		// PII patterns match case-insensitively, like the keyword lists.
		re, err := regexp.Compile("(?i:" + p + ")")
		if err != nil {
			return nil, fmt.Errorf("pii pattern %d: %w", i, err)
		}
		s.pii = append(s.pii, re)
	}
	return s, nil
}

// Scan runs the three categories in order against text. When a category
// hits, later categories are not checked. The advisory PII pass runs only
// on otherwise clean text, mirroring the short-circuit.
func (s *ContentScanner) Scan(text string) ContentOutcome {
	var out ContentOutcome
	if s == nil || !s.enabled {
		return out
	}

	lowered := strings.ToLower(text)

	if p, _, ok := s.hallucination.Match(lowered); ok {
		out.Hit = true
		out.Category = CategoryHallucination
		out.Pattern = p
		out.Rule = fmt.Sprintf("Hallucination detected - '%s'", p)
		out.ScoreDelta = 1.0
		return out
	}

	if p, _, ok := s.bias.Match(lowered); ok {
		out.Hit = true
		out.Category = CategoryBias
		out.Pattern = p
		out.Rule = fmt.Sprintf("Bias detected - '%s'", p)
		out.ScoreDelta = 0.9
		out.TripSafeMode = true
		return out
	}

	if p, _, ok := s.toxicity.Match(lowered); ok {
		out.Hit = true
		out.Category = CategoryToxicity
		out.Pattern = p
		out.Rule = fmt.Sprintf("Toxicity detected - '%s'", p)
		out.ScoreDelta = 0.8
		return out
	}

	for _, re := range s.pii {
		if re.MatchString(text) {
			out.AdvisoryRules = append(out.AdvisoryRules, "Potential PII detected")
			out.AdvisoryScore = 0.5
			out.AdvisoryPII = true
			break
		}
	}

	return out
}
