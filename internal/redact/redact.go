package redact

import (
	"fmt"
	"regexp"

	"github.com/calionestevar/orionai/internal/config"
)

// Built-in PII kinds. The default patterns may be overridden per rule.
var builtinPatterns = map[string]string{
	"email":       `\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`,
	"ssn":         `\b\d{3}-\d{2}-\d{4}\b`,
	"phone":       `\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`,
	"credit_card": `\b\d{4}[\s\-]?\d{4}[\s\-]?\d{4}[\s\-]?\d{4}\b`,
	"ip_address":  `\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`,
}

// PatternFor returns the built-in regex for a PII kind.
func PatternFor(kind string) (string, bool) {
	p, ok := builtinPatterns[kind]
	return p, ok
}

// Rule is one compiled substitution, applied in configuration order.
type Rule struct {
	Kind        string
	Replacement string
	re          *regexp.Regexp
}

// Redactor applies an ordered list of PII substitutions. It is
// non-terminal: it never rejects text, only rewrites it.
type Redactor struct {
	enabled bool
	rules   []Rule
}

// NewRedactor compiles the configured rules. Unknown kinds without an
// explicit pattern and malformed patterns are hard errors surfaced at
// initialization time.
func NewRedactor(cfg config.RedactionConfig) (*Redactor, error) {
	r := &Redactor{enabled: cfg.Enabled}
	for i, rc := range cfg.Rules {
		pattern := rc.Pattern
		if pattern == "" {
			builtin, ok := PatternFor(rc.Kind)
			if !ok {
				return nil, fmt.Errorf("redaction rule %d: unknown kind %q and no pattern given", i, rc.Kind)
			}
			pattern = builtin
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("redaction rule %d (%s): %w", i, rc.Kind, err)
		}
		r.rules = append(r.rules, Rule{
			Kind:        rc.Kind,
			Replacement: rc.Replacement,
			re:          re,
		})
	}
	return r, nil
}

// Redact applies every rule independently; several kinds may rewrite the
// same text. The second return reports whether anything changed.
// Redaction is idempotent: replacement tokens never match the patterns.
func (r *Redactor) Redact(text string) (string, bool) {
	if r == nil || !r.enabled {
		return text, false
	}
	out := text
	for _, rule := range r.rules {
		out = rule.re.ReplaceAllString(out, rule.Replacement)
	}
	return out, out != text
}
