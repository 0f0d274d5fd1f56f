package policy

import "time"

// Result is the final routing decision for one piece of text.
type Result string

const (
	ResultApproved    Result = "approved"
	ResultSanitized   Result = "sanitized"
	ResultQuarantined Result = "quarantined"
	ResultRejected    Result = "rejected"
)

// Rules attached to reports that never reached the detectors.
const (
	RuleNotInitialized = "not initialized"
	RuleSafeModeActive = "safe mode active"
	RulePIISanitized   = "PII sanitized"
)

// Report describes one validation pass. It is created fresh per call,
// populated during that single pass, and owned by the caller afterwards.
// Quarantined reports are additionally copied by value into the ledger.
type Report struct {
	AISystem      string `json:"ai_system"`
	OriginalText  string `json:"original_text"`
	SanitizedText string `json:"sanitized_text"`
	Context       string `json:"context,omitempty"`

	Result         Result   `json:"result"`
	TriggeredRules []string `json:"triggered_rules,omitempty"`
	SuspicionScore float64  `json:"suspicion_score"`

	// ConfidenceScore is reserved for future scoring; no detector
	// adjusts it today and it always reads 1.0.
	ConfidenceScore float64 `json:"confidence_score"`

	Timestamp time.Time `json:"timestamp"`
}

// Valid reports whether the text is usable by the caller.
func (r Report) Valid() bool {
	return r.Result == ResultApproved || r.Result == ResultSanitized
}

func newReport(aiSystem, text, contextNote string) Report {
	return Report{
		AISystem:        aiSystem,
		OriginalText:    text,
		SanitizedText:   text,
		Context:         contextNote,
		Result:          ResultApproved,
		ConfidenceScore: 1.0,
		Timestamp:       time.Now().UTC(),
	}
}
