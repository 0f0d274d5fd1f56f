package alert

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/calionestevar/orionai/internal/redact"
)

// Kind classifies an alert event.
type Kind string

const (
	KindValidationFailure Kind = "validation_failure"
	KindSafeModeActivated Kind = "safe_mode_activated"
	KindQuarantine        Kind = "quarantine"
)

// Event is the canonical alert payload delivered to sinks. It doubles as
// the append-only audit record for quarantine and safe-mode entries.
type Event struct {
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	EventID   string    `json:"event_id"`
	Kind      Kind      `json:"kind"`

	AISystem       string   `json:"ai_system"`
	Result         string   `json:"result"`
	Reason         string   `json:"reason,omitempty"`
	TriggeredRules []string `json:"triggered_rules,omitempty"`
	SuspicionScore float64  `json:"suspicion_score"`

	// Preview carries a bounded excerpt of the offending text, governed
	// by the logging preview level. Empty at metadata level.
	Preview string `json:"preview,omitempty"`
}

// BuildParams collects the inputs for one alert event.
type BuildParams struct {
	Kind           Kind
	AISystem       string
	Result         string
	Reason         string
	TriggeredRules []string
	SuspicionScore float64
	Text           string
	PreviewLevel   string // full | redacted | metadata
}

// BuildEvent assembles a canonical event. Previews are always passed
// through the PII scrubber, even at full level.
func BuildEvent(p BuildParams) *Event {
	return &Event{
		Version:        "1",
		Timestamp:      time.Now().UTC(),
		EventID:        newEventID(),
		Kind:           p.Kind,
		AISystem:       p.AISystem,
		Result:         p.Result,
		Reason:         p.Reason,
		TriggeredRules: cloneStrings(p.TriggeredRules),
		SuspicionScore: p.SuspicionScore,
		Preview:        buildPreview(p.PreviewLevel, p.Text),
	}
}

func newEventID() string {
	var buf [16]byte
	_, _ = rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}

func buildPreview(level, text string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "full":
		return redact.String(truncate(text, 500))
	case "redacted":
		return redact.String(truncate(text, 200))
	default:
		// metadata-only: no preview
		return ""
	}
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
