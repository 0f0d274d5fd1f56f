package policy

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/calionestevar/orionai/internal/redact"
)

// Snapshot is a point-in-time copy of the ledger counters.
type Snapshot struct {
	Total       int64 `json:"total"`
	Approved    int64 `json:"approved"`
	Rejected    int64 `json:"rejected"`
	Quarantined int64 `json:"quarantined"`
}

// Ledger holds the validation counters and the quarantined report list.
// Counters are atomics so Snapshot never takes a lock; the report slice
// is guarded by the engine mutex like the rest of the shared state.
type Ledger struct {
	total       atomic.Int64
	approved    atomic.Int64
	rejected    atomic.Int64
	quarantined atomic.Int64

	reports []Report
}

// Snapshot returns a lock-free copy of the four counters. The counters
// satisfy approved+rejected+quarantined == total after every completed
// call; a concurrent in-flight call may be observed between increments.
func (l *Ledger) Snapshot() Snapshot {
	return Snapshot{
		Total:       l.total.Load(),
		Approved:    l.approved.Load(),
		Rejected:    l.rejected.Load(),
		Quarantined: l.quarantined.Load(),
	}
}

// appendQuarantine stores a copy of the report for audit reads.
// Caller must hold the engine mutex.
func (l *Ledger) appendQuarantine(r Report) {
	l.reports = append(l.reports, r)
}

// quarantineReports copies the stored reports.
// Caller must hold the engine mutex.
func (l *Ledger) quarantineReports() []Report {
	out := make([]Report, len(l.reports))
	copy(out, l.reports)
	return out
}

// buildComplianceReport renders the audit summary. Percentages are
// guarded against a zero total; quarantined text is passed through the
// PII scrubber before it reaches the report file.
func buildComplianceReport(now time.Time, snap Snapshot, safeModeActive bool, quarantined []Report) string {
	var b strings.Builder

	b.WriteString("ORIONAI COMPLIANCE REPORT\n")
	b.WriteString("=========================\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", now.Format(time.RFC3339))
	fmt.Fprintf(&b, "Total Validations: %d\n", snap.Total)

	if snap.Total > 0 {
		total := float64(snap.Total)
		fmt.Fprintf(&b, "Approved: %d (%.1f%%)\n", snap.Approved, float64(snap.Approved)*100.0/total)
		fmt.Fprintf(&b, "Rejected: %d (%.1f%%)\n", snap.Rejected, float64(snap.Rejected)*100.0/total)
		fmt.Fprintf(&b, "Quarantined: %d (%.1f%%)\n", snap.Quarantined, float64(snap.Quarantined)*100.0/total)
	}

	// The safe-mode flag is binary, so this reads 0 or 1 rather than a
	// cumulative activation count. Known limitation of the state model.
	activations := 0
	if safeModeActive {
		activations = 1
	}
	fmt.Fprintf(&b, "Safe Mode Activations: %d\n\n", activations)

	if len(quarantined) > 0 {
		b.WriteString("QUARANTINED OUTPUTS:\n")
		b.WriteString("-------------------\n")
		for _, qr := range quarantined {
			fmt.Fprintf(&b, "\n[%s] %s\n", qr.Timestamp.Format(time.RFC3339), qr.AISystem)
			fmt.Fprintf(&b, "Text: %s\n", redact.String(qr.OriginalText))
			fmt.Fprintf(&b, "Suspicion Score: %.2f\n", qr.SuspicionScore)
			b.WriteString("Rules Triggered:\n")
			for _, rule := range qr.TriggeredRules {
				fmt.Fprintf(&b, "  - %s\n", rule)
			}
		}
	}

	return b.String()
}
