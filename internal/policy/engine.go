package policy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/calionestevar/orionai/internal/alert"
	"github.com/calionestevar/orionai/internal/config"
	"github.com/calionestevar/orionai/internal/detect"
	"github.com/calionestevar/orionai/internal/redact"
	"github.com/calionestevar/orionai/internal/safety"
	"github.com/calionestevar/orionai/internal/telemetry"
)

var (
	// ErrAlreadyInitialized is returned by a second Initialize call.
	ErrAlreadyInitialized = errors.New("engine already initialized")
)

// Safe-mode trigger reasons, recorded in alerts and telemetry.
const (
	reasonBiasTrip         = "Bias detection - immediate safety protocol"
	reasonFailureThreshold = "Consecutive validation failures threshold exceeded"
)

// Engine is the validation pipeline. One engine owns the safety state
// and the metrics ledger for the whole process; Validate is safe for
// concurrent callers. A single mutex linearizes the counter updates,
// safe-mode transitions and quarantine appends; alert delivery happens
// outside the lock on a background queue.
type Engine struct {
	mu          sync.Mutex
	initialized bool

	cfg         *config.Config
	scanner     *detect.ContentScanner
	adversarial *detect.AdversarialFilter
	redactor    *redact.Redactor
	state       *safety.State
	ledger      *Ledger

	emitter *alert.Emitter
	tel     *telemetry.Provider
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithAlertEmitter attaches the fire-and-forget alert queue.
func WithAlertEmitter(em *alert.Emitter) Option {
	return func(e *Engine) { e.emitter = em }
}

// WithTelemetry attaches the OTEL provider.
func WithTelemetry(p *telemetry.Provider) Option {
	return func(e *Engine) { e.tel = p }
}

// New returns an uninitialized engine. Every Validate call before a
// successful Initialize is rejected with the "not initialized" rule.
func New(opts ...Option) *Engine {
	e := &Engine{
		ledger: &Ledger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize validates the configuration, compiles every detector and
// moves the engine to the ready state. Any malformed pattern aborts
// initialization: a silently skipped detector would be a policy hole.
func (e *Engine) Initialize(cfg *config.Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return ErrAlreadyInitialized
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	scanner, err := detect.NewContentScanner(cfg.Scanner)
	if err != nil {
		return fmt.Errorf("content scanner: %w", err)
	}
	redactor, err := redact.NewRedactor(cfg.Redaction)
	if err != nil {
		return fmt.Errorf("redactor: %w", err)
	}

	e.cfg = cfg
	e.scanner = scanner
	e.adversarial = detect.NewAdversarialFilter(cfg.Adversarial)
	e.redactor = redactor
	e.state = safety.NewState(cfg.SafeMode.Enabled, cfg.SafeMode.ConsecutiveFailureThreshold)
	e.initialized = true

	return nil
}

// Validate runs the full pipeline on one piece of AI-produced text.
// The ctx is accepted for tracing and future deadline support; the scan
// itself is pure in-memory work and does not block.
func (e *Engine) Validate(ctx context.Context, aiSystem, text, contextNote string) Report {
	start := time.Now()

	e.mu.Lock()

	if !e.initialized {
		e.mu.Unlock()
		report := newReport(aiSystem, text, contextNote)
		report.Result = ResultRejected
		report.SanitizedText = ""
		report.TriggeredRules = append(report.TriggeredRules, RuleNotInitialized)
		return report
	}

	if e.state.Active() {
		e.mu.Unlock()
		report := newReport(aiSystem, text, contextNote)
		report.Result = ResultRejected
		report.SanitizedText = ""
		report.TriggeredRules = append(report.TriggeredRules, RuleSafeModeActive)
		return report
	}

	e.ledger.total.Add(1)
	report := newReport(aiSystem, text, contextNote)

	var events []*alert.Event

	co := e.scanner.Scan(text)
	if co.Hit {
		events = e.reject(&report, co.Outcome, co.TripSafeMode)
		e.mu.Unlock()
		e.finish(ctx, report, co.Category, start, events)
		return report
	}

	if out := e.adversarial.Scan(text); out.Hit {
		events = e.reject(&report, out, false)
		e.mu.Unlock()
		e.finish(ctx, report, out.Category, start, events)
		return report
	}

	// Advisory signals come from the scan stage, so their rules precede
	// the sanitization rule in the report.
	report.TriggeredRules = append(report.TriggeredRules, co.AdvisoryRules...)
	report.SuspicionScore += co.AdvisoryScore

	sanitized, modified := e.redactor.Redact(text)
	if modified {
		report.Result = ResultSanitized
		report.SanitizedText = sanitized
		report.TriggeredRules = append(report.TriggeredRules, RulePIISanitized)
	}

	if e.shouldQuarantine(report.SuspicionScore, co.AdvisoryPII) {
		report.Result = ResultQuarantined
		e.ledger.quarantined.Add(1)
		e.ledger.appendQuarantine(report)
		events = append(events, e.buildEvent(alert.KindQuarantine, report, ""))
		e.mu.Unlock()
		e.finish(ctx, report, detect.CategoryPII, start, events)
		return report
	}

	e.ledger.approved.Add(1)
	e.state.RecordSuccess()
	e.mu.Unlock()

	e.finish(ctx, report, "", start, nil)
	return report
}

// reject routes a detector hit. Caller holds the mutex.
func (e *Engine) reject(report *Report, out detect.Outcome, zeroTolerance bool) []*alert.Event {
	report.TriggeredRules = append(report.TriggeredRules, out.Rule)
	report.SuspicionScore += out.ScoreDelta

	autoQuarantine := out.Category == detect.CategoryToxicity &&
		e.cfg.Quarantine.Enabled && e.cfg.Quarantine.AutoOnToxicity

	if autoQuarantine {
		report.Result = ResultQuarantined
		e.ledger.quarantined.Add(1)
		e.ledger.appendQuarantine(*report)
	} else {
		report.Result = ResultRejected
		e.ledger.rejected.Add(1)
	}

	tripped := false
	reason := reasonFailureThreshold
	if zeroTolerance {
		if e.state.Trip() {
			tripped = true
			reason = reasonBiasTrip
		}
	}
	if e.state.RecordFailure() {
		tripped = true
	}

	var events []*alert.Event
	if autoQuarantine {
		events = append(events, e.buildEvent(alert.KindQuarantine, *report, ""))
	} else {
		events = append(events, e.buildEvent(alert.KindValidationFailure, *report, ""))
	}
	if tripped {
		events = append(events, e.buildEvent(alert.KindSafeModeActivated, *report, reason))
	}
	return events
}

func (e *Engine) shouldQuarantine(score float64, advisoryPII bool) bool {
	if !e.cfg.Quarantine.Enabled {
		return false
	}
	if score >= e.cfg.Quarantine.SuspicionThreshold {
		return true
	}
	return advisoryPII && e.cfg.Quarantine.AutoOnPII
}

// buildEvent snapshots the report into an alert payload. Caller holds
// the mutex; the event is delivered later, off the hot path.
func (e *Engine) buildEvent(kind alert.Kind, report Report, reason string) *alert.Event {
	return alert.BuildEvent(alert.BuildParams{
		Kind:           kind,
		AISystem:       report.AISystem,
		Result:         string(report.Result),
		Reason:         reason,
		TriggeredRules: report.TriggeredRules,
		SuspicionScore: report.SuspicionScore,
		Text:           report.OriginalText,
		PreviewLevel:   e.cfg.Logging.PreviewLevel,
	})
}

// finish emits alerts, telemetry and log lines after the lock is
// released. Alert delivery is fire-and-forget; a full queue drops the
// event and the counters record the loss.
func (e *Engine) finish(ctx context.Context, report Report, category string, start time.Time, events []*alert.Event) {
	for _, ev := range events {
		e.emitter.Emit(ctx, ev)
		if ev.Kind == alert.KindSafeModeActivated {
			e.tel.RecordSafeModeActivation(ev.Reason)
		}
	}

	durMs := float64(time.Since(start)) / float64(time.Millisecond)
	e.tel.RecordValidation(string(report.Result), category, report.AISystem, durMs, len(report.TriggeredRules))

	switch report.Result {
	case ResultRejected, ResultQuarantined:
		redact.Logf("orionai: %s decision %s: %v", report.AISystem, report.Result, report.TriggeredRules)
	default:
		if e.cfg.Logging.LogAllDecisions {
			redact.Logf("orionai: %s decision %s", report.AISystem, report.Result)
		}
	}
}

// QuickValidate reports whether the text is usable, without the full
// report. For performance-critical call sites.
func (e *Engine) QuickValidate(ctx context.Context, text string) bool {
	report := e.Validate(ctx, "QuickValidate", text, "")
	return report.Valid()
}

// Metrics returns a snapshot of the ledger counters.
func (e *Engine) Metrics() Snapshot {
	return e.ledger.Snapshot()
}

// QuarantinedReports copies the quarantine ledger for audit reads.
func (e *Engine) QuarantinedReports() []Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.quarantineReports()
}

// ExportComplianceReport renders the audit summary text. The caller
// decides where it is written.
func (e *Engine) ExportComplianceReport() string {
	e.mu.Lock()
	active := e.initialized && e.state.Active()
	quarantined := e.ledger.quarantineReports()
	e.mu.Unlock()

	return buildComplianceReport(time.Now().UTC(), e.ledger.Snapshot(), active, quarantined)
}

// IsInSafeMode reports whether the kill switch is engaged.
func (e *Engine) IsInSafeMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized && e.state.Active()
}

// ExitSafeMode clears safe mode and zeroes the failure streak. Only
// this explicit operator call re-enables validation.
func (e *Engine) ExitSafeMode() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return
	}
	if !e.state.Active() {
		redact.Logf("orionai: not in safe mode")
		return
	}
	e.state.Reset()
	redact.Logf("orionai: safe mode deactivated - validation re-enabled")
}

// ConsecutiveFailures exposes the current failure streak for tests and
// status endpoints.
func (e *Engine) ConsecutiveFailures() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return 0
	}
	return e.state.ConsecutiveFailures()
}
