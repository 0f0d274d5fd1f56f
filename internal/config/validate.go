package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Validate checks the loaded config for safe values and compiles every
// configured regex once. A malformed pattern is a hard error: silently
// skipping a detector would weaken the policy without anyone noticing.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Logging.PreviewLevel)) {
	case "", "full", "redacted", "metadata":
	default:
		return fmt.Errorf("logging.preview_level must be full, redacted or metadata, got %q", cfg.Logging.PreviewLevel)
	}

	for i, p := range cfg.Scanner.PIIPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("scanner.pii_patterns[%d]: %w", i, err)
		}
	}

	for i, r := range cfg.Redaction.Rules {
		if strings.TrimSpace(r.Kind) == "" {
			return fmt.Errorf("redaction.rules[%d] missing kind", i)
		}
		if strings.TrimSpace(r.Replacement) == "" {
			return fmt.Errorf("redaction.rules[%d] (%s) missing replacement", i, r.Kind)
		}
		if r.Pattern != "" {
			if _, err := regexp.Compile(r.Pattern); err != nil {
				return fmt.Errorf("redaction.rules[%d] (%s): %w", i, r.Kind, err)
			}
		}
	}

	if cfg.Quarantine.SuspicionThreshold < 0 {
		return fmt.Errorf("quarantine.suspicion_threshold must be non-negative, got %v", cfg.Quarantine.SuspicionThreshold)
	}
	if cfg.SafeMode.ConsecutiveFailureThreshold < 0 {
		return fmt.Errorf("safe_mode.consecutive_failure_threshold must be non-negative, got %d", cfg.SafeMode.ConsecutiveFailureThreshold)
	}

	if err := validateAlertsConfig(cfg.Alerts); err != nil {
		return err
	}

	if err := validateTelemetryConfig(cfg.Telemetry); err != nil {
		return err
	}

	return nil
}

func validateAlertsConfig(a AlertsConfig) error {
	for i, s := range a.Sinks {
		switch strings.ToLower(strings.TrimSpace(s.Type)) {
		case "file_jsonl":
			if strings.TrimSpace(s.Path) == "" {
				return fmt.Errorf("alerts.sinks[%d] (file_jsonl) missing path", i)
			}
		case "webhook":
			if strings.TrimSpace(s.URL) == "" {
				return fmt.Errorf("alerts.sinks[%d] (webhook) missing url", i)
			}
			u, err := url.Parse(s.URL)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("alerts.sinks[%d] (webhook) has invalid url", i)
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return fmt.Errorf("alerts.sinks[%d] (webhook) url must be http or https", i)
			}
		default:
			return fmt.Errorf("alerts.sinks[%d] has unknown type %q", i, s.Type)
		}
		for _, k := range s.Kinds {
			switch k {
			case "validation_failure", "safe_mode_activated", "quarantine":
			default:
				return fmt.Errorf("alerts.sinks[%d] has unknown kind %q", i, k)
			}
		}
	}
	return nil
}

func validateTelemetryConfig(t TelemetryConfig) error {
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.Endpoint) == "" {
		return errors.New("telemetry enabled but endpoint is empty")
	}
	if t.Protocol != "" {
		switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
		case "grpc", "http":
		default:
			return fmt.Errorf("telemetry.protocol must be grpc or http, got %q", t.Protocol)
		}
	}
	return nil
}
