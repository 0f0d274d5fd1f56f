package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the full validation engine configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Scanner     ScannerConfig     `yaml:"scanner"`
	Adversarial AdversarialConfig `yaml:"adversarial"`
	Redaction   RedactionConfig   `yaml:"redaction"`
	Quarantine  QuarantineConfig  `yaml:"quarantine"`
	SafeMode    SafeModeConfig    `yaml:"safe_mode"`
	Alerts      AlertsConfig      `yaml:"alerts"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"` // HTTP listen address, e.g. ":8080"
}

type LoggingConfig struct {
	// PreviewLevel controls how much validated text reaches local logs
	// and alert payloads: full | redacted | metadata.
	PreviewLevel string `yaml:"preview_level"`
	// LogAllDecisions logs every validation outcome, not just failures.
	LogAllDecisions bool `yaml:"log_all_decisions"`
}

// ScannerConfig configures the content scanner categories.
// Keyword lists are case-insensitive substring matches; an empty list
// disables that category without erroring.
type ScannerConfig struct {
	Enabled               bool     `yaml:"enabled"`
	HallucinationPatterns []string `yaml:"hallucination_patterns"`
	BiasKeywords          []string `yaml:"bias_keywords"`
	ToxicityPatterns      []string `yaml:"toxicity_patterns"`
	// PIIPatterns are regexes. Matches are advisory: they raise the
	// suspicion score but never reject on their own.
	PIIPatterns []string `yaml:"pii_patterns"`
}

// AdversarialConfig configures the adversarial input filter.
type AdversarialConfig struct {
	Enabled                  bool     `yaml:"enabled"`
	PromptInjectionPatterns  []string `yaml:"prompt_injection_patterns"`
	DataExfiltrationPatterns []string `yaml:"data_exfiltration_patterns"`
}

// RedactionRule maps one PII kind to a replacement token. Pattern may be
// empty for built-in kinds (email, ssn, phone, credit_card, ip_address);
// custom kinds must supply their own regex.
type RedactionRule struct {
	Kind        string `yaml:"kind"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

type RedactionConfig struct {
	Enabled bool            `yaml:"enabled"`
	Rules   []RedactionRule `yaml:"rules"`
}

type QuarantineConfig struct {
	Enabled            bool    `yaml:"enabled"`
	SuspicionThreshold float64 `yaml:"suspicion_threshold"`
	AutoOnPII          bool    `yaml:"auto_on_pii"`
	AutoOnToxicity     bool    `yaml:"auto_on_toxicity"`
}

type SafeModeConfig struct {
	Enabled                     bool `yaml:"enabled"`
	ConsecutiveFailureThreshold int  `yaml:"consecutive_failure_threshold"`
}

// SinkConfig describes one alert sink destination. An empty Kinds list
// receives every event kind.
type SinkConfig struct {
	Type      string            `yaml:"type"` // file_jsonl | webhook
	Path      string            `yaml:"path"`
	URL       string            `yaml:"url"`
	Headers   map[string]string `yaml:"headers"`
	TimeoutMS int               `yaml:"timeout_ms"`
	Kinds     []string          `yaml:"kinds"` // validation_failure | safe_mode_activated | quarantine
}

type AlertsConfig struct {
	QueueSize int          `yaml:"queue_size"`
	Workers   int          `yaml:"workers"`
	Sinks     []SinkConfig `yaml:"sinks"`
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol"` // grpc | http
	Service  string `yaml:"service"`
	Version  string `yaml:"version"`
}

// Load reads configuration from a YAML file. Absent fields keep their
// defaults; a missing or unparseable file is an error so the engine
// fails closed instead of running with an unknown policy.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)

	return cfg, nil
}

// Default returns the built-in policy: every detector enabled with the
// stock pattern lists.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			PreviewLevel: "metadata",
		},
		Scanner: ScannerConfig{
			Enabled: true,
			HallucinationPatterns: []string{
				"i cannot verify",
				"i'm not sure",
				"i don't know",
				"no information available",
			},
			BiasKeywords: []string{
				"only men",
				"only women",
				"too old",
				"too young",
			},
			ToxicityPatterns: []string{
				"idiot",
				"stupid",
				"loser",
				"pathetic",
			},
		},
		Adversarial: AdversarialConfig{
			Enabled: true,
			PromptInjectionPatterns: []string{
				"ignore previous instructions",
				"disregard all",
				"reveal system prompt",
			},
			DataExfiltrationPatterns: []string{
				"show database",
				"list all tables",
				"export data",
			},
		},
		Redaction: RedactionConfig{
			Enabled: true,
			Rules: []RedactionRule{
				{Kind: "email", Replacement: "[EMAIL]"},
				{Kind: "ssn", Replacement: "[SSN]"},
				{Kind: "phone", Replacement: "[PHONE]"},
			},
		},
		Quarantine: QuarantineConfig{
			Enabled:            true,
			SuspicionThreshold: 0.7,
		},
		SafeMode: SafeModeConfig{
			Enabled:                     true,
			ConsecutiveFailureThreshold: 3,
		},
		Alerts: AlertsConfig{
			QueueSize: 1000,
			Workers:   1,
		},
		Telemetry: TelemetryConfig{
			Service: "orionai",
			Version: "dev",
		},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Logging.PreviewLevel == "" {
		cfg.Logging.PreviewLevel = "metadata"
	}
	if cfg.Quarantine.SuspicionThreshold == 0 {
		cfg.Quarantine.SuspicionThreshold = 0.7
	}
	if cfg.SafeMode.ConsecutiveFailureThreshold == 0 {
		cfg.SafeMode.ConsecutiveFailureThreshold = 3
	}
	if cfg.Alerts.QueueSize <= 0 {
		cfg.Alerts.QueueSize = 1000
	}
	if cfg.Alerts.Workers <= 0 {
		cfg.Alerts.Workers = 1
	}
	if cfg.Telemetry.Service == "" {
		cfg.Telemetry.Service = "orionai"
	}
	if cfg.Telemetry.Version == "" {
		cfg.Telemetry.Version = "dev"
	}
}
