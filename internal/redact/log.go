package redact

import (
	"fmt"
	"log"
	"regexp"
)

// Log scrubbing is independent of the configured redaction rules: local
// log lines must never leak PII even when the operator disables the
// redaction stage of the pipeline.
var (
	emailLogRe = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)
	ssnLogRe   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	ccLogRe    = regexp.MustCompile(`\b\d{4}[\s\-]?\d{4}[\s\-]?\d{4}[\s\-]?\d{4}\b`)
	phoneLogRe = regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)
	ipLogRe    = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
)

// String scrubs known PII shapes from free-form strings.
func String(s string) string {
	if s == "" {
		return s
	}
	out := s
	out = emailLogRe.ReplaceAllString(out, "[EMAIL]")
	out = ssnLogRe.ReplaceAllString(out, "[SSN]")
	out = ccLogRe.ReplaceAllString(out, "[CC]")
	out = phoneLogRe.ReplaceAllString(out, "[PHONE]")
	out = ipLogRe.ReplaceAllString(out, "[IP]")
	return out
}

// Any formats the value with %+v and scrubs the result.
func Any(v any) string {
	return String(fmt.Sprintf("%+v", v))
}

// Sprintf formats like fmt.Sprintf and scrubs the result.
func Sprintf(format string, args ...interface{}) string {
	return String(fmt.Sprintf(format, args...))
}

// Logf prints a scrubbed log line.
func Logf(format string, args ...interface{}) {
	log.Print(Sprintf(format, args...))
}

// Fatalf prints a scrubbed fatal log line.
func Fatalf(format string, args ...interface{}) {
	log.Fatal(Sprintf(format, args...))
}
