package domain

import dErrors "conforma/pkg/domain-errors"

// Severity grades how serious a nonconformance is. It drives downstream
// automation: critical reports get a corrective action generated on intake.
//
// Usage: construct via ParseSeverity at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

// validSeverities is the single source of truth for valid severities.
var validSeverities = map[Severity]bool{
	SeverityMinor:    true,
	SeverityMajor:    true,
	SeverityCritical: true,
}

// ParseSeverity constructs a Severity from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported; no
// other errors are expected.
func ParseSeverity(s string) (Severity, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "severity cannot be empty")
	}
	sev := Severity(s)
	if !sev.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid severity")
	}
	return sev, nil
}

// IsValid checks if the severity is one of the supported enum values.
func (s Severity) IsValid() bool {
	return validSeverities[s]
}

// IsCritical reports whether the severity mandates a corrective action.
func (s Severity) IsCritical() bool {
	return s == SeverityCritical
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}
