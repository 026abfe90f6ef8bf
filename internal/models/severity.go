package models

import (
	"fmt"
	"strings"
)

// Severity is the band an anomaly falls into. The zero value means no anomaly.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityWarning
	SeverityCritical
	SeverityEmergency
)

var severityNames = map[Severity]string{
	SeverityNone:      "none",
	SeverityWarning:   "warning",
	SeverityCritical:  "critical",
	SeverityEmergency: "emergency",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Valid reports whether s is one of the alerting bands.
func (s Severity) Valid() bool {
	return s >= SeverityWarning && s <= SeverityEmergency
}

// ParseSeverity accepts the lower-case band names, case-insensitively.
func ParseSeverity(raw string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "warning", "warn":
		return SeverityWarning, nil
	case "critical":
		return SeverityCritical, nil
	case "emergency":
		return SeverityEmergency, nil
	case "none", "":
		return SeverityNone, nil
	}
	return SeverityNone, fmt.Errorf("unknown severity %q", raw)
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
