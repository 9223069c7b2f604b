package models

// Severity buckets a similarity percentage for the report header.
type Severity string

const (
	SeverityHigh     Severity = "High Risk"
	SeverityModerate Severity = "Moderate"
	SeverityLow      Severity = "Low Risk"
)

// SeverityFor returns the severity of a similarity percentage.
func SeverityFor(percent int) Severity {
	switch {
	case percent >= 60:
		return SeverityHigh
	case percent >= 30:
		return SeverityModerate
	default:
		return SeverityLow
	}
}

// GaugeColor is the ring gauge color for the severity.
func (s Severity) GaugeColor() string {
	switch s {
	case SeverityHigh:
		return "#ef4444"
	case SeverityModerate:
		return "#f59e0b"
	default:
		return "#10b981"
	}
}
