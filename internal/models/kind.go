package models

import (
	"encoding/json"
	"fmt"
)

// Kind identifies which backend endpoint produced a payload.
type Kind string

const (
	// KindReport is an /analyze payload.
	KindReport Kind = "report"
	// KindComparison is a /compare payload.
	KindComparison Kind = "comparison"
)

// ParseKind maps a user supplied name to a Kind. "auto" and "" return "".
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "auto":
		return "", nil
	case "report", "analyze":
		return KindReport, nil
	case "comparison", "compare", "diff":
		return KindComparison, nil
	}
	return "", fmt.Errorf("unknown payload kind %q", s)
}

// DetectKind inspects a JSON payload: a target_text field marks a comparison.
func DetectKind(data []byte) (Kind, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}
	if _, ok := probe["target_text"]; ok {
		return KindComparison, nil
	}
	return KindReport, nil
}
