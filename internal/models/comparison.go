package models

import (
	"encoding/json"

	"github.com/hyperjump/plagiview/internal/highlight"
)

// Comparison is the payload returned by the backend's /compare endpoint.
type Comparison struct {
	SourceFilename  string         `json:"source_filename"`
	TargetFilename  string         `json:"target_filename"`
	SimilarityScore float64        `json:"similarity_score"`
	SourceText      string         `json:"source_text"`
	TargetText      string         `json:"target_text"`
	Matches         []*SpanPairing `json:"matches"`
}

// SpanPairing links a range of the source document to a range of the target.
type SpanPairing struct {
	Text        string `json:"text,omitempty"`
	SourceStart int    `json:"source_start"`
	SourceEnd   int    `json:"source_end"`
	TargetStart int    `json:"target_start"`
	TargetEnd   int    `json:"target_end"`
}

// ParseComparison decodes a /compare payload.
func ParseComparison(data []byte) (*Comparison, error) {
	var c Comparison
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// SourceSpans returns the source side of every pairing.
func (c *Comparison) SourceSpans() []highlight.Span {
	return c.spans(func(p *SpanPairing) highlight.Span {
		return highlight.Span{Start: p.SourceStart, End: p.SourceEnd}
	})
}

// TargetSpans returns the target side of every pairing.
func (c *Comparison) TargetSpans() []highlight.Span {
	return c.spans(func(p *SpanPairing) highlight.Span {
		return highlight.Span{Start: p.TargetStart, End: p.TargetEnd}
	})
}

func (c *Comparison) spans(side func(*SpanPairing) highlight.Span) []highlight.Span {
	out := make([]highlight.Span, 0, len(c.Matches))
	for _, p := range c.Matches {
		if p != nil {
			out = append(out, side(p))
		}
	}
	return out
}
