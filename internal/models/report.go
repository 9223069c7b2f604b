package models

import (
	"encoding/json"
	"math"

	"github.com/hyperjump/plagiview/internal/highlight"
)

// Report is the payload returned by the backend's /analyze endpoint.
// Several backend generations use different field names for the same value;
// accessor methods resolve them so the raw record is never rewritten.
type Report struct {
	SourceFilename     string         `json:"source_filename,omitempty"`
	Filename           string         `json:"filename,omitempty"`
	SourceText         string         `json:"source_text"`
	OverallSimilarity  *float64       `json:"overall_similarity,omitempty"`
	SemanticSimilarity *float64       `json:"semantic_similarity,omitempty"`
	LexicalSimilarity  *float64       `json:"lexical_similarity,omitempty"`
	PageOrSlideCount   *int           `json:"page_or_slide_count,omitempty"`
	ChunkCount         *int           `json:"chunk_count,omitempty"`
	Metadata           *Metadata      `json:"metadata,omitempty"`
	Matches            []*MatchRecord `json:"matches"`
}

// Metadata describes how the analysed document was stored by the backend.
type Metadata struct {
	DocumentID   string   `json:"document_id,omitempty"`
	FileName     string   `json:"file_name,omitempty"`
	NumChunks    *int     `json:"num_chunks,omitempty"`
	IndexedAt    string   `json:"indexed_at,omitempty"`
	IndexingTime *float64 `json:"indexing_time,omitempty"`
}

// MatchRecord is one repository document found similar to the analysed one.
type MatchRecord struct {
	Filename           string              `json:"filename,omitempty"`
	FileName           string              `json:"file_name,omitempty"`
	SimilarityScore    *float64            `json:"similarity_score,omitempty"`
	SemanticSimilarity *float64            `json:"semantic_similarity,omitempty"`
	Similarity         *float64            `json:"similarity,omitempty"`
	LexicalSimilarity  *float64            `json:"lexical_similarity,omitempty"`
	QueryTextPreview   string              `json:"query_text_preview,omitempty"`
	MatchedTextPreview string              `json:"matched_text_preview,omitempty"`
	MatchedSegments    []highlight.Segment `json:"matched_segments,omitempty"`
}

// ParseReport decodes an /analyze payload.
func ParseReport(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Name returns the analysed document's file name, or "Document" when unknown.
func (r *Report) Name() string {
	switch {
	case r.Filename != "":
		return r.Filename
	case r.SourceFilename != "":
		return r.SourceFilename
	case r.Metadata != nil && r.Metadata.FileName != "":
		return r.Metadata.FileName
	}
	return "Document"
}

// SemanticPercent is the headline similarity, rounded to a whole percent.
// Newer backends report semantic_similarity, older ones overall_similarity.
func (r *Report) SemanticPercent() int {
	return roundPercent(firstOf(r.SemanticSimilarity, r.OverallSimilarity))
}

// LexicalPercent is the exact-overlap similarity, rounded to a whole percent.
func (r *Report) LexicalPercent() int {
	return roundPercent(firstOf(r.LexicalSimilarity))
}

// HighlightMatches converts the match records into highlighter input.
// Nil records are skipped.
func (r *Report) HighlightMatches() []highlight.Match {
	out := make([]highlight.Match, 0, len(r.Matches))
	for _, m := range r.Matches {
		if m == nil {
			continue
		}
		out = append(out, m.HighlightMatch())
	}
	return out
}

// Name returns the matched document's file name.
func (m *MatchRecord) Name() string {
	if m.FileName != "" {
		return m.FileName
	}
	return m.Filename
}

// Score is the raw similarity used to rank matches.
func (m *MatchRecord) Score() float64 {
	return firstOf(m.SimilarityScore, m.SemanticSimilarity, m.Similarity)
}

// Percent is the match similarity as a whole percent. similarity_score is
// already a percentage; semantic_similarity and similarity are fractions.
func (m *MatchRecord) Percent() int {
	if m.SimilarityScore != nil {
		return roundPercent(*m.SimilarityScore)
	}
	return roundPercent(firstOf(m.SemanticSimilarity, m.Similarity) * 100)
}

// LexicalPercent is the match's exact-overlap similarity as a whole percent.
func (m *MatchRecord) LexicalPercent() int {
	return roundPercent(firstOf(m.LexicalSimilarity) * 100)
}

// HighlightMatch converts the record for the highlighter.
func (m *MatchRecord) HighlightMatch() highlight.Match {
	return highlight.Match{
		Label:    m.Name(),
		Score:    m.Score(),
		Segments: m.MatchedSegments,
	}
}

func firstOf(values ...*float64) float64 {
	for _, v := range values {
		if v != nil && !math.IsNaN(*v) {
			return *v
		}
	}
	return 0
}

func roundPercent(v float64) int {
	return int(math.Round(v))
}
