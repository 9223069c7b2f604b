package render

import (
	"github.com/hyperjump/plagiview/internal/highlight"
	"github.com/hyperjump/plagiview/internal/models"
)

// ReportView is the repository-check report for one analysed document.
type ReportView struct {
	ID              string           `json:"id"`
	Kind            models.Kind      `json:"kind"`
	Filename        string           `json:"filename"`
	SemanticPercent int              `json:"semantic_percent"`
	LexicalPercent  int              `json:"lexical_percent"`
	Severity        models.Severity  `json:"severity"`
	GaugeColor      string           `json:"gauge_color"`
	PageCount       *int             `json:"page_count,omitempty"`
	ChunkCount      *int             `json:"chunk_count,omitempty"`
	HasText         bool             `json:"has_text"`
	Runs            []RunView        `json:"runs"`
	Matches         []MatchView      `json:"matches"`
	Metadata        *models.Metadata `json:"metadata,omitempty"`
}

// RunView is one styled run of the analysed text. Unowned runs carry no
// color or label and render in the default style.
type RunView struct {
	Start      int              `json:"start"`
	End        int              `json:"end"`
	Text       string           `json:"text"`
	Owned      bool             `json:"owned"`
	MatchIndex int              `json:"match_index"`
	Color      *highlight.Color `json:"color,omitempty"`
	Label      string           `json:"label,omitempty"`
}

// MatchView is one sidebar card. Matches are listed in rank order, so the
// card color is the color of the text the match owns.
type MatchView struct {
	Rank           int             `json:"rank"`
	Name           string          `json:"name"`
	Percent        int             `json:"percent"`
	LexicalPercent int             `json:"lexical_percent"`
	Color          highlight.Color `json:"color"`
	QueryPreview   string          `json:"query_preview,omitempty"`
	MatchedPreview string          `json:"matched_preview,omitempty"`
	Segments       []string        `json:"segments,omitempty"`
	OwnedChars     int             `json:"owned_chars"`
}

// DiffView is the side-by-side comparison of two documents.
type DiffView struct {
	ID              string          `json:"id"`
	Kind            models.Kind     `json:"kind"`
	SourceFilename  string          `json:"source_filename"`
	TargetFilename  string          `json:"target_filename"`
	SimilarityScore float64         `json:"similarity_score"`
	Severity        models.Severity `json:"severity"`
	Source          Pane            `json:"source"`
	Target          Pane            `json:"target"`
}

// Pane is one side of a DiffView.
type Pane struct {
	Runs         []DiffRun `json:"runs"`
	CoveredChars int       `json:"covered_chars"`
	TotalChars   int       `json:"total_chars"`
}

// DiffRun is a run of one diff pane; Highlighted runs take part in a match.
type DiffRun struct {
	Start       int    `json:"start"`
	End         int    `json:"end"`
	Text        string `json:"text"`
	Highlighted bool   `json:"highlighted"`
}
