// Package highlight computes character ownership over a document and folds it
// into maximal styled runs for the report and diff views.
//
// Positions are Unicode code point offsets, which is the unit the analysis
// backend reports segment boundaries in.
package highlight

// Segment is a half-open character range [Start, End) attributed to one match.
type Segment struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text,omitempty"`
}

// Match is a candidate source document with the segments it matched.
// Score only decides ordering; Label is what the view shows on hover.
type Match struct {
	Label    string    `json:"label"`
	Score    float64   `json:"score"`
	Segments []Segment `json:"segments,omitempty"`
}

// Owner records which ranked match claimed a character.
// The zero value means the character is not owned by any match.
type Owner struct {
	Owned      bool `json:"owned"`
	MatchIndex int  `json:"match_index"`
	ColorIndex int  `json:"color_index"`
}

// Coverage holds one Owner per character of the document.
type Coverage []Owner

// Span is a half-open character range used by the diff view.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Run is a maximal range of characters sharing the same ownership.
type Run[O comparable] struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Owner O      `json:"owner"`
	Text  string `json:"text"`
}

// Len returns the number of characters in the run.
func (r Run[O]) Len() int {
	return r.End - r.Start
}

// clamp limits [start, end) to [0, n). ok is false when nothing is left.
func clamp(start, end, n int) (lo, hi int, ok bool) {
	lo, hi = start, end
	if lo < 0 {
		lo = 0
	}
	if hi > n {
		hi = n
	}
	return lo, hi, lo < hi
}
