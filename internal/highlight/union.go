package highlight

import "unicode/utf8"

// BuildUnionCoverage marks every character covered by at least one span.
// Unlike BuildCoverage there is no ranking: the diff view only shows whether
// a character takes part in some cross-document match, not which one.
func BuildUnionCoverage(text string, spans []Span) []bool {
	n := utf8.RuneCountInString(text)
	covered := make([]bool, n)
	for _, s := range spans {
		lo, hi, ok := clamp(s.Start, s.End, n)
		if !ok {
			continue
		}
		for i := lo; i < hi; i++ {
			covered[i] = true
		}
	}
	return covered
}

// HighlightUnion returns the covered and uncovered runs of text.
func HighlightUnion(text string, spans []Span) []Run[bool] {
	return ExtractRuns(text, BuildUnionCoverage(text, spans))
}
