package highlight

import (
	"sort"
	"unicode/utf8"
)

// RankMatches returns a copy of matches ordered by descending score.
// Ties keep their original relative order. The input is not modified.
func RankMatches(matches []Match) []Match {
	ranked := make([]Match, len(matches))
	copy(ranked, matches)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// BuildCoverage assigns every character of text to at most one match.
// Matches are ranked first; a character belongs to the highest ranked match
// whose segments cover it, and lower ranked matches only fill gaps.
// The color index is the rank modulo paletteSize; paletteSize <= 0 uses the
// default palette length.
func BuildCoverage(text string, matches []Match, paletteSize int) Coverage {
	return buildCoverage(utf8.RuneCountInString(text), RankMatches(matches), paletteSize)
}

// buildCoverage expects matches already ranked.
func buildCoverage(n int, ranked []Match, paletteSize int) Coverage {
	if paletteSize <= 0 {
		paletteSize = len(DefaultPalette)
	}
	coverage := make(Coverage, n)
	for rank, m := range ranked {
		owner := Owner{Owned: true, MatchIndex: rank, ColorIndex: rank % paletteSize}
		for _, seg := range m.Segments {
			lo, hi, ok := clamp(seg.Start, seg.End, n)
			if !ok {
				continue
			}
			for i := lo; i < hi; i++ {
				if !coverage[i].Owned {
					coverage[i] = owner
				}
			}
		}
	}
	return coverage
}

// Highlight ranks matches and returns them together with the runs of text.
// A run's Owner.MatchIndex indexes into the returned ranked slice.
func Highlight(text string, matches []Match, paletteSize int) ([]Match, []Run[Owner]) {
	ranked := RankMatches(matches)
	coverage := buildCoverage(utf8.RuneCountInString(text), ranked, paletteSize)
	return ranked, ExtractRuns(text, []Owner(coverage))
}
