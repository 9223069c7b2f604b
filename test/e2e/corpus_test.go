package e2e

import (
	"strings"
	"testing"
)

func TestBuildCorpus_size(t *testing.T) {
	c := BuildCorpus(12)
	if len(c.Submissions) != 12 {
		t.Errorf("expected 12 submissions, got %d", len(c.Submissions))
	}
}

func TestBuildCorpus_passagesPresent(t *testing.T) {
	for _, s := range BuildCorpus(12).Submissions {
		for _, src := range s.Sources {
			for _, p := range src.Passages {
				if !strings.Contains(s.Text, p) {
					t.Errorf("%s: passage from %s missing", s.Filename, src.Filename)
				}
			}
		}
	}
}

func TestRuneIndex(t *testing.T) {
	tests := []struct {
		s, sub string
		want   int
	}{
		{"hello world", "world", 6},
		{"héllo world", "world", 6},
		{"数据 abc", "abc", 3},
		{"abc", "zzz", -1},
	}
	for _, tt := range tests {
		if got := RuneIndex(tt.s, tt.sub); got != tt.want {
			t.Errorf("RuneIndex(%q, %q) = %d, want %d", tt.s, tt.sub, got, tt.want)
		}
	}
}

func TestSubmission_Report(t *testing.T) {
	s := BuildCorpus(1).Submissions[0]
	rep := s.Report()
	if len(rep.Matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(rep.Matches))
	}
	runes := []rune(s.Text)
	for _, m := range rep.Matches {
		for _, seg := range m.MatchedSegments {
			if got := string(runes[seg.Start:seg.End]); got != seg.Text {
				t.Errorf("segment [%d,%d) = %q, want %q", seg.Start, seg.End, got, seg.Text)
			}
		}
	}
	if rep.SemanticPercent() != 80 {
		t.Errorf("semantic percent = %d", rep.SemanticPercent())
	}
}
