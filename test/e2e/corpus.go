// Package e2e provides end-to-end tests over a corpus of submissions with
// passages copied from known repository documents.
package e2e

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/plagiview/internal/highlight"
	"github.com/hyperjump/plagiview/internal/models"
)

// Source is a repository document passages are copied from.
type Source struct {
	Filename string
	Score    float64
	Passages []string
}

// Submission is an analysed document: original filler text with the
// passages of each source spliced in.
type Submission struct {
	Filename string
	Text     string
	Sources  []Source
}

// Corpus holds the submissions used by the end-to-end tests.
type Corpus struct {
	Submissions []Submission
}

var fillers = []string{
	"In this essay I discuss the topic from a personal perspective.",
	"My own experiments suggest a slightly different conclusion.",
	"Further work is needed before any firm claim can be made.",
	"Les résultats préliminaires sont encourageants, mais incomplets.",
	"数据表明该方法在小样本上同样有效。",
}

var passages = []string{
	"Photosynthesis converts light energy into chemical energy stored in glucose.",
	"The mitochondria is the powerhouse of the cell.",
	"Supply and demand determine the market price of a good.",
	"Newton's third law states that every action has an equal and opposite reaction.",
	"La révolution industrielle a transformé l'économie européenne.",
	"量子纠缠是一种非经典的关联。",
}

// BuildCorpus returns n submissions. Submission i copies one passage from
// each of two sources with different scores; the two sources are spliced in
// different orders so ranking, not position, decides the colors.
func BuildCorpus(n int) *Corpus {
	c := &Corpus{}
	for i := 0; i < n; i++ {
		hi := passages[i%len(passages)]
		lo := passages[(i+1)%len(passages)]
		parts := []string{fillers[i%len(fillers)], lo, fillers[(i+1)%len(fillers)], hi, fillers[(i+2)%len(fillers)]}
		if i%2 == 1 {
			parts[1], parts[3] = hi, lo
		}
		c.Submissions = append(c.Submissions, Submission{
			Filename: fmt.Sprintf("submission-%03d.docx", i),
			Text:     strings.Join(parts, " "),
			Sources: []Source{
				{Filename: fmt.Sprintf("repo-low-%03d.pdf", i), Score: 35, Passages: []string{lo}},
				{Filename: fmt.Sprintf("repo-high-%03d.pdf", i), Score: 80, Passages: []string{hi}},
			},
		})
	}
	return c
}

// RuneIndex returns the code point offset of the first occurrence of sub
// in s, or -1.
func RuneIndex(s, sub string) int {
	i := strings.Index(s, sub)
	if i < 0 {
		return -1
	}
	return utf8.RuneCountInString(s[:i])
}

// Report builds the /analyze payload the backend would return for s, with
// segment offsets in code points.
func (s Submission) Report() *models.Report {
	semantic := 0.0
	rep := &models.Report{
		SourceFilename: s.Filename,
		SourceText:     s.Text,
	}
	for _, src := range s.Sources {
		score := src.Score
		rec := &models.MatchRecord{Filename: src.Filename, SimilarityScore: &score}
		for _, p := range src.Passages {
			start := RuneIndex(s.Text, p)
			if start < 0 {
				continue
			}
			rec.MatchedSegments = append(rec.MatchedSegments, highlight.Segment{
				Start: start,
				End:   start + utf8.RuneCountInString(p),
				Text:  p,
			})
		}
		rep.Matches = append(rep.Matches, rec)
		if score > semantic {
			semantic = score
		}
	}
	rep.SemanticSimilarity = &semantic
	return rep
}
