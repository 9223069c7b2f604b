// Package render turns backend payloads into report and diff views, memoising
// each rendered view under a stable ID.
package render

import (
	"encoding/json"
	"fmt"
	"html"
	"math"

	"github.com/google/uuid"
	"github.com/hyperjump/plagiview/internal/highlight"
	"github.com/hyperjump/plagiview/internal/metrics"
	"github.com/hyperjump/plagiview/internal/models"
	"github.com/hyperjump/plagiview/pkg/utils"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// viewNamespace seeds the name-based UUIDs of rendered views.
var viewNamespace = uuid.MustParse("6f1c9a52-3d0e-4b7a-9c41-2f8e5d7b0a13")

const defaultPreviewChars = 200

// Renderer builds views. It is safe for concurrent use.
type Renderer struct {
	palette      highlight.Palette
	previewChars int
	cache        *ViewCache
	policy       *bluemonday.Policy
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithPalette overrides the match palette. An empty palette keeps the default.
func WithPalette(p highlight.Palette) Option {
	return func(r *Renderer) {
		if len(p) > 0 {
			r.palette = p
		}
	}
}

// WithCacheSize sets how many rendered views are kept for lookup by ID.
func WithCacheSize(n int) Option {
	return func(r *Renderer) { r.cache = NewViewCache(n) }
}

// WithPreviewChars limits the length of match previews in the sidebar.
func WithPreviewChars(n int) Option {
	return func(r *Renderer) { r.previewChars = n }
}

// WithMetrics records render counts and cache results.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Renderer) { r.metrics = m }
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// NewRenderer creates a renderer with the default palette and a 256 entry cache.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		palette:      highlight.DefaultPalette,
		previewChars: defaultPreviewChars,
		cache:        NewViewCache(256),
		policy:       bluemonday.StrictPolicy(),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Palette returns the palette views are colored with.
func (r *Renderer) Palette() highlight.Palette {
	return r.palette
}

// Report renders an /analyze payload. A nil report renders as an empty one.
func (r *Renderer) Report(rep *models.Report) *ReportView {
	if rep == nil {
		rep = &models.Report{}
	}
	id, memo := r.viewID(models.KindReport, rep)
	if !memo {
		return r.buildReport(id, rep)
	}
	v := r.memoise(models.KindReport, id, func() any { return r.buildReport(id, rep) })
	if view, ok := v.(*ReportView); ok {
		return view
	}
	return r.buildReport(id, rep)
}

func (r *Renderer) buildReport(id string, rep *models.Report) *ReportView {
	ranked, runs := highlight.Highlight(rep.SourceText, rep.HighlightMatches(), r.palette.Len())
	records := rankedRecords(rep.Matches, ranked)

	semantic := rep.SemanticPercent()
	severity := models.SeverityFor(semantic)
	view := &ReportView{
		ID:              id,
		Kind:            models.KindReport,
		Filename:        r.clean(rep.Name()),
		SemanticPercent: semantic,
		LexicalPercent:  rep.LexicalPercent(),
		Severity:        severity,
		GaugeColor:      severity.GaugeColor(),
		PageCount:       rep.PageOrSlideCount,
		ChunkCount:      rep.ChunkCount,
		HasText:         rep.SourceText != "",
		Runs:            make([]RunView, 0, len(runs)),
		Matches:         make([]MatchView, 0, len(ranked)),
		Metadata:        rep.Metadata,
	}

	owned := make([]int, len(ranked))
	for _, run := range runs {
		rv := RunView{Start: run.Start, End: run.End, Text: run.Text, MatchIndex: -1}
		if run.Owner.Owned {
			color := r.palette.At(run.Owner.ColorIndex)
			rv.Owned = true
			rv.MatchIndex = run.Owner.MatchIndex
			rv.Color = &color
			rv.Label = r.clean(ranked[run.Owner.MatchIndex].Label)
			owned[run.Owner.MatchIndex] += run.Len()
		}
		view.Runs = append(view.Runs, rv)
	}

	for i, m := range ranked {
		card := MatchView{
			Rank:       i + 1,
			Name:       r.clean(m.Label),
			Color:      r.palette.At(i),
			OwnedChars: owned[i],
		}
		if rec := records[i]; rec != nil {
			card.Percent = rec.Percent()
			card.LexicalPercent = rec.LexicalPercent()
			card.QueryPreview = r.preview(rec.QueryTextPreview)
			card.MatchedPreview = r.preview(rec.MatchedTextPreview)
		}
		for _, seg := range m.Segments {
			if p := r.preview(seg.Text); p != "" {
				card.Segments = append(card.Segments, p)
			}
		}
		view.Matches = append(view.Matches, card)
	}

	r.observe(models.KindReport, len(view.Runs))
	r.logger.Debug("report rendered",
		zap.String("id", id),
		zap.Int("matches", len(ranked)),
		zap.Int("runs", len(view.Runs)))
	return view
}

// Diff renders a /compare payload. A nil comparison renders as an empty one.
func (r *Renderer) Diff(cmp *models.Comparison) *DiffView {
	if cmp == nil {
		cmp = &models.Comparison{}
	}
	id, memo := r.viewID(models.KindComparison, cmp)
	if !memo {
		return r.buildDiff(id, cmp)
	}
	v := r.memoise(models.KindComparison, id, func() any { return r.buildDiff(id, cmp) })
	if view, ok := v.(*DiffView); ok {
		return view
	}
	return r.buildDiff(id, cmp)
}

func (r *Renderer) buildDiff(id string, cmp *models.Comparison) *DiffView {
	view := &DiffView{
		ID:              id,
		Kind:            models.KindComparison,
		SourceFilename:  r.clean(cmp.SourceFilename),
		TargetFilename:  r.clean(cmp.TargetFilename),
		SimilarityScore: cmp.SimilarityScore,
		Severity:        models.SeverityFor(int(math.Round(cmp.SimilarityScore))),
		Source:          pane(cmp.SourceText, cmp.SourceSpans()),
		Target:          pane(cmp.TargetText, cmp.TargetSpans()),
	}

	r.observe(models.KindComparison, len(view.Source.Runs), len(view.Target.Runs))
	r.logger.Debug("comparison rendered",
		zap.String("id", id),
		zap.Int("source_runs", len(view.Source.Runs)),
		zap.Int("target_runs", len(view.Target.Runs)))
	return view
}

// Payload decodes a raw backend payload and renders it. An empty kind is
// detected from the payload.
func (r *Renderer) Payload(data []byte, kind models.Kind) (any, error) {
	if kind == "" {
		detected, err := models.DetectKind(data)
		if err != nil {
			return nil, err
		}
		kind = detected
	}
	switch kind {
	case models.KindReport:
		rep, err := models.ParseReport(data)
		if err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
		return r.Report(rep), nil
	case models.KindComparison:
		cmp, err := models.ParseComparison(data)
		if err != nil {
			return nil, fmt.Errorf("decode comparison: %w", err)
		}
		return r.Diff(cmp), nil
	}
	return nil, fmt.Errorf("unknown payload kind %q", kind)
}

// Lookup returns a previously rendered *ReportView or *DiffView by ID.
func (r *Renderer) Lookup(id string) (any, bool) {
	return r.cache.Get(id)
}

func pane(text string, spans []highlight.Span) Pane {
	runs := highlight.HighlightUnion(text, spans)
	p := Pane{Runs: make([]DiffRun, 0, len(runs))}
	for _, run := range runs {
		p.Runs = append(p.Runs, DiffRun{Start: run.Start, End: run.End, Text: run.Text, Highlighted: run.Owner})
		p.TotalChars += run.Len()
		if run.Owner {
			p.CoveredChars += run.Len()
		}
	}
	return p
}

// rankedRecords lines the original records up with the ranked matches.
// Ranking is a stable sort of the non-nil records, so replaying it on the
// records gives the same order.
func rankedRecords(records []*models.MatchRecord, ranked []highlight.Match) []*models.MatchRecord {
	present := make([]*models.MatchRecord, 0, len(records))
	for _, rec := range records {
		if rec != nil {
			present = append(present, rec)
		}
	}
	out := make([]*models.MatchRecord, len(ranked))
	used := make([]bool, len(present))
	for i, m := range ranked {
		for j, rec := range present {
			if !used[j] && rec.Score() == m.Score && rec.Name() == m.Label {
				out[i] = rec
				used[j] = true
				break
			}
		}
	}
	return out
}

// viewID derives a stable ID from the payload. memo is false when the payload
// cannot be encoded, in which case the view gets a random ID and is not cached.
func (r *Renderer) viewID(kind models.Kind, payload any) (id string, memo bool) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Debug("payload not memoisable", zap.String("kind", string(kind)), zap.Error(err))
		return uuid.NewString(), false
	}
	return uuid.NewSHA1(viewNamespace, append([]byte(kind+":"), data...)).String(), true
}

// memoise returns the cached view for id or renders it once with build.
func (r *Renderer) memoise(kind models.Kind, id string, build func() any) any {
	v, cached := r.cache.GetOrCompute(id, build)
	if r.metrics != nil {
		result := "miss"
		if cached {
			result = "hit"
		}
		r.metrics.RenderCache.WithLabelValues(string(kind), result).Inc()
	}
	return v
}

// observe counts one render and the run count of each of its panes.
func (r *Renderer) observe(kind models.Kind, paneRuns ...int) {
	if r.metrics == nil {
		return
	}
	r.metrics.RendersTotal.WithLabelValues(string(kind)).Inc()
	for _, n := range paneRuns {
		r.metrics.RenderRuns.WithLabelValues(string(kind)).Observe(float64(n))
	}
}

// clean strips markup from backend supplied names and returns plain text.
func (r *Renderer) clean(s string) string {
	return html.UnescapeString(r.policy.Sanitize(s))
}

func (r *Renderer) preview(s string) string {
	return utils.Truncate(utils.CollapseSpace(s), r.previewChars)
}
