// Package inbox renders payload files dropped into watched directories to
// standalone HTML pages.
package inbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/plagiview/internal/config"
	"github.com/hyperjump/plagiview/internal/fileid"
	"github.com/hyperjump/plagiview/internal/metrics"
	"github.com/hyperjump/plagiview/internal/render"
	"github.com/hyperjump/plagiview/internal/watcher"
	"go.uber.org/zap"
)

// Results recorded in the inbox metrics.
const (
	ResultRendered = "rendered"
	ResultSkipped  = "skipped"
	ResultFailed   = "failed"
	ResultRemoved  = "removed"
)

// Processor renders payload files into OutputDir.
type Processor struct {
	renderer  *render.Renderer
	outputDir string
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithMetrics counts processed files by result.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithLogger sets the processor logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProcessor creates a processor writing pages to outputDir.
func NewProcessor(renderer *render.Renderer, outputDir string, opts ...Option) *Processor {
	p := &Processor{
		renderer:  renderer,
		outputDir: outputDir,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OutputPath returns where the page for payloadPath is written.
func (p *Processor) OutputPath(payloadPath string) string {
	abs, err := filepath.Abs(payloadPath)
	if err != nil {
		abs = payloadPath
	}
	return filepath.Join(p.outputDir, fileid.PageName(abs))
}

// Process renders the payload at path and returns the page path. An empty
// file is skipped and returns "" with no error.
func (p *Processor) Process(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		p.count(ResultFailed)
		return "", fmt.Errorf("read payload: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		p.count(ResultSkipped)
		return "", nil
	}
	view, err := p.renderer.Payload(data, "")
	if err != nil {
		p.count(ResultFailed)
		return "", fmt.Errorf("render %s: %w", path, err)
	}
	out := p.OutputPath(path)
	if err := writePage(out, view); err != nil {
		p.count(ResultFailed)
		return "", err
	}
	p.count(ResultRendered)
	p.logger.Debug("inbox page rendered", zap.String("payload", path), zap.String("page", out))
	return out, nil
}

// writePage writes through a temp file so readers never see a partial page.
func writePage(path string, view any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".page-*.html")
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := render.WriteHTML(tmp, view); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write page: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write page: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("write page: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Remove deletes the page rendered from path. A missing page is not an error.
func (p *Processor) Remove(path string) error {
	out := p.OutputPath(path)
	if err := os.Remove(out); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove page: %w", err)
	}
	p.count(ResultRemoved)
	p.logger.Debug("inbox page removed", zap.String("payload", path), zap.String("page", out))
	return nil
}

func (p *Processor) count(result string) {
	if p.metrics != nil {
		p.metrics.InboxFilesTotal.WithLabelValues(result).Inc()
	}
}

// Watch starts a watcher over the configured inbox directories that feeds
// p, then renders the payloads already present. The watcher stops when ctx
// is cancelled.
func Watch(ctx context.Context, cfg *config.InboxConfig, p *Processor, opts ...watcher.Option) (*watcher.Watcher, error) {
	w := watcher.New(
		cfg.Directories,
		cfg.Extensions,
		cfg.RecursiveOrDefault(),
		func(path string) {
			if _, err := p.Process(path); err != nil {
				p.logger.Warn("inbox render failed", zap.String("path", path), zap.Error(err))
			}
		},
		func(path string) {
			if err := p.Remove(path); err != nil {
				p.logger.Warn("inbox remove failed", zap.String("path", path), zap.Error(err))
			}
		},
		append([]watcher.Option{watcher.WithWorkers(cfg.Workers)}, opts...)...,
	)
	if err := w.Start(ctx); err != nil {
		return nil, fmt.Errorf("start inbox watcher: %w", err)
	}
	if err := w.SyncExistingFiles(ctx); err != nil {
		p.logger.Warn("inbox sync interrupted", zap.Error(err))
	}
	return w, nil
}
