// Package server provides the HTTP API and report pages for plagiview.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/plagiview/internal/backend"
	"github.com/hyperjump/plagiview/internal/config"
	"github.com/hyperjump/plagiview/internal/metrics"
	"github.com/hyperjump/plagiview/internal/render"
	"go.uber.org/zap"
)

// WatchService manages inbox directories at runtime. Optional.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the plagiview API.
type Server struct {
	renderer *render.Renderer
	backend  *backend.Client
	metrics  *metrics.Metrics
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server

	watch      WatchService
	configPath string
	configMu   sync.Mutex
}

// NewServer creates a server with the given dependencies. watch may be nil
// when the inbox is disabled; configPath is where inbox changes are saved
// (empty disables persistence).
func NewServer(
	renderer *render.Renderer,
	client *backend.Client,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
	watch WatchService,
	configPath string,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		renderer:   renderer,
		backend:    client,
		metrics:    m,
		config:     cfg,
		logger:     logger,
		watch:      watch,
		configPath: configPath,
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	r.Use(middleware.Timeout(s.requestTimeout()))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/render/report", s.handleRenderReport)
		r.Post("/render/diff", s.handleRenderDiff)
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/compare", s.handleCompare)
		r.Get("/reports/{id}", s.handleGetReport)

		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/stats", s.handleDocumentStats)
		r.Delete("/documents/{id}", s.handleDeleteDocument)

		r.Get("/users", s.handleListUsers)
		r.Post("/users/teacher", s.handleAddTeacher)
		r.Delete("/users/{id}", s.handleDeleteUser)

		r.Get("/inbox/directories", s.handleInboxDirectoriesList)
		r.Post("/inbox/directories", s.handleInboxDirectoriesAdd)
		r.Delete("/inbox/directories", s.handleInboxDirectoriesRemove)
	})
	r.Get("/reports/{id}", s.handleReportPage)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server",
		zap.String("addr", addr),
		zap.String("backend", s.backend.BaseURL()))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestTimeout() time.Duration {
	if s.config.Server.RequestTimeout > 0 {
		return s.config.Server.RequestTimeout
	}
	return 60 * time.Second
}

func (s *Server) maxUploadBytes() int64 {
	if s.config.Server.MaxUploadBytes > 0 {
		return s.config.Server.MaxUploadBytes
	}
	return 50 << 20
}
