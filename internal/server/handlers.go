package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/plagiview/internal/backend"
	"github.com/hyperjump/plagiview/internal/config"
	"github.com/hyperjump/plagiview/internal/models"
	"github.com/hyperjump/plagiview/internal/render"
	"go.uber.org/zap"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok", "backend": "ok"}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if h, err := s.backend.Health(ctx); err != nil {
		s.logger.Debug("backend health check failed", zap.Error(err))
		resp["backend"] = "unreachable"
	} else if h.Mode != "" {
		resp["backend_mode"] = h.Mode
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRenderReport(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readPayload(w, r)
	if !ok {
		return
	}
	rep, err := models.ParseReport(data)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid report payload")
		return
	}
	s.respondView(w, r, s.renderer.Report(rep))
}

func (s *Server) handleRenderDiff(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readPayload(w, r)
	if !ok {
		return
	}
	cmp, err := models.ParseComparison(data)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid comparison payload")
		return
	}
	s.respondView(w, r, s.renderer.Diff(cmp))
}

func (s *Server) readPayload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUploadBytes()))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return nil, false
		}
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	return data, true
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !s.parseUpload(w, r) {
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	repo := models.RepoType(r.FormValue("repo_type"))
	if repo == "" {
		repo = models.RepoUniversity
	}
	if repo != models.RepoUniversity && repo != models.RepoPersonal {
		s.respondError(w, http.StatusBadRequest, "repo_type must be university or personal")
		return
	}
	addToRepo, _ := strconv.ParseBool(r.FormValue("add_to_repo"))
	req := backend.AnalyzeRequest{
		File:             backend.Upload{Filename: header.Filename, Content: file},
		RepoType:         repo,
		UserID:           r.FormValue("user_id"),
		Role:             r.FormValue("role"),
		AddToRepo:        addToRepo,
		FilenameOverride: r.FormValue("filename_override"),
	}
	s.logger.Debug("analyze request",
		zap.String("filename", header.Filename),
		zap.String("repo_type", string(repo)),
		zap.Bool("add_to_repo", addToRepo))
	rep, err := s.backend.Analyze(r.Context(), req)
	if err != nil {
		s.respondBackendError(w, "analyze", err)
		return
	}
	s.respondView(w, r, s.renderer.Report(rep))
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	if !s.parseUpload(w, r) {
		return
	}
	source, sourceHeader, err := r.FormFile("source_file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "source_file is required")
		return
	}
	defer source.Close()
	target, targetHeader, err := r.FormFile("target_file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "target_file is required")
		return
	}
	defer target.Close()

	s.logger.Debug("compare request",
		zap.String("source", sourceHeader.Filename),
		zap.String("target", targetHeader.Filename))
	cmp, err := s.backend.Compare(r.Context(),
		backend.Upload{Filename: sourceHeader.Filename, Content: source},
		backend.Upload{Filename: targetHeader.Filename, Content: target},
	)
	if err != nil {
		s.respondBackendError(w, "compare", err)
		return
	}
	s.respondView(w, r, s.renderer.Diff(cmp))
}

func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return false
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return false
	}
	return true
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	view, ok := s.renderer.Lookup(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "report not found")
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleReportPage(w http.ResponseWriter, r *http.Request) {
	view, ok := s.renderer.Lookup(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "report not found", http.StatusNotFound)
		return
	}
	s.respondHTML(w, view)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	repo, ownerID, ok := s.repoSelector(w, r)
	if !ok {
		return
	}
	list, err := s.backend.ListDocuments(r.Context(), repo, ownerID)
	if err != nil {
		s.respondBackendError(w, "list documents", err)
		return
	}
	s.respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleDocumentStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.backend.Stats(r.Context())
	if err != nil {
		s.respondBackendError(w, "document stats", err)
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	repo, ownerID, ok := s.repoSelector(w, r)
	if !ok {
		return
	}
	s.logger.Debug("delete document request", zap.String("id", id), zap.String("repo_type", string(repo)))
	if err := s.backend.DeleteDocument(r.Context(), id, repo, ownerID); err != nil {
		s.respondBackendError(w, "delete document", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := s.backend.ListUsers(r.Context())
	if err != nil {
		s.respondBackendError(w, "list users", err)
		return
	}
	s.respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleAddTeacher(w http.ResponseWriter, r *http.Request) {
	var req models.NewTeacher
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := s.backend.AddTeacher(r.Context(), req)
	if err != nil {
		s.respondBackendError(w, "add teacher", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "user id must be an integer")
		return
	}
	if err := s.backend.DeleteUser(r.Context(), id); err != nil {
		s.respondBackendError(w, "delete user", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"id": id, "status": "deleted"})
}

// repoSelector reads repo_type and owner_id from the query.
func (s *Server) repoSelector(w http.ResponseWriter, r *http.Request) (models.RepoType, *int, bool) {
	q := r.URL.Query()
	repo := models.RepoType(q.Get("repo_type"))
	if repo == "" {
		repo = models.RepoUniversity
	}
	var ownerID *int
	if raw := q.Get("owner_id"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "owner_id must be an integer")
			return "", nil, false
		}
		ownerID = &n
	}
	if err := models.ValidateRepo(repo, ownerID); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return "", nil, false
	}
	return repo, ownerID, true
}

func (s *Server) handleInboxDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "inbox not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type inboxAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleInboxDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "inbox not enabled")
		return
	}
	var req inboxAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := req.Sync == nil || *req.Sync
	s.logger.Debug("inbox add directory request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("inbox add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistInbox()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleInboxDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "inbox not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("inbox remove directory request", zap.String("path", abs))
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("inbox remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistInbox()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

// persistInbox writes the current inbox directories back to the config file.
func (s *Server) persistInbox() {
	if s.configPath == "" || s.config == nil {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Inbox.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist inbox config", zap.Error(err))
	}
}

// respondView writes a rendered view as JSON, or as a page with ?format=html.
func (s *Server) respondView(w http.ResponseWriter, r *http.Request, view any) {
	if r.URL.Query().Get("format") == "html" {
		s.respondHTML(w, view)
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

func (s *Server) respondHTML(w http.ResponseWriter, view any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render.WriteHTML(w, view); err != nil {
		s.logger.Error("render page failed", zap.Error(err))
	}
}

// respondBackendError passes backend 4xx responses through and maps
// everything else to 502.
func (s *Server) respondBackendError(w http.ResponseWriter, op string, err error) {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		msg := apiErr.Detail
		if msg == "" {
			msg = http.StatusText(apiErr.Status)
		}
		s.respondError(w, apiErr.Status, msg)
		return
	}
	s.logger.Error(op+" failed", zap.Error(err))
	s.respondError(w, http.StatusBadGateway, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
