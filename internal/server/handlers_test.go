package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/plagiview/internal/backend"
	"github.com/hyperjump/plagiview/internal/config"
	"github.com/hyperjump/plagiview/internal/metrics"
	"github.com/hyperjump/plagiview/internal/models"
	"github.com/hyperjump/plagiview/internal/render"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const reportJSON = `{
  "source_filename": "essay.docx",
  "source_text": "The quick brown fox jumps",
  "semantic_similarity": 64.4,
  "lexical_similarity": 0.2,
  "matches": [
    {"filename": "ref.pdf", "similarity_score": 64.4,
     "matched_segments": [{"start": 4, "end": 9, "text": "quick"}]}
  ]
}`

const comparisonJSON = `{
  "source_filename": "a.txt",
  "target_filename": "b.txt",
  "similarity_score": 40,
  "source_text": "shared words here",
  "target_text": "other shared words",
  "matches": [{"text": "shared words", "source_start": 0, "source_end": 12, "target_start": 6, "target_end": 18}]
}`

type mockWatchService struct {
	dirs []string
}

func (m *mockWatchService) Directories() []string {
	return append([]string(nil), m.dirs...)
}

func (m *mockWatchService) AddDirectory(path string, _ bool) error {
	for _, d := range m.dirs {
		if d == path {
			return nil
		}
	}
	m.dirs = append(m.dirs, path)
	return nil
}

func (m *mockWatchService) RemoveDirectory(path string) error {
	for i, d := range m.dirs {
		if d == path {
			m.dirs = append(m.dirs[:i], m.dirs[i+1:]...)
			return nil
		}
	}
	return nil
}

type testEnv struct {
	srv     *Server
	handler http.Handler
	cfg     *config.Config
}

func newTestEnv(t *testing.T, backendHandler http.HandlerFunc, watch WatchService, configPath string) *testEnv {
	t.Helper()
	if backendHandler == nil {
		backendHandler = func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"ok","mode":"test"}`))
		}
	}
	be := httptest.NewServer(backendHandler)
	t.Cleanup(be.Close)

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	m := metrics.New(nil)
	client := backend.NewClient(be.URL, 5*time.Second, backend.WithMetrics(m))
	renderer := render.NewRenderer(render.WithMetrics(m))
	srv := NewServer(renderer, client, m, cfg, zap.NewNop(), watch, configPath)
	return &testEnv{srv: srv, handler: srv.Router(), cfg: cfg}
}

func (e *testEnv) do(r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	for field, name := range files {
		fw, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte("content of " + name))
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest(http.MethodPost, path, &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t, nil, nil, "")
	w := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out map[string]string
	decode(t, w, &out)
	if out["status"] != "ok" || out["backend"] != "ok" || out["backend_mode"] != "test" {
		t.Errorf("health = %v", out)
	}
}

func TestHandleHealth_backendDown(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, nil, "")
	w := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	var out map[string]string
	decode(t, w, &out)
	if out["backend"] != "unreachable" {
		t.Errorf("health = %v", out)
	}
}

func TestHandleRenderReport_andLookup(t *testing.T) {
	env := newTestEnv(t, nil, nil, "")
	w := env.do(httptest.NewRequest(http.MethodPost, "/api/v1/render/report", strings.NewReader(reportJSON)))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}
	var view render.ReportView
	decode(t, w, &view)
	if view.ID == "" || view.Filename != "essay.docx" || view.SemanticPercent != 64 {
		t.Errorf("view = %+v", view)
	}
	if len(view.Runs) != 3 || view.Runs[1].Text != "quick" || !view.Runs[1].Owned {
		t.Errorf("runs = %+v", view.Runs)
	}

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/reports/"+view.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("lookup status: got %d", w.Code)
	}
	var again render.ReportView
	decode(t, w, &again)
	if again.ID != view.ID {
		t.Errorf("lookup id = %q, want %q", again.ID, view.ID)
	}

	w = env.do(httptest.NewRequest(http.MethodGet, "/reports/"+view.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("page status: got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "essay.docx") {
		t.Errorf("page missing filename")
	}
}

func TestHandleGetReport_notFound(t *testing.T) {
	env := newTestEnv(t, nil, nil, "")
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/reports/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d", w.Code)
	}
	w = env.do(httptest.NewRequest(http.MethodGet, "/reports/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("page status: got %d", w.Code)
	}
}

func TestHandleRenderReport_badRequest(t *testing.T) {
	env := newTestEnv(t, nil, nil, "")
	w := env.do(httptest.NewRequest(http.MethodPost, "/api/v1/render/report", strings.NewReader("{nope")))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d", w.Code)
	}
	var out map[string]string
	decode(t, w, &out)
	if out["error"] == "" {
		t.Errorf("expected error body, got %v", out)
	}
}

func TestHandleRenderReport_tooLarge(t *testing.T) {
	env := newTestEnv(t, nil, nil, "")
	env.cfg.Server.MaxUploadBytes = 16
	w := env.do(httptest.NewRequest(http.MethodPost, "/api/v1/render/report", strings.NewReader(reportJSON)))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleRenderDiff(t *testing.T) {
	env := newTestEnv(t, nil, nil, "")
	w := env.do(httptest.NewRequest(http.MethodPost, "/api/v1/render/diff", strings.NewReader(comparisonJSON)))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var view render.DiffView
	decode(t, w, &view)
	if view.SourceFilename != "a.txt" || view.Source.CoveredChars != 12 || view.Target.CoveredChars != 12 {
		t.Errorf("view = %+v", view)
	}

	w = env.do(httptest.NewRequest(http.MethodPost, "/api/v1/render/diff?format=html", strings.NewReader(comparisonJSON)))
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "a.txt vs b.txt") {
		t.Errorf("expected diff page")
	}
}

func TestHandleAnalyze(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze" {
			t.Errorf("unexpected path %s", r.URL.Path)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
			return
		}
		if r.FormValue("repo_type") != "personal" || r.FormValue("user_id") != "7" || r.FormValue("add_to_repo") != "true" {
			t.Errorf("forwarded fields = %v", r.MultipartForm.Value)
		}
		_, hdr, err := r.FormFile("file")
		if err != nil || hdr.Filename != "essay.docx" {
			t.Errorf("forwarded file = %v, %v", hdr, err)
		}
		_, _ = w.Write([]byte(reportJSON))
	}, nil, "")

	r := multipartRequest(t, "/api/v1/analyze",
		map[string]string{"repo_type": "personal", "user_id": "7", "add_to_repo": "true"},
		map[string]string{"file": "essay.docx"})
	w := env.do(r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}
	var view render.ReportView
	decode(t, w, &view)
	if view.Filename != "essay.docx" || len(view.Matches) != 1 {
		t.Errorf("view = %+v", view)
	}
}

func TestHandleAnalyze_validation(t *testing.T) {
	env := newTestEnv(t, nil, nil, "")
	w := env.do(multipartRequest(t, "/api/v1/analyze", map[string]string{"repo_type": "personal"}, nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing file: got %d", w.Code)
	}
	w = env.do(multipartRequest(t, "/api/v1/analyze", map[string]string{"repo_type": "global"}, map[string]string{"file": "x.pdf"}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad repo_type: got %d", w.Code)
	}
	w = env.do(httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader("plain")))
	if w.Code != http.StatusBadRequest {
		t.Errorf("not multipart: got %d", w.Code)
	}
}

func TestHandleAnalyze_backendErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantError  string
	}{
		{"client error passes through", http.StatusBadRequest, `{"detail":"Unsupported file type"}`, http.StatusBadRequest, "Unsupported file type"},
		{"server error is bad gateway", http.StatusInternalServerError, `{"detail":"boom"}`, http.StatusBadGateway, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, nil, "")
			w := env.do(multipartRequest(t, "/api/v1/analyze", nil, map[string]string{"file": "x.pdf"}))
			if w.Code != tt.wantStatus {
				t.Fatalf("status: got %d, want %d", w.Code, tt.wantStatus)
			}
			var out map[string]string
			decode(t, w, &out)
			if !strings.Contains(out["error"], tt.wantError) {
				t.Errorf("error = %q, want %q", out["error"], tt.wantError)
			}
		})
	}
}

func TestHandleCompare(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/compare" {
			t.Errorf("unexpected path %s", r.URL.Path)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
			return
		}
		for _, field := range []string{"source_file", "target_file"} {
			f, _, err := r.FormFile(field)
			if err != nil {
				t.Errorf("missing %s: %v", field, err)
				return
			}
			_, _ = io.Copy(io.Discard, f)
		}
		_, _ = w.Write([]byte(comparisonJSON))
	}, nil, "")

	w := env.do(multipartRequest(t, "/api/v1/compare", nil,
		map[string]string{"source_file": "a.txt", "target_file": "b.txt"}))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}
	var view render.DiffView
	decode(t, w, &view)
	if view.TargetFilename != "b.txt" || len(view.Target.Runs) != 2 {
		t.Errorf("view = %+v", view)
	}

	w = env.do(multipartRequest(t, "/api/v1/compare", nil, map[string]string{"source_file": "a.txt"}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing target: got %d", w.Code)
	}
}

func TestHandleDocuments(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/documents/list":
			if r.URL.Query().Get("repo_type") != "personal" || r.URL.Query().Get("owner_id") != "3" {
				t.Errorf("query = %s", r.URL.RawQuery)
			}
			_, _ = w.Write([]byte(`{"documents":[{"document_id":"d1","file_name":"ref.pdf","num_chunks":4}]}`))
		case r.Method == http.MethodGet && r.URL.Path == "/documents/stats":
			_, _ = w.Write([]byte(`{"document_count":2,"chunk_count":9}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/documents/d1":
			_, _ = w.Write([]byte(`{"status":"deleted"}`))
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Document not found"}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}, nil, "")

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/documents?repo_type=personal&owner_id=3", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list status: got %d", w.Code)
	}
	var list struct {
		Documents []struct {
			DocumentID string `json:"document_id"`
			NumChunks  int    `json:"num_chunks"`
		} `json:"documents"`
	}
	decode(t, w, &list)
	if len(list.Documents) != 1 || list.Documents[0].DocumentID != "d1" || list.Documents[0].NumChunks != 4 {
		t.Errorf("list = %+v", list)
	}

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/documents?repo_type=personal", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("personal without owner: got %d", w.Code)
	}
	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/documents?owner_id=abc", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad owner_id: got %d", w.Code)
	}

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/documents/stats", nil))
	var stats struct {
		DocumentCount int `json:"document_count"`
		ChunkCount    int `json:"chunk_count"`
	}
	decode(t, w, &stats)
	if stats.DocumentCount != 2 || stats.ChunkCount != 9 {
		t.Errorf("stats = %+v", stats)
	}

	w = env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/documents/d1", nil))
	if w.Code != http.StatusOK {
		t.Errorf("delete status: got %d", w.Code)
	}
	w = env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/documents/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("delete missing: got %d", w.Code)
	}
}

func TestHandleUsers(t *testing.T) {
	var created models.NewTeacher
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/auth/users":
			_, _ = w.Write([]byte(`{"users":[{"id":3,"name":"Ana","email":"ana@nsu.edu","role":"student"}]}`))
		case r.Method == http.MethodPost && r.URL.Path == "/auth/users/teacher":
			_ = json.NewDecoder(r.Body).Decode(&created)
			if created.Email == "taken@nsu.edu" {
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"detail":"An account with this email already exists."}`))
				return
			}
			_, _ = w.Write([]byte(`{"success":true,"user":{"id":8,"name":"T","email":"t@nsu.edu","role":"teacher"}}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/auth/users/8":
			_, _ = w.Write([]byte(`{"success":true}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"User not found or cannot be deleted."}`))
		}
	}, nil, "")

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))
	var list models.UserList
	decode(t, w, &list)
	if w.Code != http.StatusOK || len(list.Users) != 1 || list.Users[0].Name != "Ana" {
		t.Fatalf("list users: %d %+v", w.Code, list)
	}

	body := `{"name":"T","email":"t@nsu.edu","password":"pw"}`
	w = env.do(httptest.NewRequest(http.MethodPost, "/api/v1/users/teacher", strings.NewReader(body)))
	var user models.User
	decode(t, w, &user)
	if w.Code != http.StatusCreated || user.ID != 8 || created.Password != "pw" {
		t.Errorf("add teacher: %d %+v (forwarded %+v)", w.Code, user, created)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"invalid json", http.MethodPost, "/api/v1/users/teacher", "{", http.StatusBadRequest},
		{"missing email", http.MethodPost, "/api/v1/users/teacher", `{"name":"T","password":"pw"}`, http.StatusBadRequest},
		{"email taken", http.MethodPost, "/api/v1/users/teacher", `{"name":"T","email":"taken@nsu.edu","password":"pw"}`, http.StatusConflict},
		{"delete", http.MethodDelete, "/api/v1/users/8", "", http.StatusOK},
		{"delete missing", http.MethodDelete, "/api/v1/users/99", "", http.StatusNotFound},
		{"delete bad id", http.MethodDelete, "/api/v1/users/abc", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestHandleInboxDirectories(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	mock := &mockWatchService{dirs: []string{"/tmp/inbox"}}
	env := newTestEnv(t, nil, mock, cfgPath)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/inbox/directories", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list status: got %d", w.Code)
	}
	var out struct {
		Directories []string `json:"directories"`
	}
	decode(t, w, &out)
	if len(out.Directories) != 1 || out.Directories[0] != "/tmp/inbox" {
		t.Errorf("directories = %v", out.Directories)
	}

	body, _ := json.Marshal(map[string]interface{}{"path": dir})
	w = env.do(httptest.NewRequest(http.MethodPost, "/api/v1/inbox/directories", bytes.NewReader(body)))
	if w.Code != http.StatusCreated {
		t.Fatalf("add status: got %d body %s", w.Code, w.Body.String())
	}
	if len(mock.dirs) != 2 {
		t.Errorf("mock dirs after add = %v", mock.dirs)
	}

	data, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatalf("config not persisted: %v", err)
	}
	var saved config.Config
	if err := yaml.Unmarshal(data, &saved); err != nil {
		t.Fatal(err)
	}
	if len(saved.Inbox.Directories) != 2 {
		t.Errorf("saved directories = %v", saved.Inbox.Directories)
	}

	w = env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/inbox/directories?path="+dir, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("remove status: got %d", w.Code)
	}
	if len(mock.dirs) != 1 {
		t.Errorf("mock dirs after remove = %v", mock.dirs)
	}
}

func TestHandleInboxDirectoriesAdd_validation(t *testing.T) {
	mock := &mockWatchService{}
	env := newTestEnv(t, nil, mock, "")
	file := filepath.Join(t.TempDir(), "f.json")
	if err := os.WriteFile(file, []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", "{", http.StatusBadRequest},
		{"empty path", `{"path":""}`, http.StatusBadRequest},
		{"missing dir", `{"path":"/definitely/not/here"}`, http.StatusNotFound},
		{"not a dir", `{"path":"` + file + `"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(httptest.NewRequest(http.MethodPost, "/api/v1/inbox/directories", strings.NewReader(tt.body)))
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d", w.Code, tt.want)
			}
		})
	}
	w := env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/inbox/directories", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("remove without path: got %d", w.Code)
	}
}

func TestHandleInboxDirectories_disabled(t *testing.T) {
	env := newTestEnv(t, nil, nil, "")
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/inbox/directories", nil))
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil, nil, "")
	env.do(httptest.NewRequest(http.MethodPost, "/api/v1/render/report", strings.NewReader(reportJSON)))
	w := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`http_requests_total{method="POST",path="/api/v1/render/report",status="200"} 1`,
		`plagiview_renders_total{kind="report"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
