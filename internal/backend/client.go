// Package backend is the HTTP client for the analysis backend that extracts,
// indexes and scores documents.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/plagiview/internal/metrics"
	"github.com/hyperjump/plagiview/internal/models"
	"go.uber.org/zap"
)

// APIError is a non-2xx backend response. Detail carries the backend's
// "detail" message when it sent one.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Detail)
}

// StatusOf returns the backend status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Upload is a file sent to the backend.
type Upload struct {
	Filename string
	Content  io.Reader
}

// AnalyzeRequest is the form posted to /analyze. With AddToRepo false the
// backend only checks the document and does not store it.
type AnalyzeRequest struct {
	File             Upload
	RepoType         models.RepoType
	UserID           string
	Role             string
	AddToRepo        bool
	FilenameOverride string
}

// Health is the backend root response.
type Health struct {
	Status string `json:"status"`
	Mode   string `json:"mode,omitempty"`
}

// Client talks to the analysis backend.
type Client struct {
	baseURL string
	http    *http.Client
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMetrics records request counts and latency per endpoint.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Analyze uploads a document for a repository check.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (*models.Report, error) {
	if req.RepoType == "" {
		req.RepoType = models.RepoUniversity
	}
	if req.Role == "" {
		req.Role = "teacher"
	}
	fields := [][2]string{
		{"repo_type", string(req.RepoType)},
		{"user_id", req.UserID},
		{"role", req.Role},
		{"add_to_repo", strconv.FormatBool(req.AddToRepo)},
		{"filename_override", req.FilenameOverride},
	}
	body, contentType, err := multipartBody(fields, map[string]Upload{"file": req.File}, []string{"file"})
	if err != nil {
		return nil, err
	}
	var report models.Report
	if err := c.do(ctx, "analyze", http.MethodPost, "/analyze", nil, body, contentType, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Compare uploads two documents for a side-by-side comparison.
func (c *Client) Compare(ctx context.Context, source, target Upload) (*models.Comparison, error) {
	files := map[string]Upload{"source_file": source, "target_file": target}
	body, contentType, err := multipartBody(nil, files, []string{"source_file", "target_file"})
	if err != nil {
		return nil, err
	}
	var cmp models.Comparison
	if err := c.do(ctx, "compare", http.MethodPost, "/compare", nil, body, contentType, &cmp); err != nil {
		return nil, err
	}
	return &cmp, nil
}

// ListDocuments lists a repository. Personal repositories need ownerID.
func (c *Client) ListDocuments(ctx context.Context, repo models.RepoType, ownerID *int) (*models.DocumentList, error) {
	if err := models.ValidateRepo(repo, ownerID); err != nil {
		return nil, err
	}
	var list models.DocumentList
	if err := c.do(ctx, "documents_list", http.MethodGet, "/documents/list", repoQuery(repo, ownerID), nil, "", &list); err != nil {
		return nil, err
	}
	if list.Documents == nil {
		list.Documents = []models.DocumentSummary{}
	}
	return &list, nil
}

// DeleteDocument removes a document from a repository.
func (c *Client) DeleteDocument(ctx context.Context, id string, repo models.RepoType, ownerID *int) error {
	if id == "" {
		return fmt.Errorf("document id is required")
	}
	if err := models.ValidateRepo(repo, ownerID); err != nil {
		return err
	}
	return c.do(ctx, "documents_delete", http.MethodDelete, "/documents/"+url.PathEscape(id), repoQuery(repo, ownerID), nil, "", nil)
}

// Stats returns document and chunk counts.
func (c *Client) Stats(ctx context.Context) (*models.RepoStats, error) {
	var stats models.RepoStats
	if err := c.do(ctx, "documents_stats", http.MethodGet, "/documents/stats", nil, nil, "", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ListUsers lists non-admin accounts.
func (c *Client) ListUsers(ctx context.Context) (*models.UserList, error) {
	var list models.UserList
	if err := c.do(ctx, "users_list", http.MethodGet, "/auth/users", nil, nil, "", &list); err != nil {
		return nil, err
	}
	if list.Users == nil {
		list.Users = []models.User{}
	}
	return &list, nil
}

// AddTeacher creates a teacher account.
func (c *Client) AddTeacher(ctx context.Context, t models.NewTeacher) (*models.User, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode teacher: %w", err)
	}
	var created models.CreatedUser
	if err := c.do(ctx, "users_add_teacher", http.MethodPost, "/auth/users/teacher", nil, bytes.NewReader(body), "application/json", &created); err != nil {
		return nil, err
	}
	return &created.User, nil
}

// DeleteUser removes an account.
func (c *Client) DeleteUser(ctx context.Context, id int) error {
	return c.do(ctx, "users_delete", http.MethodDelete, "/auth/users/"+strconv.Itoa(id), nil, nil, "", nil)
}

// Health checks that the backend is up.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, "health", http.MethodGet, "/", nil, nil, "", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	c.observe(endpoint, resp, start)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("backend request",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &APIError{Status: resp.StatusCode, Detail: detailOf(b)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) observe(endpoint string, resp *http.Response, start time.Time) {
	if c.metrics == nil {
		return
	}
	status := "error"
	if resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	c.metrics.BackendRequestsTotal.WithLabelValues(endpoint, status).Inc()
	c.metrics.BackendLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// detailOf extracts the backend's error message. The backend answers
// {"detail": "..."} for handled errors and a list of issues for invalid forms.
func detailOf(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil {
			return s
		}
		return string(payload.Detail)
	}
	return strings.TrimSpace(string(body))
}

func repoQuery(repo models.RepoType, ownerID *int) url.Values {
	q := url.Values{"repo_type": {string(repo)}}
	if ownerID != nil {
		q.Set("owner_id", strconv.Itoa(*ownerID))
	}
	return q
}

// multipartBody encodes form fields and files; order fixes the file part order.
func multipartBody(fields [][2]string, files map[string]Upload, order []string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f[0], err)
		}
	}
	for _, name := range order {
		up, ok := files[name]
		if !ok || up.Content == nil {
			return nil, "", fmt.Errorf("%s is required", name)
		}
		part, err := mw.CreateFormFile(name, up.Filename)
		if err != nil {
			return nil, "", fmt.Errorf("create %s part: %w", name, err)
		}
		if _, err := io.Copy(part, up.Content); err != nil {
			return nil, "", fmt.Errorf("copy %s: %w", name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}
