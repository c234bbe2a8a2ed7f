package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/errors"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/ops"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/services"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title     string
	Version   string
	Nav       string // active nav item: "dashboard" or a language code
	Languages []string
}

// DashboardPageData is the template data for the dashboard.
type DashboardPageData struct {
	PageData
	Alert      *ops.AlertOutput
	NoticeHTML template.HTML
	History    []ops.HistoryRun
	Dismissed  bool
}

// ServicesPageData is the template data for the per-language services page.
type ServicesPageData struct {
	PageData
	Language   string
	Categories []services.Category
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	logger    *slog.Logger
}

// NewRenderer parses the layout and page templates from templateFS.
func NewRenderer(templateFS fs.FS, version string, log *slog.Logger) (*Renderer, error) {
	funcMap := template.FuncMap{
		"formatTime":   formatTime,
		"serviceCount": serviceCount,
		"join":         strings.Join,
	}

	layout, err := template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	pages := map[string]string{
		"dashboard": "dashboard.html",
		"services":  "services.html",
		"error":     "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t, err := layout.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout for %s: %w", name, err)
		}
		if _, err := t.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		templates[name] = t
	}

	return &Renderer{templates: templates, version: version, logger: log}, nil
}

// renderPage renders a named page template with HTTP 200.
func (r *Renderer) renderPage(w http.ResponseWriter, name string, data any) {
	r.renderPageStatus(w, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template inside the layout.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		r.logger.Error("template not found", "template", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.logger.Error("template execution failed", "template", name, "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError writes err as JSON for API routes and JSON clients, and as an
// error page otherwise. Internal errors never expose their cause.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	var cErr *errors.ConsentError
	if !stderrors.As(err, &cErr) {
		cErr = errors.NewInternal(err)
	}
	if cErr.Code == errors.ErrInternal {
		r.logger.Error("request failed", "path", req.URL.Path, "err", err)
	}

	if wantsJSON(req) {
		body := map[string]any{
			"code":    string(cErr.Code),
			"message": cErr.Message,
			"status":  cErr.Status,
		}
		if cErr.Code != errors.ErrInternal && cErr.Details != nil {
			body["details"] = cErr.Details
		}
		renderJSON(w, cErr.Status, map[string]any{"error": body})
		return
	}

	r.renderPageStatus(w, cErr.Status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", cErr.Status),
			Version: r.version,
		},
		StatusCode: cErr.Status,
		Message:    cErr.Message,
	})
}

// wantsJSON reports whether the response to req should be JSON.
func wantsJSON(req *http.Request) bool {
	return strings.HasPrefix(req.URL.Path, "/v1/") ||
		strings.Contains(req.Header.Get("Accept"), "application/json")
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

var noticePolicy = bluemonday.UGCPolicy()

// renderMarkdown converts markdown text to sanitized HTML.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(noticePolicy.SanitizeBytes(buf.Bytes()))
}

// formatTime formats t as "2006-01-02 15:04" UTC, or "never" when zero.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

// serviceCount returns the number of services across categories.
func serviceCount(cats []services.Category) int {
	n := 0
	for _, c := range cats {
		n += len(c.Services)
	}
	return n
}
