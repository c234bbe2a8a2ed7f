package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/config"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/db"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/ops"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/services"
)

type stubDetector struct {
	mu   sync.Mutex
	list []services.Service
}

func (d *stubDetector) DetectServices(context.Context, bool) ([]services.Service, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]services.Service(nil), d.list...), nil
}

func (d *stubDetector) set(list ...services.Service) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.list = list
}

func ga4() services.Service {
	return services.Service{Slug: "ga4", Name: "Google Analytics 4", Provider: "Google", Category: "statistics", Detected: true}
}

func hotjar() services.Service {
	return services.Service{Slug: "hotjar", Name: "Hotjar", Provider: "Hotjar Ltd", Category: "statistics", Detected: true}
}

type testServer struct {
	env     *ops.Env
	det     *stubDetector
	handler http.Handler
}

func setupTest(t *testing.T) *testServer {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.Languages = []string{"en", "it"}

	det := &stubDetector{}
	env, err := ops.NewEnv(database, cfg, nil, ops.WithDetector(det), ops.WithSink(nil))
	if err != nil {
		t.Fatalf("ops.NewEnv: %v", err)
	}
	srv, err := NewServer(env, "test", "127.0.0.1", 0)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return &testServer{env: env, det: det, handler: srv.Handler}
}

func (s *testServer) do(t *testing.T, method, target string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

// raiseAlert runs a baseline audit and a second one that adds hotjar.
func (s *testServer) raiseAlert(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	s.det.set(ga4())
	if _, err := ops.RunAudit(ctx, s.env); err != nil {
		t.Fatalf("baseline audit: %v", err)
	}
	s.det.set(ga4(), hotjar())
	if _, err := ops.RunAudit(ctx, s.env); err != nil {
		t.Fatalf("second audit: %v", err)
	}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

// --- JSON API ---

func TestHandleRules_Effective(t *testing.T) {
	s := setupTest(t)
	s.det.set(ga4())

	rec := s.do(t, "GET", "/v1/rules/EN", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	out := decodeBody[ops.EffectiveRulesOutput](t, rec)
	if out.Language != "en" {
		t.Errorf("Language = %q, want en", out.Language)
	}
	stats := out.Rules["statistics"]
	if !stats.Managed {
		t.Error("statistics should be managed by the ga4 preset")
	}
	found := false
	for _, h := range stats.ScriptHandles {
		if h == "gtag" {
			found = true
		}
	}
	if !found {
		t.Errorf("statistics handles = %v, want gtag", stats.ScriptHandles)
	}
	if _, ok := out.Rules["marketing"]; !ok {
		t.Error("every category should have an entry")
	}
}

func TestHandleRules_UnknownLanguage(t *testing.T) {
	s := setupTest(t)

	rec := s.do(t, "GET", "/v1/rules/fr", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	body := decodeBody[map[string]map[string]any](t, rec)
	if body["error"]["code"] != "UNKNOWN_LANGUAGE" {
		t.Errorf("code = %v, want UNKNOWN_LANGUAGE", body["error"]["code"])
	}
}

func TestHandleServices_JSON(t *testing.T) {
	s := setupTest(t)
	s.det.set(ga4())

	rec := s.do(t, "GET", "/v1/services/it", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	out := decodeBody[ops.GroupServicesOutput](t, rec)
	var stats *services.Category
	for i := range out.Categories {
		if out.Categories[i].Slug == "statistics" {
			stats = &out.Categories[i]
		}
	}
	if stats == nil {
		t.Fatal("statistics category missing")
	}
	if stats.Label != "Statistiche" {
		t.Errorf("Label = %q, want Statistiche", stats.Label)
	}
	if len(stats.Services) != 1 || stats.Services[0].Slug != "ga4" {
		t.Errorf("Services = %+v", stats.Services)
	}
}

func TestHandleAlert_JSON(t *testing.T) {
	s := setupTest(t)
	s.raiseAlert(t)

	rec := s.do(t, "GET", "/v1/alert", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	out := decodeBody[ops.AlertOutput](t, rec)
	if !out.Alert.Active {
		t.Fatal("alert should be active")
	}
	if out.Added != "Hotjar" {
		t.Errorf("Added = %q, want Hotjar", out.Added)
	}
}

func TestHandleHealth(t *testing.T) {
	s := setupTest(t)

	rec := s.do(t, "GET", "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	out := decodeBody[map[string]string](t, rec)
	if out["status"] != "ok" || out["version"] != "test" {
		t.Errorf("body = %v", out)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupTest(t)
	s.det.set(ga4())
	s.do(t, "GET", "/v1/rules/en", nil)

	rec := s.do(t, "GET", "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `fpconsent_rules_served_total{language="en"} 1`) {
		t.Errorf("rules served counter missing:\n%s", rec.Body.String())
	}
}

// --- Pages ---

func TestHandleDashboard_NoAlert(t *testing.T) {
	s := setupTest(t)

	rec := s.do(t, "GET", "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "No integration changes need review") {
		t.Error("expected the no-alert message")
	}
	if !strings.Contains(body, "No audits have run yet") {
		t.Error("expected the empty history message")
	}
	if !strings.Contains(body, `href="/services/it"`) {
		t.Error("expected a services link per active language")
	}
}

func TestHandleDashboard_ActiveAlert(t *testing.T) {
	s := setupTest(t)
	s.raiseAlert(t)

	rec := s.do(t, "GET", "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Hotjar") {
		t.Error("expected the added service in the notice")
	}
	if !strings.Contains(body, `action="/alert/dismiss"`) {
		t.Error("expected the dismiss form")
	}
	if !strings.Contains(body, "baseline") {
		t.Error("expected the baseline run in history")
	}
}

func TestHandleDismiss(t *testing.T) {
	s := setupTest(t)
	s.raiseAlert(t)

	rec := s.do(t, "POST", "/alert/dismiss", nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/?dismissed=1" {
		t.Errorf("Location = %q", loc)
	}

	out := decodeBody[ops.AlertOutput](t, s.do(t, "GET", "/v1/alert", nil))
	if out.Alert.Active {
		t.Error("alert should be dismissed")
	}
	if out.Notice != "" {
		t.Errorf("Notice = %q, want empty", out.Notice)
	}
}

func TestHandleDismiss_JSONClient(t *testing.T) {
	s := setupTest(t)
	s.raiseAlert(t)

	rec := s.do(t, "POST", "/alert/dismiss", map[string]string{"Accept": "application/json"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	out := decodeBody[ops.AlertOutput](t, rec)
	if out.Alert.Active {
		t.Error("alert should be dismissed")
	}
	if len(out.Alert.Added) != 1 {
		t.Errorf("dismiss should keep the change lists, got %+v", out.Alert.Added)
	}
}

func TestHandleServicesPage(t *testing.T) {
	s := setupTest(t)
	s.det.set(ga4())

	rec := s.do(t, "GET", "/services/en", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Services (en)", "Statistics", "Google Analytics 4", "always active"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in page", want)
		}
	}
}

func TestHandleServicesPage_UnknownLanguage(t *testing.T) {
	s := setupTest(t)

	rec := s.do(t, "GET", "/services/fr", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want html error page", ct)
	}
	if !strings.Contains(rec.Body.String(), "Error 404") {
		t.Error("expected error page")
	}
}

func TestSecurityHeaders(t *testing.T) {
	s := setupTest(t)

	rec := s.do(t, "GET", "/healthz", nil)
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing X-Frame-Options")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options")
	}
	if !strings.Contains(rec.Header().Get("Content-Security-Policy"), "default-src 'self'") {
		t.Error("missing Content-Security-Policy")
	}
}

func TestStaticAssets(t *testing.T) {
	s := setupTest(t)

	rec := s.do(t, "GET", "/static/style.css", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRenderMarkdown_StripsRawHTML(t *testing.T) {
	got := string(renderMarkdown("**New** <script>alert(1)</script>"))
	if !strings.Contains(got, "<strong>New</strong>") {
		t.Errorf("got %q", got)
	}
	if strings.Contains(got, "<script>") {
		t.Errorf("raw HTML leaked: %q", got)
	}
}

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		path   string
		accept string
		want   bool
	}{
		{"/v1/rules/en", "", true},
		{"/services/en", "application/json", true},
		{"/services/en", "text/html", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", tt.path, nil)
		req.Header.Set("Accept", tt.accept)
		if got := wantsJSON(req); got != tt.want {
			t.Errorf("wantsJSON(%s, %q) = %v, want %v", tt.path, tt.accept, got, tt.want)
		}
	}
}
