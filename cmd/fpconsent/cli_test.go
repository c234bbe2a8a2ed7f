package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/audit"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/config"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/db"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/ops"
)

const ga4Inventory = `services:
  - slug: ga4
    name: Google Analytics 4
    provider: Google
    category: statistics
    detected: true
`

const ga4HotjarInventory = ga4Inventory + `  - slug: hotjar
    name: Hotjar
    provider: Hotjar Ltd
    category: statistics
    detected: true
`

type cliTest struct {
	env       *ops.Env
	dir       string
	inventory string
}

// setupTestEnv creates a temporary database and an environment whose detector
// reads a YAML inventory file in the same directory.
func setupTestEnv(t *testing.T) *cliTest {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.Languages = []string{"en", "it"}
	cfg.DetectionPath = filepath.Join(tmpDir, "inventory.yaml")
	cfg.DetectionCacheSeconds = 0
	cfg.AllowedPaths = []string{tmpDir}

	env, err := ops.NewEnv(database, cfg, nil, ops.WithSink(nil))
	if err != nil {
		t.Fatalf("failed to build env: %v", err)
	}
	return &cliTest{env: env, dir: tmpDir, inventory: cfg.DetectionPath}
}

func (ct *cliTest) writeInventory(t *testing.T, content string) {
	t.Helper()
	if err := os.WriteFile(ct.inventory, []byte(content), 0600); err != nil {
		t.Fatalf("write inventory: %v", err)
	}
}

// run executes the CLI with stdin and returns what it wrote to stdout.
func (ct *cliTest) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	app := newCLIApp(ct.env)
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.Reader = strings.NewReader(stdin)
	err := app.Run(append([]string{"fpconsent"}, args...))
	return out.String(), err
}

func decodeOutput[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	return v
}

func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"no args", []string{"fpconsent"}, false},
		{"known command", []string{"fpconsent", "effective"}, true},
		{"daemon", []string{"fpconsent", "daemon"}, true},
		{"help flag", []string{"fpconsent", "--help"}, true},
		{"version flag", []string{"fpconsent", "-v"}, true},
		{"unknown arg", []string{"fpconsent", "frobnicate"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isCLIMode(tt.args); got != tt.expected {
				t.Errorf("isCLIMode(%v) = %v, want %v", tt.args, got, tt.expected)
			}
		})
	}
}

func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		args     []string
		expected bool
	}{
		{[]string{"fpconsent"}, false},
		{[]string{"fpconsent", "help"}, true},
		{[]string{"fpconsent", "-h"}, true},
		{[]string{"fpconsent", "--version"}, true},
		{[]string{"fpconsent", "audit"}, false},
	}
	for _, tt := range tests {
		if got := isHelpOrVersion(tt.args); got != tt.expected {
			t.Errorf("isHelpOrVersion(%v) = %v, want %v", tt.args, got, tt.expected)
		}
	}
}

func TestParseList(t *testing.T) {
	got := parseList([]string{" en ", "", "it", "  "})
	if len(got) != 2 || got[0] != "en" || got[1] != "it" {
		t.Errorf("parseList = %v", got)
	}
}

func TestReadWithLimit(t *testing.T) {
	data, err := readWithLimit(strings.NewReader("  {}\n"), 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "{}" {
		t.Errorf("data = %q, want {}", data)
	}

	if _, err := readWithLimit(strings.NewReader(strings.Repeat("x", 17)), 16); err == nil {
		t.Error("expected error for oversized input")
	}
}

func TestCLIHelpWithoutEnv(t *testing.T) {
	app := newCLIApp(nil)
	var out bytes.Buffer
	app.Writer = &out
	if err := app.Run([]string{"fpconsent", "--help"}); err != nil {
		t.Fatalf("help failed: %v", err)
	}
	for _, cmd := range []string{"save", "effective", "daemon", "import"} {
		if !strings.Contains(out.String(), cmd) {
			t.Errorf("help should list %q", cmd)
		}
	}
}

func TestCLISaveAndEffective(t *testing.T) {
	ct := setupTestEnv(t)
	ct.writeInventory(t, ga4Inventory)

	out, err := ct.run(t, `{"en":{"marketing":{"script_handles":"fbq\ngtm"}}}`, "save")
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	saved := decodeOutput[ops.SaveRulesOutput](t, out)
	if saved.Custom != 1 {
		t.Errorf("Custom = %d, want 1", saved.Custom)
	}

	out, err = ct.run(t, "", "effective", "-l", "en")
	if err != nil {
		t.Fatalf("effective failed: %v", err)
	}
	eff := decodeOutput[ops.EffectiveRulesOutput](t, out)
	if got := eff.Rules["marketing"].ScriptHandles; len(got) != 2 || got[0] != "fbq" {
		t.Errorf("marketing handles = %v", got)
	}
	if !eff.Rules["statistics"].Managed {
		t.Error("statistics should be managed by the detected ga4 preset")
	}
}

func TestCLISave_FromFile(t *testing.T) {
	ct := setupTestEnv(t)
	path := filepath.Join(ct.dir, "rules.json")
	if err := os.WriteFile(path, []byte(`{"it":{"statistics":{"patterns":["matomo.js"]}}}`), 0600); err != nil {
		t.Fatal(err)
	}

	out, err := ct.run(t, "", "save", "--file", path)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	saved := decodeOutput[ops.SaveRulesOutput](t, out)
	if len(saved.Languages) != 1 || saved.Languages[0] != "it" {
		t.Errorf("Languages = %v, want [it]", saved.Languages)
	}
}

func TestCLIAuditAndAlert(t *testing.T) {
	ct := setupTestEnv(t)
	ct.writeInventory(t, ga4Inventory)

	out, err := ct.run(t, "", "audit")
	if err != nil {
		t.Fatalf("baseline audit failed: %v", err)
	}
	if first := decodeOutput[audit.RunResult](t, out); !first.Baseline {
		t.Error("first audit should be a baseline")
	}

	ct.writeInventory(t, ga4HotjarInventory)
	out, err = ct.run(t, "", "audit")
	if err != nil {
		t.Fatalf("second audit failed: %v", err)
	}
	second := decodeOutput[audit.RunResult](t, out)
	if len(second.Added) != 1 || second.Added[0].Slug != "hotjar" {
		t.Errorf("Added = %+v, want hotjar", second.Added)
	}

	out, err = ct.run(t, "", "alert")
	if err != nil {
		t.Fatalf("alert failed: %v", err)
	}
	alert := decodeOutput[ops.AlertOutput](t, out)
	if !alert.Alert.Active || alert.Added != "Hotjar" {
		t.Errorf("alert = %+v", alert)
	}

	out, err = ct.run(t, "", "alert", "--dismiss")
	if err != nil {
		t.Fatalf("dismiss failed: %v", err)
	}
	if decodeOutput[ops.AlertOutput](t, out).Alert.Active {
		t.Error("alert should be dismissed")
	}

	out, err = ct.run(t, "", "history", "-n", "5")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if runs := decodeOutput[ops.HistoryOutput](t, out).Runs; len(runs) != 2 {
		t.Errorf("history runs = %d, want 2", len(runs))
	}
}

func TestCLIServices(t *testing.T) {
	ct := setupTestEnv(t)
	ct.writeInventory(t, ga4Inventory)

	out, err := ct.run(t, "", "services", "--lang", "en")
	if err != nil {
		t.Fatalf("services failed: %v", err)
	}
	result := decodeOutput[ops.GroupServicesOutput](t, out)
	found := false
	for _, c := range result.Categories {
		for _, s := range c.Services {
			if s.Slug == "ga4" && c.Slug == "statistics" {
				found = true
			}
		}
	}
	if !found {
		t.Errorf("ga4 should be listed under statistics: %+v", result.Categories)
	}
}

func TestCLILanguagesAndNotify(t *testing.T) {
	ct := setupTestEnv(t)

	out, err := ct.run(t, "", "languages", "en", "de")
	if err != nil {
		t.Fatalf("languages failed: %v", err)
	}
	langs := decodeOutput[ops.LanguagesOutput](t, out)
	if len(langs.Languages) != 2 {
		t.Errorf("Languages = %v, want 2 entries", langs.Languages)
	}

	out, err = ct.run(t, "", "notify", "--email", "--recipients", "ops@example.com, dpo@example.com")
	if err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	prefs := decodeOutput[ops.NotificationsOutput](t, out)
	if !prefs.EmailEnabled || len(prefs.Recipients) != 2 {
		t.Errorf("prefs = %+v", prefs)
	}

	_, err = ct.run(t, "", "notify", "--recipients", "not-an-address")
	if err == nil || !strings.Contains(err.Error(), "[INVALID_REQUEST]") {
		t.Errorf("expected INVALID_REQUEST, got %v", err)
	}
}

func TestCLICategories(t *testing.T) {
	ct := setupTestEnv(t)

	out, err := ct.run(t, `[{"slug":"necessary","locked":true,"labels":{"en":"Needed"}},{"slug":"ads"}]`, "categories", "--set")
	if err != nil {
		t.Fatalf("categories --set failed: %v", err)
	}
	cats := decodeOutput[ops.CategoriesOutput](t, out)
	if len(cats.Categories) != 2 || cats.Categories[1].Slug != "ads" {
		t.Errorf("Categories = %+v", cats.Categories)
	}
}

func TestCLIExportImport(t *testing.T) {
	ct := setupTestEnv(t)
	if _, err := ct.run(t, `{"en":{"marketing":{"iframes":["youtube.com/embed"]}}}`, "save"); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	path := filepath.Join(ct.dir, "backup.jsonl")
	out, err := ct.run(t, "", "export", "--path", path)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	exported := decodeOutput[ops.ExportOutput](t, out)
	if exported.Count == 0 {
		t.Error("expected exported records")
	}

	// Error mode reports the collision without failing the command.
	out, err = ct.run(t, "", "import", "--path", path)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	collided := decodeOutput[ops.ImportOutput](t, out)
	if len(collided.Errors) == 0 || collided.Errors[0].Code != "KEY_COLLISION" {
		t.Errorf("error mode should report a collision, got %+v", collided)
	}

	out, err = ct.run(t, "", "import", "--path", path, "--mode", "replace")
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	replaced := decodeOutput[ops.ImportOutput](t, out)
	if replaced.Imported != exported.Count {
		t.Errorf("Imported = %d, want %d", replaced.Imported, exported.Count)
	}
}

func TestCLIErrorHandling(t *testing.T) {
	ct := setupTestEnv(t)

	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{"unknown language", "", []string{"effective", "-l", "fr"}, "[UNKNOWN_LANGUAGE]"},
		{"empty stdin", "", []string{"save"}, "[INVALID_REQUEST]"},
		{"bad json", "{", []string{"save"}, "[INVALID_REQUEST]"},
		{"unknown preset", "", []string{"presets", "nope"}, "[NOT_FOUND]"},
		{"bad import mode", "", []string{"import", "--path", "x.jsonl", "--mode", "merge"}, "[INVALID_REQUEST]"},
		{"missing file", "", []string{"save", "--file", "/nonexistent/rules.json"}, "[FILE_NOT_FOUND]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ct.run(t, tt.stdin, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want %s", err.Error(), tt.want)
			}
		})
	}
}
