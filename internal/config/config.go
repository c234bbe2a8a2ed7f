package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DirName is the name of the per-user and per-repo configuration directory.
const DirName = ".fpconsent"

// Config holds application configuration.
type Config struct {
	// SiteName is used in alert subjects and notices.
	SiteName string `json:"site_name,omitempty"`

	// Languages seeds the active language list when the settings store has none yet.
	Languages []string `json:"languages,omitempty"`

	// FallbackAdminEmail receives detector alerts when no explicit recipients are stored.
	FallbackAdminEmail string `json:"fallback_admin_email,omitempty"`

	// AlertCooldownHours is the minimum gap between two alert emails.
	AlertCooldownHours int `json:"alert_cooldown_hours,omitempty"`

	// AuditSchedule is a standard cron expression for the integration audit.
	AuditSchedule string `json:"audit_schedule,omitempty"`

	// DetectionPath points at the JSON or YAML inventory read by the file detector.
	DetectionPath string `json:"detection_path,omitempty"`

	// DetectionCacheSeconds is how long a non-forced detection result is reused.
	DetectionCacheSeconds int `json:"detection_cache_seconds,omitempty"`

	// PresetsPath is an optional YAML file merged over the embedded preset catalog.
	PresetsPath string `json:"presets_path,omitempty"`

	// SMTP settings for alert email. Empty host disables the SMTP sink.
	SMTPHost     string `json:"smtp_host,omitempty"`
	SMTPPort     int    `json:"smtp_port,omitempty"`
	SMTPUsername string `json:"smtp_username,omitempty"`
	SMTPPassword string `json:"smtp_password,omitempty"`
	SMTPFrom     string `json:"smtp_from,omitempty"`

	// SlackWebhookURL additionally posts alerts to a Slack incoming webhook.
	SlackWebhookURL string `json:"slack_webhook_url,omitempty"`

	// HTTPBind and HTTPPort configure the rules API server.
	HTTPBind string `json:"http_bind,omitempty"`
	HTTPPort int    `json:"http_port,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is locked" errors).
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// AllowedPaths lists extra absolute directories for settings backups.
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths lifts the directory restriction on backup paths. Symlinks stay rejected.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// Logging: level (debug|info|warn|error), format (text|json), output (stderr|stdout|path).
	LogLevel  string `json:"log_level,omitempty"`
	LogFormat string `json:"log_format,omitempty"`
	LogOutput string `json:"log_output,omitempty"`

	// Debug raises persistence and delivery faults from debug to warn level.
	Debug bool `json:"debug,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		SiteName:              "Website",
		AlertCooldownHours:    24,
		AuditSchedule:         "0 4 * * *",
		DetectionCacheSeconds: 300,
		SMTPPort:              587,
		HTTPBind:              "127.0.0.1",
		HTTPPort:              8787,
		LogLevel:              "info",
		LogFormat:             "text",
		LogOutput:             "stderr",
	}
}

// AlertCooldown returns the email cooldown window.
func (c *Config) AlertCooldown() time.Duration {
	return time.Duration(c.AlertCooldownHours) * time.Hour
}

// DetectionCacheTTL returns how long non-forced detection results are reused.
func (c *Config) DetectionCacheTTL() time.Duration {
	return time.Duration(c.DetectionCacheSeconds) * time.Second
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.fpconsent.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both the global and the nearest repo directory.
// Repo config is found by walking upward from startDir to find the nearest .fpconsent/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .fpconsent/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, DirName, "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw returns a zero-valued config (not defaults) if the file doesn't exist.
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		SiteName:              pickString(base.SiteName, overlay.SiteName),
		FallbackAdminEmail:    pickString(base.FallbackAdminEmail, overlay.FallbackAdminEmail),
		AlertCooldownHours:    pickInt(base.AlertCooldownHours, overlay.AlertCooldownHours),
		AuditSchedule:         pickString(base.AuditSchedule, overlay.AuditSchedule),
		DetectionPath:         pickString(base.DetectionPath, overlay.DetectionPath),
		DetectionCacheSeconds: pickInt(base.DetectionCacheSeconds, overlay.DetectionCacheSeconds),
		PresetsPath:           pickString(base.PresetsPath, overlay.PresetsPath),
		SMTPHost:              pickString(base.SMTPHost, overlay.SMTPHost),
		SMTPPort:              pickInt(base.SMTPPort, overlay.SMTPPort),
		SMTPUsername:          pickString(base.SMTPUsername, overlay.SMTPUsername),
		SMTPPassword:          pickString(base.SMTPPassword, overlay.SMTPPassword),
		SMTPFrom:              pickString(base.SMTPFrom, overlay.SMTPFrom),
		SlackWebhookURL:       pickString(base.SlackWebhookURL, overlay.SlackWebhookURL),
		HTTPBind:              pickString(base.HTTPBind, overlay.HTTPBind),
		HTTPPort:              pickInt(base.HTTPPort, overlay.HTTPPort),
		DBMaxOpenConns:        pickInt(base.DBMaxOpenConns, overlay.DBMaxOpenConns),
		DBMaxIdleConns:        pickInt(base.DBMaxIdleConns, overlay.DBMaxIdleConns),
		LogLevel:              pickString(base.LogLevel, overlay.LogLevel),
		LogFormat:             pickString(base.LogFormat, overlay.LogFormat),
		LogOutput:             pickString(base.LogOutput, overlay.LogOutput),
	}

	// Booleans: overlay wins if true, else base
	result.Debug = base.Debug || overlay.Debug
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.Languages = mergeStringSlice(base.Languages, overlay.Languages)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)

	return result
}

func pickString(base, overlay string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

func pickInt(base, overlay int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
