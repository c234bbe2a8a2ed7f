// Package settings is the typed Settings Store over the SQLite key/value table.
package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/audit"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/db"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/errors"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/logger"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/reconcile"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/rules"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/services"
)

// Setting keys.
const (
	KeyLanguages     = "languages"
	KeyCategories    = "categories"
	KeyScripts       = "scripts"
	KeySnapshots     = "snapshots"
	KeyAlert         = "detector_alert"
	KeyNotifications = "detector_notifications"
)

// ValidateValue checks that raw decodes into the type stored under key.
func ValidateValue(key string, raw json.RawMessage) error {
	var target any
	switch key {
	case KeyLanguages:
		target = new([]string)
	case KeyCategories:
		target = new([]services.CategoryMeta)
	case KeyScripts:
		target = new(rules.Scripts)
	case KeySnapshots:
		target = new(map[string]json.RawMessage)
	case KeyAlert:
		target = new(audit.Alert)
	case KeyNotifications:
		target = new(audit.NotificationState)
	default:
		return errors.NewInvalidRequest("unknown setting: " + key)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid value for %s: %v", key, err))
	}
	return nil
}

// snapshotServices is the entry inside the snapshots setting that holds the
// detection baseline.
const snapshotServices = "services"

// Store reads and writes engine settings. Values are stored as JSON.
type Store struct {
	db        *sql.DB
	languages []string
	debug     bool
	log       *slog.Logger
}

// Options configures a Store.
type Options struct {
	// DefaultLanguages is returned when no language list has been saved.
	DefaultLanguages []string
	Debug            bool
	Logger           *slog.Logger
}

// New creates a Store over an initialized database.
func New(conn *sql.DB, opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	langs := NormalizeLanguages(opts.DefaultLanguages)
	if len(langs) == 0 {
		langs = []string{"en"}
	}
	return &Store{
		db:        conn,
		languages: langs,
		debug:     opts.Debug,
		log:       opts.Logger.With("component", "settings"),
	}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

func get[T any](ctx context.Context, q db.Querier, key string, out *T) (bool, error) {
	raw, ok, err := db.GetSetting(ctx, q, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

func put(ctx context.Context, q db.Querier, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.NewInternal(err)
	}
	return db.PutSetting(ctx, q, key, data)
}

// Languages returns the active languages, or the configured defaults when
// none were saved.
func (s *Store) Languages(ctx context.Context) ([]string, error) {
	var langs []string
	ok, err := get(ctx, s.db, KeyLanguages, &langs)
	if err != nil {
		return nil, err
	}
	langs = NormalizeLanguages(langs)
	if !ok || len(langs) == 0 {
		return append([]string(nil), s.languages...), nil
	}
	return langs, nil
}

// SetLanguages saves the active languages and returns the normalized list.
func (s *Store) SetLanguages(ctx context.Context, langs []string) ([]string, error) {
	langs = NormalizeLanguages(langs)
	if len(langs) == 0 {
		return nil, errors.NewInvalidRequest("at least one language is required")
	}
	if err := put(ctx, s.db, KeyLanguages, langs); err != nil {
		return nil, err
	}
	return langs, nil
}

// HasLanguage reports whether lang is active.
func (s *Store) HasLanguage(ctx context.Context, lang string) (bool, error) {
	langs, err := s.Languages(ctx)
	if err != nil {
		return false, err
	}
	for _, l := range langs {
		if l == lang {
			return true, nil
		}
	}
	return false, nil
}

// Categories returns the stored category metadata, or DefaultCategories.
func (s *Store) Categories(ctx context.Context) ([]services.CategoryMeta, error) {
	var cats []services.CategoryMeta
	ok, err := get(ctx, s.db, KeyCategories, &cats)
	if err != nil {
		return nil, err
	}
	if !ok || len(cats) == 0 {
		return DefaultCategories(), nil
	}
	return cats, nil
}

// SetCategories validates and saves category metadata. Slugs are sanitized,
// duplicates and entries without a usable slug are rejected.
func (s *Store) SetCategories(ctx context.Context, cats []services.CategoryMeta) ([]services.CategoryMeta, error) {
	if len(cats) == 0 {
		return nil, errors.NewInvalidRequest("at least one category is required")
	}
	seen := make(map[string]bool, len(cats))
	out := make([]services.CategoryMeta, 0, len(cats))
	for _, c := range cats {
		slug := rules.SanitizeKey(c.Slug)
		if slug == "" {
			return nil, errors.NewInvalidRequest("category slug is required")
		}
		if seen[slug] {
			return nil, errors.NewInvalidRequest("duplicate category: " + slug)
		}
		seen[slug] = true
		c.Slug = slug
		out = append(out, c)
	}
	if err := put(ctx, s.db, KeyCategories, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Scripts returns the stored rules, normalized on the way out. Missing rules
// are an empty map.
func (s *Store) Scripts(ctx context.Context) (rules.Scripts, error) {
	return readScripts(ctx, s.db)
}

func readScripts(ctx context.Context, q db.Querier) (rules.Scripts, error) {
	var scripts rules.Scripts
	if _, err := get(ctx, q, KeyScripts, &scripts); err != nil {
		return nil, err
	}
	if scripts == nil {
		return rules.Scripts{}, nil
	}
	for lang, set := range scripts {
		for cat, e := range set {
			set[cat] = e.Normalized()
		}
		scripts[lang] = set
	}
	return scripts, nil
}

// SetScripts replaces the stored rules.
func (s *Store) SetScripts(ctx context.Context, scripts rules.Scripts) error {
	return put(ctx, s.db, KeyScripts, scripts)
}

// UpdateScripts reads the stored rules, hands them to fn and writes the result
// back when fn reports a change. Read and write share one transaction so fn
// always sees the managed flags as they are at write time.
func (s *Store) UpdateScripts(ctx context.Context, fn func(current rules.Scripts) (rules.Scripts, bool)) (bool, error) {
	changed := false
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		current, err := readScripts(ctx, tx)
		if err != nil {
			return err
		}
		next, ok := fn(current)
		if !ok {
			return nil
		}
		changed = true
		return put(ctx, tx, KeyScripts, next)
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// PrimeRules folds detected services into every non-custom stored rule entry.
func (s *Store) PrimeRules(ctx context.Context, r *reconcile.Reconciler, detected []services.Service) (bool, error) {
	langs, err := s.Languages(ctx)
	if err != nil {
		return false, err
	}
	cats, err := s.Categories(ctx)
	if err != nil {
		return false, err
	}
	slugs := services.CategorySlugs(cats)
	perLang := make(map[string][]string, len(langs))
	for _, l := range langs {
		perLang[l] = slugs
	}

	changed, err := s.UpdateScripts(ctx, func(current rules.Scripts) (rules.Scripts, bool) {
		return r.Prime(detected, langs, current, perLang)
	})
	if err != nil {
		logger.Fault(s.log, s.debug, "prime rules write failed", "error", err)
		return false, err
	}
	if changed {
		s.log.Info("rules primed from detection", "languages", len(langs), "services", len(detected))
	}
	return changed, nil
}

// Snapshot implements audit.Store.
func (s *Store) Snapshot(ctx context.Context) (audit.Snapshot, bool, error) {
	var snaps map[string]audit.Snapshot
	if _, err := get(ctx, s.db, KeySnapshots, &snaps); err != nil {
		return audit.Snapshot{}, false, err
	}
	snap, ok := snaps[snapshotServices]
	return snap, ok, nil
}

// SaveSnapshot implements audit.Store. Other snapshot entries are preserved.
func (s *Store) SaveSnapshot(ctx context.Context, snap audit.Snapshot) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var snaps map[string]json.RawMessage
		if _, err := get(ctx, tx, KeySnapshots, &snaps); err != nil {
			return err
		}
		if snaps == nil {
			snaps = make(map[string]json.RawMessage)
		}
		data, err := json.Marshal(snap)
		if err != nil {
			return errors.NewInternal(err)
		}
		snaps[snapshotServices] = data
		return put(ctx, tx, KeySnapshots, snaps)
	})
}

// Alert implements audit.Store. A never-raised alert is the zero value.
func (s *Store) Alert(ctx context.Context) (audit.Alert, error) {
	var alert audit.Alert
	if _, err := get(ctx, s.db, KeyAlert, &alert); err != nil {
		return audit.Alert{}, err
	}
	return alert, nil
}

// SaveAlert implements audit.Store.
func (s *Store) SaveAlert(ctx context.Context, alert audit.Alert) error {
	return put(ctx, s.db, KeyAlert, alert)
}

// Notifications implements audit.Store.
func (s *Store) Notifications(ctx context.Context) (audit.NotificationState, error) {
	var state audit.NotificationState
	if _, err := get(ctx, s.db, KeyNotifications, &state); err != nil {
		return audit.NotificationState{}, err
	}
	return state, nil
}

// SaveNotifications implements audit.Store.
func (s *Store) SaveNotifications(ctx context.Context, state audit.NotificationState) error {
	return put(ctx, s.db, KeyNotifications, state)
}

// RecordRun implements audit.Recorder and keeps the newest HistoryLimit runs.
func (s *Store) RecordRun(ctx context.Context, r audit.RunResult) error {
	added, err := json.Marshal(r.Added)
	if err != nil {
		return errors.NewInternal(err)
	}
	removed, err := json.Marshal(r.Removed)
	if err != nil {
		return errors.NewInternal(err)
	}
	if len(r.Added) == 0 {
		added = nil
	}
	if len(r.Removed) == 0 {
		removed = nil
	}

	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		err := db.InsertAuditRun(ctx, tx, &db.AuditRun{
			ID:            r.RunID,
			RanAt:         r.RanAt.Unix(),
			Baseline:      r.Baseline,
			DetectedCount: r.Detected,
			Added:         added,
			Removed:       removed,
			AlertActive:   r.Alert.Active,
			EmailSent:     r.EmailSent,
		})
		if err != nil {
			return err
		}
		_, err = db.PruneAuditRuns(ctx, tx, HistoryLimit)
		return err
	})
}

// HistoryLimit is how many audit runs are kept.
const HistoryLimit = 200

// History returns the most recent audit runs, newest first.
func (s *Store) History(ctx context.Context, limit int) ([]db.AuditRun, error) {
	return db.ListAuditRuns(ctx, s.db, limit)
}

// NormalizeLanguages lowercases, trims and dedups language codes such as
// "en" or "pt-br". Underscores become dashes.
func NormalizeLanguages(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, l := range in {
		l = strings.ReplaceAll(strings.TrimSpace(l), "_", "-")
		l = rules.SanitizeKey(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

var _ audit.Store = (*Store)(nil)
var _ audit.Recorder = (*Store)(nil)
