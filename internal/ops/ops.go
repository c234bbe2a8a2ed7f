// Package ops implements the engine operations shared by the CLI, the MCP
// server and the HTTP API.
package ops

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/audit"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/config"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/detect"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/errors"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/logger"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/mail"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/metrics"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/presets"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/reconcile"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/services"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/settings"
)

// History limits
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 200
)

// Env bundles the dependencies every operation runs against.
type Env struct {
	Config     *config.Config
	Store      *settings.Store
	Reconciler *reconcile.Reconciler
	Detector   services.Detector
	Auditor    *audit.Auditor
	Notifier   *audit.Notifier
	Metrics    *metrics.Collector
	Logger     *slog.Logger
}

// Option customizes NewEnv.
type Option func(*envOptions)

type envOptions struct {
	detector services.Detector
	sink     mail.Sink
	sinkSet  bool
	catalog  *presets.Catalog
	metrics  *metrics.Collector
	now      func() time.Time
}

// WithDetector replaces the file-backed detection provider.
func WithDetector(d services.Detector) Option {
	return func(o *envOptions) { o.detector = d }
}

// WithSink replaces the configured mail sinks. A nil sink disables delivery.
func WithSink(s mail.Sink) Option {
	return func(o *envOptions) {
		o.sink = s
		o.sinkSet = true
	}
}

// WithCatalog replaces the preset catalog.
func WithCatalog(c *presets.Catalog) Option {
	return func(o *envOptions) { o.catalog = c }
}

// WithMetrics shares a metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *envOptions) { o.metrics = c }
}

// WithClock sets the time source used by the auditor and notifier.
func WithClock(now func() time.Time) Option {
	return func(o *envOptions) { o.now = now }
}

// NewEnv wires an Env from configuration and an initialized database.
func NewEnv(database *sql.DB, cfg *config.Config, log *slog.Logger, opts ...Option) (*Env, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = logger.Discard()
	}
	o := envOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	catalog := o.catalog
	if catalog == nil {
		var err error
		catalog, err = presets.Load(cfg.PresetsPath)
		if err != nil {
			return nil, errors.NewInvalidRequest("failed to load presets: " + err.Error())
		}
	}

	detector := o.detector
	if detector == nil {
		detector = detect.NewCached(&detect.FileProvider{Path: cfg.DetectionPath}, cfg.DetectionCacheTTL())
	}

	sink := o.sink
	if !o.sinkSet {
		sink = mail.FromConfig(cfg)
	}

	collector := o.metrics
	if collector == nil {
		collector = metrics.NewCollector(nil)
	}

	store := settings.New(database, settings.Options{
		DefaultLanguages: cfg.Languages,
		Debug:            cfg.Debug,
		Logger:           log,
	})
	reconciler := reconcile.New(catalog)

	notifier := audit.NewNotifier(store, sink, audit.NotifierOptions{
		SiteName:           cfg.SiteName,
		FallbackAdminEmail: cfg.FallbackAdminEmail,
		Cooldown:           cfg.AlertCooldown(),
		Debug:              cfg.Debug,
		Now:                o.now,
		Logger:             log,
	})

	auditor := audit.New(detector, store, audit.Options{
		Primer: audit.PrimerFunc(func(ctx context.Context, detected []services.Service) (bool, error) {
			return store.PrimeRules(ctx, reconciler, detected)
		}),
		Notifier: notifier,
		Recorder: store,
		Observer: collector,
		Now:      o.now,
		Logger:   log,
		Debug:    cfg.Debug,
	})

	return &Env{
		Config:     cfg,
		Store:      store,
		Reconciler: reconciler,
		Detector:   detector,
		Auditor:    auditor,
		Notifier:   notifier,
		Metrics:    collector,
		Logger:     log,
	}, nil
}

// detectServices runs detection and keeps only services that are present.
func (e *Env) detectServices(ctx context.Context, force bool) ([]services.Service, error) {
	list, err := e.Detector.DetectServices(ctx, force)
	if err != nil {
		return nil, errors.NewDetectionFailed(err)
	}
	return services.OnlyDetected(list), nil
}

// requireLanguage normalizes lang and checks it is active.
func (e *Env) requireLanguage(ctx context.Context, lang string) (string, error) {
	norm := settings.NormalizeLanguages([]string{lang})
	if len(norm) == 0 {
		return "", errors.NewInvalidRequest("language is required")
	}
	ok, err := e.Store.HasLanguage(ctx, norm[0])
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.NewUnknownLanguage(norm[0])
	}
	return norm[0], nil
}

// clampLimit applies default and max limits.
func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
