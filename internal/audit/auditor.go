package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/errors"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/logger"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/services"
)

// Observer is told about every finished run, failed ones included.
type Observer interface {
	ObserveRun(result *RunResult, err error)
}

// Options configures an Auditor. Every field is optional.
type Options struct {
	Primer   Primer
	Notifier *Notifier
	Recorder Recorder
	Observer Observer
	Now      func() time.Time
	Logger   *slog.Logger
	Debug    bool
}

// Auditor runs the integration audit: detect, diff against the last snapshot,
// update the alert, prime rules and notify.
type Auditor struct {
	detector services.Detector
	store    Store
	alerts   *AlertManager
	primer   Primer
	notifier *Notifier
	recorder Recorder
	observer Observer
	now      func() time.Time
	log      *slog.Logger
	debug    bool

	mu sync.Mutex
}

// New creates an Auditor.
func New(detector services.Detector, store Store, opts Options) *Auditor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &Auditor{
		detector: detector,
		store:    store,
		alerts:   NewAlertManager(opts.Now),
		primer:   opts.Primer,
		notifier: opts.Notifier,
		recorder: opts.Recorder,
		observer: opts.Observer,
		now:      opts.Now,
		log:      opts.Logger.With("component", "auditor"),
		debug:    opts.Debug,
	}
}

// Alerts returns the alert state machine used by the auditor.
func (a *Auditor) Alerts() *AlertManager {
	return a.alerts
}

// Run performs one audit. Runs are serialized within a process.
//
// The first run without a stored snapshot only records a baseline. Detection
// and snapshot or alert persistence failures abort the run; priming, email and
// history failures are logged and leave the run successful.
func (a *Auditor) Run(ctx context.Context) (result *RunResult, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.observer != nil {
		defer func() { a.observer.ObserveRun(result, err) }()
	}

	detected, err := a.detector.DetectServices(ctx, true)
	if err != nil {
		return nil, errors.NewDetectionFailed(err)
	}
	current := services.OnlyDetected(detected)

	previous, hasPrevious, err := a.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	alert, err := a.store.Alert(ctx)
	if err != nil {
		return nil, err
	}

	runID := a.alerts.NewRunID()
	added, removed := []services.Summary{}, []services.Summary{}
	if hasPrevious {
		added, removed = Diff(previous.Detected, current)
	}
	alert = a.alerts.Apply(alert, runID, added, removed)

	now := a.now().UTC()
	if err := a.store.SaveSnapshot(ctx, Snapshot{Detected: current, GeneratedAt: now}); err != nil {
		return nil, err
	}
	if err := a.store.SaveAlert(ctx, alert); err != nil {
		return nil, err
	}

	result = &RunResult{
		RunID:    runID,
		RanAt:    now,
		Baseline: !hasPrevious,
		Detected: len(current),
		Added:    added,
		Removed:  removed,
		Alert:    alert,
	}

	if a.primer != nil {
		primed, perr := a.primer.PrimeRules(ctx, current)
		if perr != nil {
			logger.Fault(a.log, a.debug, "prime rules failed", "run_id", runID, "error", perr)
		}
		result.Primed = primed
	}

	if a.notifier != nil {
		sent, nerr := a.notifier.MaybeSendEmailAlert(ctx, alert)
		if nerr != nil {
			logger.Fault(a.log, a.debug, "alert notification failed", "run_id", runID, "error", nerr)
		}
		result.EmailSent = sent
	}

	if a.recorder != nil {
		if rerr := a.recorder.RecordRun(ctx, *result); rerr != nil {
			logger.Fault(a.log, a.debug, "record audit run failed", "run_id", runID, "error", rerr)
		}
	}

	a.log.Info("audit run completed",
		"run_id", runID,
		"baseline", result.Baseline,
		"detected", result.Detected,
		"added", len(added),
		"removed", len(removed),
		"alert_active", alert.Active,
		"primed", result.Primed,
		"email_sent", result.EmailSent,
	)
	return result, nil
}

// Dismiss clears the active alert.
func (a *Auditor) Dismiss(ctx context.Context) (Alert, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	alert, err := a.store.Alert(ctx)
	if err != nil {
		return Alert{}, err
	}
	alert = a.alerts.Dismiss(alert)
	if err := a.store.SaveAlert(ctx, alert); err != nil {
		return Alert{}, err
	}
	return alert, nil
}
