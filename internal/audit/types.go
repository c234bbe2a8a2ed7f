// Package audit compares successive detection runs, keeps the detector alert
// up to date and tells administrators when integrations appear or disappear.
package audit

import (
	"context"
	"time"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/services"
)

// Snapshot is the persisted result of the previous detection run.
type Snapshot struct {
	Detected    []services.Service `json:"detected"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// Alert is the persisted detector alert. ID identifies the run that raised it.
type Alert struct {
	ID          string             `json:"id,omitempty"`
	Active      bool               `json:"active"`
	DetectedAt  time.Time          `json:"detected_at,omitzero"`
	LastChecked time.Time          `json:"last_checked,omitzero"`
	Added       []services.Summary `json:"added"`
	Removed     []services.Summary `json:"removed"`
}

// NotificationState holds the alert email preferences and the last delivery time.
type NotificationState struct {
	EmailEnabled bool      `json:"email_enabled"`
	Recipients   []string  `json:"recipients"`
	LastSent     time.Time `json:"last_sent,omitzero"`
}

// Store persists audit state between runs.
type Store interface {
	Snapshot(ctx context.Context) (Snapshot, bool, error)
	SaveSnapshot(ctx context.Context, snap Snapshot) error
	Alert(ctx context.Context) (Alert, error)
	SaveAlert(ctx context.Context, alert Alert) error
	Notifications(ctx context.Context) (NotificationState, error)
	SaveNotifications(ctx context.Context, state NotificationState) error
}

// Primer folds freshly detected services into the stored rules.
type Primer interface {
	PrimeRules(ctx context.Context, detected []services.Service) (bool, error)
}

// PrimerFunc adapts a function to the Primer interface.
type PrimerFunc func(ctx context.Context, detected []services.Service) (bool, error)

// PrimeRules implements Primer.
func (f PrimerFunc) PrimeRules(ctx context.Context, detected []services.Service) (bool, error) {
	return f(ctx, detected)
}

// Recorder keeps a history of audit runs.
type Recorder interface {
	RecordRun(ctx context.Context, result RunResult) error
}

// RunResult summarizes one audit run.
type RunResult struct {
	RunID     string             `json:"run_id"`
	RanAt     time.Time          `json:"ran_at"`
	Baseline  bool               `json:"baseline"`
	Detected  int                `json:"detected"`
	Added     []services.Summary `json:"added"`
	Removed   []services.Summary `json:"removed"`
	Alert     Alert              `json:"alert"`
	Primed    bool               `json:"primed"`
	EmailSent bool               `json:"email_sent"`
}
