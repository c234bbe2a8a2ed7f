package ops

import (
	"context"
	"encoding/json"
	"net/mail"
	"strings"
	"time"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/audit"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/errors"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/services"
)

// RunAudit performs one integration audit.
func RunAudit(ctx context.Context, env *Env) (*audit.RunResult, error) {
	return env.Auditor.Run(ctx)
}

// AlertOutput describes the detector alert for administrators.
type AlertOutput struct {
	Alert   audit.Alert `json:"alert"`
	Added   string      `json:"added_summary,omitempty"`
	Removed string      `json:"removed_summary,omitempty"`
	Notice  string      `json:"notice,omitempty"` // Markdown, empty when no alert is active
}

// GetAlert returns the stored detector alert and its admin notice.
func GetAlert(ctx context.Context, env *Env) (*AlertOutput, error) {
	alert, err := env.Store.Alert(ctx)
	if err != nil {
		return nil, err
	}
	return alertOutput(alert), nil
}

// DismissAlert clears the active flag of the detector alert.
func DismissAlert(ctx context.Context, env *Env) (*AlertOutput, error) {
	alert, err := env.Auditor.Dismiss(ctx)
	if err != nil {
		return nil, err
	}
	env.Metrics.SetAlertActive(false)
	return alertOutput(alert), nil
}

func alertOutput(alert audit.Alert) *AlertOutput {
	if alert.Added == nil {
		alert.Added = []services.Summary{}
	}
	if alert.Removed == nil {
		alert.Removed = []services.Summary{}
	}
	out := &AlertOutput{Alert: alert}
	if alert.Active {
		out.Added = audit.FormatServicesList(alert.Added, audit.NoticeLimit)
		out.Removed = audit.FormatServicesList(alert.Removed, audit.NoticeLimit)
		out.Notice = audit.Notice(alert)
	}
	return out
}

// SetNotificationsInput contains parameters for the SetNotifications operation.
// Nil fields are left unchanged.
type SetNotificationsInput struct {
	EmailEnabled *bool     `json:"email_enabled,omitempty"`
	Recipients   *[]string `json:"recipients,omitempty"`
}

// NotificationsOutput contains the stored notification preferences.
type NotificationsOutput struct {
	EmailEnabled bool       `json:"email_enabled"`
	Recipients   []string   `json:"recipients"`
	Effective    []string   `json:"effective_recipients"`
	LastSent     *time.Time `json:"last_sent,omitempty"`
}

// SetNotifications updates the alert email preferences. The last-sent
// timestamp is preserved.
func SetNotifications(ctx context.Context, env *Env, input SetNotificationsInput) (*NotificationsOutput, error) {
	state, err := env.Store.Notifications(ctx)
	if err != nil {
		return nil, err
	}
	if input.EmailEnabled != nil {
		state.EmailEnabled = *input.EmailEnabled
	}
	if input.Recipients != nil {
		recipients, err := validateRecipients(*input.Recipients)
		if err != nil {
			return nil, err
		}
		state.Recipients = recipients
	}
	if err := env.Store.SaveNotifications(ctx, state); err != nil {
		return nil, err
	}
	return notificationsOutput(env, state), nil
}

// GetNotifications returns the alert email preferences.
func GetNotifications(ctx context.Context, env *Env) (*NotificationsOutput, error) {
	state, err := env.Store.Notifications(ctx)
	if err != nil {
		return nil, err
	}
	return notificationsOutput(env, state), nil
}

func notificationsOutput(env *Env, state audit.NotificationState) *NotificationsOutput {
	out := &NotificationsOutput{
		EmailEnabled: state.EmailEnabled,
		Recipients:   state.Recipients,
		Effective:    env.Notifier.Recipients(state),
	}
	if out.Recipients == nil {
		out.Recipients = []string{}
	}
	if out.Effective == nil {
		out.Effective = []string{}
	}
	if !state.LastSent.IsZero() {
		t := state.LastSent
		out.LastSent = &t
	}
	return out
}

// validateRecipients trims, dedups and checks each address.
func validateRecipients(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, r := range in {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		addr, err := mail.ParseAddress(r)
		if err != nil {
			return nil, errors.NewInvalidRequest("invalid recipient: " + r)
		}
		key := strings.ToLower(addr.Address)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, addr.Address)
	}
	return out, nil
}

// HistoryInput contains parameters for the AuditHistory operation.
type HistoryInput struct {
	Limit int `json:"limit,omitempty"`
}

// HistoryRun is one recorded audit run.
type HistoryRun struct {
	ID          string             `json:"id"`
	RanAt       time.Time          `json:"ran_at"`
	Baseline    bool               `json:"baseline"`
	Detected    int                `json:"detected"`
	Added       []services.Summary `json:"added"`
	Removed     []services.Summary `json:"removed"`
	AlertActive bool               `json:"alert_active"`
	EmailSent   bool               `json:"email_sent"`
}

// HistoryOutput contains the result of the AuditHistory operation.
type HistoryOutput struct {
	Runs []HistoryRun `json:"runs"`
}

// AuditHistory returns recent audit runs, newest first.
func AuditHistory(ctx context.Context, env *Env, input HistoryInput) (*HistoryOutput, error) {
	limit := clampLimit(input.Limit, DefaultHistoryLimit, MaxHistoryLimit)
	rows, err := env.Store.History(ctx, limit)
	if err != nil {
		return nil, err
	}

	out := &HistoryOutput{Runs: make([]HistoryRun, 0, len(rows))}
	for _, r := range rows {
		run := HistoryRun{
			ID:          r.ID,
			RanAt:       time.Unix(r.RanAt, 0).UTC(),
			Baseline:    r.Baseline,
			Detected:    r.DetectedCount,
			Added:       []services.Summary{},
			Removed:     []services.Summary{},
			AlertActive: r.AlertActive,
			EmailSent:   r.EmailSent,
		}
		if len(r.Added) > 0 {
			if err := json.Unmarshal(r.Added, &run.Added); err != nil {
				return nil, errors.NewInternal(err)
			}
		}
		if len(r.Removed) > 0 {
			if err := json.Unmarshal(r.Removed, &run.Removed); err != nil {
				return nil, errors.NewInternal(err)
			}
		}
		out.Runs = append(out.Runs, run)
	}
	return out, nil
}
