package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/errors"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/logger"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/mail"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/services"
)

// NotificationStore is the part of Store the Notifier needs.
type NotificationStore interface {
	Notifications(ctx context.Context) (NotificationState, error)
	SaveNotifications(ctx context.Context, state NotificationState) error
}

// NotifierOptions configures a Notifier.
type NotifierOptions struct {
	SiteName           string
	FallbackAdminEmail string
	Cooldown           time.Duration
	Debug              bool
	Now                func() time.Time
	Logger             *slog.Logger
}

// Notifier emails administrators about an active detector alert.
type Notifier struct {
	store    NotificationStore
	sink     mail.Sink
	siteName string
	fallback string
	cooldown time.Duration
	debug    bool
	now      func() time.Time
	log      *slog.Logger
}

// NewNotifier creates a Notifier. A nil sink disables delivery.
func NewNotifier(store NotificationStore, sink mail.Sink, opts NotifierOptions) *Notifier {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 24 * time.Hour
	}
	return &Notifier{
		store:    store,
		sink:     sink,
		siteName: opts.SiteName,
		fallback: strings.TrimSpace(opts.FallbackAdminEmail),
		cooldown: opts.Cooldown,
		debug:    opts.Debug,
		now:      opts.Now,
		log:      opts.Logger.With("component", "notifier"),
	}
}

// Recipients resolves the addresses an alert goes to: the stored list, else the
// fallback administrator address.
func (n *Notifier) Recipients(state NotificationState) []string {
	out := make([]string, 0, len(state.Recipients))
	for _, r := range state.Recipients {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	if len(out) == 0 && n.fallback != "" {
		out = append(out, n.fallback)
	}
	return out
}

// MaybeSendEmailAlert sends alert when email is enabled, the alert is active and
// the cooldown since the last delivery has passed. LastSent only moves forward
// after a successful send, so a failure is retried on the next eligible run.
func (n *Notifier) MaybeSendEmailAlert(ctx context.Context, alert Alert) (bool, error) {
	if !alert.Active || n.sink == nil {
		return false, nil
	}

	state, err := n.store.Notifications(ctx)
	if err != nil {
		return false, err
	}
	if !state.EmailEnabled {
		return false, nil
	}

	recipients := n.Recipients(state)
	if len(recipients) == 0 {
		n.log.Info("alert email skipped, no recipients")
		return false, nil
	}

	now := n.now().UTC()
	if !state.LastSent.IsZero() && now.Sub(state.LastSent) < n.cooldown {
		n.log.Debug("alert email within cooldown", "last_sent", state.LastSent)
		return false, nil
	}

	subject, body := n.Message(alert)
	if err := n.sink.Send(ctx, recipients, subject, body); err != nil {
		logger.Fault(n.log, n.debug, "alert email failed", "error", err, "recipients", len(recipients))
		return false, errors.NewMailFailed(recipients, err)
	}

	state.LastSent = now
	if err := n.store.SaveNotifications(ctx, state); err != nil {
		logger.Fault(n.log, n.debug, "persist last_sent failed", "error", err)
		return true, err
	}
	n.log.Info("alert email sent", "alert_id", alert.ID, "recipients", len(recipients))
	return true, nil
}

// Message renders the email for alert. Unlike the admin notice, the body lists
// every added and removed service.
func (n *Notifier) Message(alert Alert) (subject, body string) {
	site := n.siteName
	if site == "" {
		site = "Website"
	}
	subject = fmt.Sprintf("[%s] Integration changes detected", site)

	var b strings.Builder
	fmt.Fprintf(&b, "The integration audit for %s found changes on %s.\n",
		site, alert.DetectedAt.UTC().Format("2006-01-02 15:04 MST"))
	writeSection(&b, "New services", alert.Added)
	writeSection(&b, "Removed services", alert.Removed)
	b.WriteString("\nReview the consent categories, blocking rules and privacy policy so they match what the site loads.\n")
	return subject, b.String()
}

func writeSection(b *strings.Builder, title string, list []services.Summary) {
	if len(list) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, s := range list {
		fmt.Fprintf(b, "- %s", displayName(s))
		if s.Provider != "" {
			fmt.Fprintf(b, " (%s)", s.Provider)
		}
		if s.Category != "" {
			fmt.Fprintf(b, " [%s]", s.Category)
		}
		b.WriteString("\n")
	}
}
