// Package mail delivers detector alerts to administrators.
package mail

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/slack-go/slack"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/config"
)

// Sink delivers one message to a list of recipients.
type Sink interface {
	Send(ctx context.Context, recipients []string, subject, body string) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, recipients []string, subject, body string) error

// Send implements Sink.
func (f SinkFunc) Send(ctx context.Context, recipients []string, subject, body string) error {
	return f(ctx, recipients, subject, body)
}

// SlackSink posts alerts to a Slack incoming webhook. Recipients are listed in
// the message since a webhook targets a fixed channel.
type SlackSink struct {
	URL    string
	Client *http.Client
}

// Send implements Sink.
func (s *SlackSink) Send(ctx context.Context, recipients []string, subject, body string) error {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	text := fmt.Sprintf("*%s*\n%s", subject, body)
	if len(recipients) > 0 {
		text += "\n_Notified: " + strings.Join(recipients, ", ") + "_"
	}
	msg := &slack.WebhookMessage{Text: text}
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.URL, client, msg); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}

// Multi fans a message out to every sink. It fails only when all sinks fail.
type Multi []Sink

// Send implements Sink.
func (m Multi) Send(ctx context.Context, recipients []string, subject, body string) error {
	if len(m) == 0 {
		return stderrors.New("no mail sink configured")
	}
	var errs []error
	for _, sink := range m {
		if err := sink.Send(ctx, recipients, subject, body); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(m) {
		return stderrors.Join(errs...)
	}
	return nil
}

// FromConfig builds the sink set described by cfg. It returns nil when no
// delivery channel is configured.
func FromConfig(cfg *config.Config) Sink {
	var sinks Multi
	if cfg.SMTPHost != "" {
		sinks = append(sinks, &SMTPSink{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}
	if cfg.SlackWebhookURL != "" {
		sinks = append(sinks, &SlackSink{URL: cfg.SlackWebhookURL})
	}
	switch len(sinks) {
	case 0:
		return nil
	case 1:
		return sinks[0]
	default:
		return sinks
	}
}
