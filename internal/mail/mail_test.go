package mail

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/config"
)

func TestSMTPSink_Send(t *testing.T) {
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	sink := &SMTPSink{
		Host:     "mail.example.com",
		Username: "bot",
		Password: "secret",
		From:     "alerts@example.com",
		send: func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotTo, gotMsg = addr, to, string(msg)
			return nil
		},
	}

	err := sink.Send(context.Background(), []string{"a@example.com", "b@example.com"}, "New\r\nBcc: x", "line one\nline two")
	require.NoError(t, err)

	assert.Equal(t, "mail.example.com:587", gotAddr)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "To: a@example.com, b@example.com\r\n")
	assert.Contains(t, gotMsg, "Subject: New  Bcc: x\r\n")
	assert.True(t, strings.HasSuffix(gotMsg, "line one\r\nline two"))
}

func TestSMTPSink_Errors(t *testing.T) {
	sink := &SMTPSink{Host: "mail.example.com", send: func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("relay refused")
	}}

	assert.Error(t, sink.Send(context.Background(), nil, "s", "b"))

	err := sink.Send(context.Background(), []string{"a@example.com"}, "s", "b")
	assert.ErrorContains(t, err, "relay refused")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sink.Send(ctx, []string{"a@example.com"}, "s", "b"), context.Canceled)
}

func TestSlackSink_Send(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := &SlackSink{URL: srv.URL, Client: srv.Client()}
	require.NoError(t, sink.Send(context.Background(), []string{"ops@example.com"}, "Changes", "Added: GA4"))

	text, _ := payload["text"].(string)
	assert.Contains(t, text, "*Changes*")
	assert.Contains(t, text, "Added: GA4")
	assert.Contains(t, text, "ops@example.com")
}

func TestSlackSink_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := &SlackSink{URL: srv.URL, Client: srv.Client()}
	assert.Error(t, sink.Send(context.Background(), nil, "s", "b"))
}

func TestMulti(t *testing.T) {
	ok := SinkFunc(func(context.Context, []string, string, string) error { return nil })
	bad := SinkFunc(func(context.Context, []string, string, string) error { return errors.New("down") })

	assert.NoError(t, Multi{bad, ok}.Send(context.Background(), nil, "s", "b"))
	assert.Error(t, Multi{bad, bad}.Send(context.Background(), nil, "s", "b"))
	assert.Error(t, Multi{}.Send(context.Background(), nil, "s", "b"))
}

func TestFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Nil(t, FromConfig(cfg))

	cfg.SMTPHost = "mail.example.com"
	_, isSMTP := FromConfig(cfg).(*SMTPSink)
	assert.True(t, isSMTP)

	cfg.SlackWebhookURL = "https://hooks.slack.com/services/x"
	multi, isMulti := FromConfig(cfg).(Multi)
	require.True(t, isMulti)
	assert.Len(t, multi, 2)
}
