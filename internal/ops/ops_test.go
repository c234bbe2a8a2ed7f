package ops

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/config"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/db"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/presets"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/services"
)

type fakeDetector struct {
	mu   sync.Mutex
	list []services.Service
	err  error
}

func (d *fakeDetector) DetectServices(context.Context, bool) ([]services.Service, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	return append([]services.Service(nil), d.list...), nil
}

func (d *fakeDetector) set(list ...services.Service) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.list = list
	d.err = nil
}

func (d *fakeDetector) fail(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = fmt.Errorf("%s", msg)
}

type outbox struct {
	mu   sync.Mutex
	sent [][]string
}

func (o *outbox) Send(_ context.Context, recipients []string, _, _ string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, recipients)
	return nil
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent)
}

type testEnv struct {
	*Env
	dir      string
	detector *fakeDetector
	outbox   *outbox
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Init(dir)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	cfg := config.DefaultConfig()
	cfg.Languages = []string{"en", "it"}
	cfg.FallbackAdminEmail = "admin@example.com"
	cfg.AllowedPaths = []string{dir}

	det := &fakeDetector{}
	box := &outbox{}
	env, err := NewEnv(conn, cfg, nil,
		WithDetector(det),
		WithSink(box),
		WithCatalog(presets.Default()),
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }),
	)
	require.NoError(t, err)
	return &testEnv{Env: env, dir: dir, detector: det, outbox: box}
}

func detected(slug, name, category string) services.Service {
	return services.Service{Slug: slug, Name: name, Provider: "Acme", Category: category, Detected: true}
}
