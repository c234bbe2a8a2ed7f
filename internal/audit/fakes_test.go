package audit

import (
	"context"
	"sync"
	"time"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/services"
)

type memoryStore struct {
	mu       sync.Mutex
	snapshot *Snapshot
	alert    Alert
	notify   NotificationState
	runs     []RunResult
}

func (m *memoryStore) Snapshot(context.Context) (Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot == nil {
		return Snapshot{}, false, nil
	}
	return *m.snapshot, true, nil
}

func (m *memoryStore) SaveSnapshot(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = &snap
	return nil
}

func (m *memoryStore) Alert(context.Context) (Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alert, nil
}

func (m *memoryStore) SaveAlert(_ context.Context, alert Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alert = alert
	return nil
}

func (m *memoryStore) Notifications(context.Context) (NotificationState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notify, nil
}

func (m *memoryStore) SaveNotifications(_ context.Context, state NotificationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notify = state
	return nil
}

func (m *memoryStore) RecordRun(_ context.Context, r RunResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, r)
	return nil
}

// sequenceDetector returns the next list on every call.
type sequenceDetector struct {
	runs  [][]services.Service
	calls int
	force []bool
}

func (d *sequenceDetector) DetectServices(_ context.Context, force bool) ([]services.Service, error) {
	d.force = append(d.force, force)
	i := d.calls
	if i >= len(d.runs) {
		i = len(d.runs) - 1
	}
	d.calls++
	return d.runs[i], nil
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type sentMail struct {
	recipients []string
	subject    string
	body       string
}

type recordingSink struct {
	sent []sentMail
	err  error
}

func (s *recordingSink) Send(_ context.Context, recipients []string, subject, body string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMail{recipients, subject, body})
	return nil
}

func svc(slug, name string) services.Service {
	return services.Service{Slug: slug, Name: name, Category: "marketing", Provider: "Acme", Detected: true}
}
