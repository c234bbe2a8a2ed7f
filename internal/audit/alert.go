package audit

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/services"
)

// AlertManager drives the detector alert state machine.
type AlertManager struct {
	now func() time.Time

	mu      sync.Mutex
	entropy io.Reader
}

// NewAlertManager creates an AlertManager using now as its clock. A nil clock uses time.Now.
func NewAlertManager(now func() time.Time) *AlertManager {
	if now == nil {
		now = time.Now
	}
	return &AlertManager{
		now:     now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewRunID returns a fresh ULID for an audit run.
func (m *AlertManager) NewRunID() string {
	return m.newID(m.now())
}

// Apply moves prev to its next state for run runID, which produced the given
// diff. Any difference raises a fresh alert carrying runID; an empty diff clears
// it. LastChecked is always advanced.
func (m *AlertManager) Apply(prev Alert, runID string, added, removed []services.Summary) Alert {
	now := m.now().UTC()
	next := prev
	next.LastChecked = now

	if len(added) == 0 && len(removed) == 0 {
		next.Active = false
		return next
	}

	if runID == "" {
		runID = m.newID(now)
	}
	next.ID = runID
	next.Active = true
	next.DetectedAt = now
	next.Added = append([]services.Summary{}, added...)
	next.Removed = append([]services.Summary{}, removed...)
	return next
}

// Dismiss clears the active flag without touching the recorded diff.
func (m *AlertManager) Dismiss(prev Alert) Alert {
	prev.Active = false
	return prev
}

func (m *AlertManager) newID(t time.Time) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), m.entropy).String()
}
