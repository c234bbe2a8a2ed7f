package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/logger"
)

// Runner is anything that performs one audit run.
type Runner interface {
	Run(ctx context.Context) (*RunResult, error)
}

// Scheduler triggers audit runs on a cron schedule.
type Scheduler struct {
	runner   Runner
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// NewScheduler creates a scheduler for runner using a standard five-field cron
// expression, e.g. "0 4 * * *" for daily at 4 AM.
func NewScheduler(runner Runner, schedule string, log *slog.Logger) *Scheduler {
	if log == nil {
		log = logger.Discard()
	}
	return &Scheduler{
		runner:   runner,
		schedule: schedule,
		cron:     cron.New(),
		logger:   log.With("component", "audit.scheduler"),
	}
}

// Start registers the audit job and starts the cron loop. The scheduler stops
// when ctx is cancelled. An empty schedule leaves the scheduler idle. Starting a
// running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if s.schedule == "" {
		s.logger.Info("audit schedule not configured, skipping scheduler")
		return nil
	}
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, func() { s.runAudit(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule audit: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("audit scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Scheduler) runAudit(ctx context.Context) {
	s.logger.Info("starting scheduled audit")
	result, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error("scheduled audit failed", "error", err)
		return
	}
	s.logger.Info("scheduled audit completed",
		"run_id", result.RunID,
		"alert_active", result.Alert.Active,
	)
}

// Stop stops the scheduler and waits for a running audit to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("audit scheduler stopped")
	}
}

// IsRunning reports whether the cron loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled audit time, or nil when nothing is scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
