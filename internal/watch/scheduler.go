package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ValidateSchedule reports whether spec is a standard cron expression or a
// descriptor such as "@every 5m".
func ValidateSchedule(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid reload schedule %q: %w", spec, err)
	}
	return nil
}

// Scheduler reloads configuration on a cron schedule.
type Scheduler struct {
	spec   string
	reload func()
	logger *zap.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewScheduler returns a scheduler for spec. An empty spec yields a scheduler
// whose Start is a no-op.
func NewScheduler(spec string, reload func(), logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		spec:   spec,
		reload: reload,
		logger: logger,
		cron:   cron.New(),
	}
}

// Start schedules the reload job and stops it when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.spec == "" {
		s.logger.Debug("reload schedule not configured")
		return nil
	}
	if err := ValidateSchedule(s.spec); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.spec, func() {
		s.logger.Info("scheduled configuration reload")
		s.reload()
	}); err != nil {
		return fmt.Errorf("schedule reload: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("reload scheduler started", zap.String("schedule", s.spec))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for a running reload to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("reload scheduler stopped")
}

// Running reports whether the schedule is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled reload, or the zero time if none.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
