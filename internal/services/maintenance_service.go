package services

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// MaintenanceSettings controls the periodic housekeeping of the task store
type MaintenanceSettings struct {
	Schedule        string        // Cron spec with seconds
	MaxTaskDuration time.Duration // Processing tasks older than this are cancelled, 0 disables
	StatusRetention time.Duration // Terminal tasks older than this are forgotten, 0 disables
}

// MaintenanceService cancels stuck tasks and prunes old statuses on a cron schedule
type MaintenanceService struct {
	worker   *WorkflowWorker
	settings MaintenanceSettings
	cron     *cron.Cron
	now      func() time.Time
	logger   *slog.Logger
}

// NewMaintenanceService creates a maintenance service and registers its job
func NewMaintenanceService(worker *WorkflowWorker, settings MaintenanceSettings, logger *slog.Logger) (*MaintenanceService, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Create cron with seconds precision
	c := cron.New(cron.WithSeconds())

	s := &MaintenanceService{
		worker:   worker,
		settings: settings,
		cron:     c,
		now:      time.Now,
		logger:   logger.With("component", "maintenance"),
	}

	if _, err := c.AddFunc(settings.Schedule, func() { s.RunOnce() }); err != nil {
		return nil, fmt.Errorf("failed to schedule maintenance %q: %w", settings.Schedule, err)
	}
	return s, nil
}

// Start starts the cron scheduler
func (s *MaintenanceService) Start() {
	s.cron.Start()
	s.logger.Info("maintenance scheduler started", "schedule", s.settings.Schedule)
}

// Stop stops the cron scheduler and waits for a running job to finish
func (s *MaintenanceService) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("maintenance scheduler stopped")
}

// RunOnce performs one maintenance pass and returns how many tasks were
// cancelled and pruned
func (s *MaintenanceService) RunOnce() (cancelled, pruned int) {
	now := s.now()

	if s.settings.MaxTaskDuration > 0 {
		for _, state := range s.worker.Store().ProcessingSince(now.Add(-s.settings.MaxTaskDuration)) {
			if _, err := s.worker.Cancel(state.TaskID); err != nil {
				s.logger.Warn("failed to cancel stuck task", "task_id", state.TaskID, "error", err)
				continue
			}
			cancelled++
			s.logger.Warn("cancelled stuck task",
				"task_id", state.TaskID,
				"kind", state.Kind,
				"running_for", state.Elapsed(now).Round(time.Second))
		}
	}

	if s.settings.StatusRetention > 0 {
		pruned = s.worker.Store().Prune(now.Add(-s.settings.StatusRetention))
	}

	if cancelled > 0 || pruned > 0 {
		s.logger.Info("maintenance pass finished", "cancelled", cancelled, "pruned", pruned)
	}
	return cancelled, pruned
}
