// Package scheduler runs named jobs on cron schedules.
package scheduler

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Job is a unit of scheduled work.
type Job interface {
	Run() error
	Name() string
}

// JobFunc adapts a function to Job.
type JobFunc struct {
	JobName string
	Fn      func() error
}

func (j JobFunc) Run() error   { return j.Fn() }
func (j JobFunc) Name() string { return j.JobName }

// Scheduler manages background jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// New creates a scheduler using standard five-field cron expressions.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(),
		logger: logger.With("component", "scheduler"),
	}
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// AddJob registers job under schedule, e.g. "0 18 * * MON-FRI" or "@every 6h".
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.logger.Debug("running job", "job", job.Name())

		if err := job.Run(); err != nil {
			s.logger.Error("job failed", "job", job.Name(), "error", err)
			return
		}
		s.logger.Debug("job completed", "job", job.Name())
	})
	if err != nil {
		return fmt.Errorf("schedule %s at %q: %w", job.Name(), schedule, err)
	}

	s.logger.Info("job registered", "job", job.Name(), "schedule", schedule)
	return nil
}

// Validate reports whether schedule is a valid cron expression.
func Validate(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return nil
}
