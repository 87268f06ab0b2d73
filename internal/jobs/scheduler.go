package jobs

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Schedules are cron specs per job. An empty spec disables the job.
type Schedules struct {
	FeeOutbox          string
	StatusSync         string
	IdempotencyCleanup string
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron      *cron.Cron
	jobs      *Jobs
	schedules Schedules
	logger    *slog.Logger
}

// NewScheduler creates a scheduler. Panicking jobs are recovered and logged.
func NewScheduler(jobs *Jobs, schedules Schedules, logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))
	return &Scheduler{cron: c, jobs: jobs, schedules: schedules, logger: logger}
}

// Register adds every configured job and returns how many were scheduled.
func (s *Scheduler) Register() int {
	entries := []struct {
		name string
		spec string
		fn   func()
	}{
		{"fee outbox retry", s.schedules.FeeOutbox, s.jobs.RetryFeeOutbox},
		{"provider status sync", s.schedules.StatusSync, s.jobs.SyncProviderStatus},
		{"idempotency cleanup", s.schedules.IdempotencyCleanup, s.jobs.CleanIdempotency},
	}
	registered := 0
	for _, e := range entries {
		if e.spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(e.spec, e.fn); err != nil {
			s.logger.Error("failed to schedule job", "job", e.name, "error", err)
			continue
		}
		s.logger.Info("scheduled job", "job", e.name, "schedule", e.spec)
		registered++
	}
	return registered
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Register()
	s.cron.Start()
}

// Stop stops the scheduler; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
