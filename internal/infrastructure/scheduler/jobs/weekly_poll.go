package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/engagehub/engagement-core/internal/service"
)

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY POLL JOB
// ══════════════════════════════════════════════════════════════════════════════

// WeeklyPollJob emits one poll announcement per ISO week. The notifier claims
// the week with a store marker, so overlapping windows or instances produce
// exactly one poll.
type WeeklyPollJob struct {
	notifier *service.EngagementNotifier
	logger   *slog.Logger
}

// NewWeeklyPollJob creates the job.
func NewWeeklyPollJob(notifier *service.EngagementNotifier, logger *slog.Logger) *WeeklyPollJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &WeeklyPollJob{
		notifier: notifier,
		logger:   logger,
	}
}

// Name returns the job name.
func (j *WeeklyPollJob) Name() string {
	return "weekly_poll"
}

// Description returns a human-readable description.
func (j *WeeklyPollJob) Description() string {
	return "Publishes the weekly engagement poll"
}

// Run executes the poll scheduling.
func (j *WeeklyPollJob) Run(ctx context.Context) error {
	created, err := j.notifier.SchedulePoll(ctx, time.Now())
	if err != nil {
		return err
	}
	if !created {
		j.logger.Debug("weekly poll already exists for this week")
	}
	return nil
}
