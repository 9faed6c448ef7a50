package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/engagehub/engagement-core/internal/service"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENGAGEMENT REMINDERS JOB
// ══════════════════════════════════════════════════════════════════════════════

// EngagementRemindersJob finds users who went quiet and emits reminder
// events for the notification layer. The notifier throttles to one reminder
// per user per day regardless of how often this cadence fires.
type EngagementRemindersJob struct {
	notifier  *service.EngagementNotifier
	threshold time.Duration
	logger    *slog.Logger
}

// NewEngagementRemindersJob creates the job. A non-positive threshold falls
// back to the service default.
func NewEngagementRemindersJob(notifier *service.EngagementNotifier, threshold time.Duration, logger *slog.Logger) *EngagementRemindersJob {
	if logger == nil {
		logger = slog.Default()
	}
	if threshold <= 0 {
		threshold = service.DefaultInactivityThreshold
	}
	return &EngagementRemindersJob{
		notifier:  notifier,
		threshold: threshold,
		logger:    logger,
	}
}

// Name returns the job name.
func (j *EngagementRemindersJob) Name() string {
	return "engagement_reminders"
}

// Description returns a human-readable description.
func (j *EngagementRemindersJob) Description() string {
	return "Emits reminder events for users inactive past the threshold"
}

// Run executes the reminder sweep.
func (j *EngagementRemindersJob) Run(ctx context.Context) error {
	sent, err := j.notifier.RemindInactive(ctx, j.threshold, time.Now())
	if err != nil {
		return err
	}
	if sent > 0 {
		j.logger.Info("reminders sent", "count", sent)
	}
	return nil
}
