package jobs

import (
	"context"
	"log/slog"

	"github.com/engagehub/engagement-core/internal/service"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT SWEEP JOB
// ══════════════════════════════════════════════════════════════════════════════

// AchievementSweepJob re-evaluates every user's achievements. Direct awards
// already evaluate inline; the sweep exists for the time-window achievements
// whose predicates can become true without any new award, and as a safety
// net after partial failures. One user's failure never aborts the sweep.
type AchievementSweepJob struct {
	profiles  *service.Profiles
	evaluator *service.AchievementEvaluator
	logger    *slog.Logger
}

// NewAchievementSweepJob creates the job.
func NewAchievementSweepJob(profiles *service.Profiles, evaluator *service.AchievementEvaluator, logger *slog.Logger) *AchievementSweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &AchievementSweepJob{
		profiles:  profiles,
		evaluator: evaluator,
		logger:    logger,
	}
}

// Name returns the job name.
func (j *AchievementSweepJob) Name() string {
	return "achievement_sweep"
}

// Description returns a human-readable description.
func (j *AchievementSweepJob) Description() string {
	return "Re-evaluates achievements for all users"
}

// Run executes the sweep.
func (j *AchievementSweepJob) Run(ctx context.Context) error {
	ids, err := j.profiles.AllUserIDs(ctx)
	if err != nil {
		return err
	}

	granted, failed := 0, 0
	for _, userID := range ids {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		grants, err := j.evaluator.Evaluate(ctx, userID)
		if err != nil {
			failed++
			j.logger.Warn("sweep skipped user", "user_id", userID, "error", err)
			continue
		}
		granted += len(grants)
	}

	j.logger.Info("achievement sweep completed",
		"users", len(ids), "granted", granted, "failed", failed)
	return nil
}
