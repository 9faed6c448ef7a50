// Package jobs contains the engagement engine's scheduled jobs. Each job is
// a thin cadence wrapper over a service operation: the services own the
// idempotency guarantees, the jobs own batching, retry, and logging.
package jobs

import (
	"context"
	"log/slog"

	"github.com/engagehub/engagement-core/internal/domain/shared"
	"github.com/engagehub/engagement-core/internal/service"
	"github.com/engagehub/engagement-core/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISTRIBUTE CHALLENGES JOB
// ══════════════════════════════════════════════════════════════════════════════

// DistributeChallengesJob hands every recently active user their daily
// challenge each morning. Assignment is idempotent per (user, day), so a
// retried or re-run window never double-assigns.
type DistributeChallengesJob struct {
	challenges *service.ChallengeScheduler
	retrier    *retry.Retrier
	logger     *slog.Logger
}

// NewDistributeChallengesJob creates the job.
func NewDistributeChallengesJob(challenges *service.ChallengeScheduler, logger *slog.Logger) *DistributeChallengesJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &DistributeChallengesJob{
		challenges: challenges,
		retrier:    retry.StoreRetrier(retry.WithRetryIf(shared.IsRetryable)),
		logger:     logger,
	}
}

// Name returns the job name.
func (j *DistributeChallengesJob) Name() string {
	return "distribute_challenges"
}

// Description returns a human-readable description.
func (j *DistributeChallengesJob) Description() string {
	return "Assigns a daily challenge to every recently active user"
}

// Run executes the distribution.
func (j *DistributeChallengesJob) Run(ctx context.Context) error {
	var assigned int
	err := j.retrier.Do(ctx, func(ctx context.Context) error {
		n, err := j.challenges.DistributeDailyChallenges(ctx)
		assigned = n
		return err
	})
	if err != nil {
		return err
	}

	j.logger.Info("daily challenges distributed", "assigned", assigned)
	return nil
}
