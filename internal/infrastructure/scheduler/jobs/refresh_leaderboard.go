package jobs

import (
	"context"
	"log/slog"

	"github.com/engagehub/engagement-core/internal/domain/shared"
	"github.com/engagehub/engagement-core/internal/service"
	"github.com/engagehub/engagement-core/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH LEADERBOARD JOB
// ══════════════════════════════════════════════════════════════════════════════

// RefreshLeaderboardJob rebuilds the cached ranking every hour. Reads always
// go to the snapshot, so this job is the only place ranking cost is paid.
type RefreshLeaderboardJob struct {
	leaderboard *service.LeaderboardAggregator
	retrier     *retry.Retrier
	logger      *slog.Logger
}

// NewRefreshLeaderboardJob creates the job.
func NewRefreshLeaderboardJob(leaderboard *service.LeaderboardAggregator, logger *slog.Logger) *RefreshLeaderboardJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshLeaderboardJob{
		leaderboard: leaderboard,
		retrier:     retry.StoreRetrier(retry.WithRetryIf(shared.IsRetryable)),
		logger:      logger,
	}
}

// Name returns the job name.
func (j *RefreshLeaderboardJob) Name() string {
	return "refresh_leaderboard"
}

// Description returns a human-readable description.
func (j *RefreshLeaderboardJob) Description() string {
	return "Rebuilds the cached global leaderboard snapshot"
}

// Run executes the refresh.
func (j *RefreshLeaderboardJob) Run(ctx context.Context) error {
	return j.retrier.Do(ctx, func(ctx context.Context) error {
		_, err := j.leaderboard.Refresh(ctx)
		return err
	})
}
