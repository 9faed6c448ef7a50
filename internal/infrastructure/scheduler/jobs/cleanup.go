package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/engagehub/engagement-core/internal/service"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLEANUP JOB
// ══════════════════════════════════════════════════════════════════════════════

// ArchivePruner deletes archived transactions past the retention horizon.
// The postgres archive implements it; a nil pruner disables that step.
type ArchivePruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupJob is the nightly janitor: it reaps expired mini-game sessions
// eagerly (TTL expiry already hides them from reads) and prunes the durable
// transaction archive past retention. Referral codes and ledger entries in
// the hot store expire on their own TTLs.
type CleanupJob struct {
	games     *service.MiniGameSessionManager
	pruner    ArchivePruner
	retention time.Duration
	logger    *slog.Logger
}

// NewCleanupJob creates the job. pruner may be nil when no archive is
// configured; a non-positive retention falls back to the ledger default.
func NewCleanupJob(games *service.MiniGameSessionManager, pruner ArchivePruner, retention time.Duration, logger *slog.Logger) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	if retention <= 0 {
		retention = service.DefaultTransactionRetention
	}
	return &CleanupJob{
		games:     games,
		pruner:    pruner,
		retention: retention,
		logger:    logger,
	}
}

// Name returns the job name.
func (j *CleanupJob) Name() string {
	return "cleanup"
}

// Description returns a human-readable description.
func (j *CleanupJob) Description() string {
	return "Reaps expired game sessions and prunes the transaction archive"
}

// Run executes the cleanup. The two steps are independent; a failure in one
// does not block the other.
func (j *CleanupJob) Run(ctx context.Context) error {
	var firstErr error

	reaped, err := j.games.ReapExpired(ctx)
	if err != nil {
		firstErr = err
		j.logger.Error("session reap failed", "error", err)
	} else if reaped > 0 {
		j.logger.Info("expired sessions reaped", "count", reaped)
	}

	if j.pruner != nil {
		cutoff := time.Now().Add(-j.retention)
		pruned, err := j.pruner.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			j.logger.Error("archive prune failed", "error", err)
		} else if pruned > 0 {
			j.logger.Info("archived transactions pruned",
				"count", pruned, "cutoff", cutoff.Format(time.RFC3339))
		}
	}

	return firstErr
}
