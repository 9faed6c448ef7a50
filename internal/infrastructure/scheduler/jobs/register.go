package jobs

import (
	"log/slog"
	"time"

	"github.com/engagehub/engagement-core/internal/infrastructure/scheduler"
	"github.com/engagehub/engagement-core/internal/service"
)

// Options tunes the registered cadence set.
type Options struct {
	// InactivityThreshold for the reminders job (default: service default).
	InactivityThreshold time.Duration

	// ArchiveRetention for the cleanup job (default: ledger default).
	ArchiveRetention time.Duration

	// Pruner for the cleanup job. Nil disables archive pruning.
	Pruner ArchivePruner
}

// RegisterAll wires the full cadence set onto the scheduler:
//
//	distribute_challenges  daily 08:00
//	weekly_poll            Monday 10:00
//	engagement_reminders   every 6 hours
//	refresh_leaderboard    hourly
//	achievement_sweep      every 30 minutes
//	cleanup                daily 02:00
//
// All times are UTC.
func RegisterAll(sched *scheduler.Scheduler, eng *service.Engine, opts Options, logger *slog.Logger) error {
	register := []struct {
		job  scheduler.Job
		expr string
	}{
		{NewDistributeChallengesJob(eng.Challenges, logger), scheduler.EveryDay8AM},
		{NewWeeklyPollJob(eng.Notifier, logger), scheduler.EveryMonday10},
		{NewEngagementRemindersJob(eng.Notifier, opts.InactivityThreshold, logger), scheduler.Every6Hours},
		{NewRefreshLeaderboardJob(eng.Leaderboard, logger), scheduler.EveryHour},
		{NewAchievementSweepJob(eng.Profiles, eng.Achievements, logger), scheduler.Every30Minutes},
		{NewCleanupJob(eng.Games, opts.Pruner, opts.ArchiveRetention, logger), scheduler.EveryDay2AM},
	}

	for _, r := range register {
		if err := sched.Register(r.job, scheduler.MustParseCronExpression(r.expr)); err != nil {
			return err
		}
	}
	return nil
}
