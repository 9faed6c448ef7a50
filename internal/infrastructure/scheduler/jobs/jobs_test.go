package jobs

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engagehub/engagement-core/internal/domain/minigame"
	"github.com/engagehub/engagement-core/internal/domain/points"
	"github.com/engagehub/engagement-core/internal/domain/shared"
	"github.com/engagehub/engagement-core/internal/infrastructure/persistence/memory"
	"github.com/engagehub/engagement-core/internal/infrastructure/scheduler"
	"github.com/engagehub/engagement-core/internal/service"
)

type recordingBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (b *recordingBus) Publish(event shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBus) ofType(t shared.EventType) []shared.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []shared.Event
	for _, e := range b.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T) (*service.Engine, *recordingBus) {
	t.Helper()
	bus := &recordingBus{}
	eng := service.NewEngine(memory.NewStore(), bus, nil, testLogger())
	return eng, bus
}

func TestDistributeChallengesJob(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, eng.Profiles.MarkActive(ctx, "alice", now))
	require.NoError(t, eng.Profiles.MarkActive(ctx, "bob", now))

	job := NewDistributeChallengesJob(eng.Challenges, testLogger())
	assert.Equal(t, "distribute_challenges", job.Name())
	require.NoError(t, job.Run(ctx))

	a1, err := eng.Challenges.GetDailyChallenge(ctx, "alice")
	require.NoError(t, err)
	b1, err := eng.Challenges.GetDailyChallenge(ctx, "bob")
	require.NoError(t, err)

	// A rerun is idempotent: the same instances survive.
	require.NoError(t, job.Run(ctx))
	a2, err := eng.Challenges.GetDailyChallenge(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, a1.TemplateID, a2.TemplateID)
	assert.Equal(t, a1.AssignedAt, a2.AssignedAt)
	assert.NotNil(t, b1)
}

func TestWeeklyPollJob_OncePerWeek(t *testing.T) {
	eng, bus := newTestEngine(t)
	ctx := context.Background()

	job := NewWeeklyPollJob(eng.Notifier, testLogger())
	require.NoError(t, job.Run(ctx))
	require.NoError(t, job.Run(ctx))

	polls := bus.ofType(shared.EventPollScheduled)
	require.Len(t, polls, 1)
	poll := polls[0].(shared.PollScheduledEvent)
	assert.NotEmpty(t, poll.Question)
	assert.NotEmpty(t, poll.Options)
	assert.NotEmpty(t, poll.Week)
}

func TestEngagementRemindersJob(t *testing.T) {
	eng, bus := newTestEngine(t)
	ctx := context.Background()

	// Stale user last seen five days ago; fresh user seen just now.
	require.NoError(t, eng.Profiles.MarkActive(ctx, "sleeper", time.Now().Add(-5*24*time.Hour)))
	require.NoError(t, eng.Profiles.MarkActive(ctx, "regular", time.Now()))

	job := NewEngagementRemindersJob(eng.Notifier, 72*time.Hour, testLogger())
	require.NoError(t, job.Run(ctx))

	reminders := bus.ofType(shared.EventEngagementReminder)
	require.Len(t, reminders, 1)
	rem := reminders[0].(shared.EngagementReminderEvent)
	assert.Equal(t, "sleeper", rem.UserID)

	// Same day, same user: the sent marker suppresses a repeat.
	require.NoError(t, job.Run(ctx))
	assert.Len(t, bus.ofType(shared.EventEngagementReminder), 1)
}

func TestRefreshLeaderboardJob(t *testing.T) {
	eng, bus := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Ledger.Award(ctx, "alice", 300, points.ReasonCorrection)
	require.NoError(t, err)
	_, err = eng.Ledger.Award(ctx, "bob", 150, points.ReasonCorrection)
	require.NoError(t, err)

	job := NewRefreshLeaderboardJob(eng.Leaderboard, testLogger())
	require.NoError(t, job.Run(ctx))

	top, err := eng.Leaderboard.GetTopN(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "alice", top[0].UserID)
	assert.Len(t, bus.ofType(shared.EventLeaderboardUpdated), 1)
}

func TestAchievementSweepJob(t *testing.T) {
	eng, bus := newTestEngine(t)
	ctx := context.Background()

	// Award without the inline evaluation pass, then let the sweep catch up.
	eng.Ledger.BindEvaluator(nil)
	_, err := eng.Ledger.Award(ctx, "alice", 40, points.ReasonCorrection)
	require.NoError(t, err)
	require.Empty(t, bus.ofType(shared.EventAchievementGranted))
	eng.Ledger.BindEvaluator(eng.Achievements)

	job := NewAchievementSweepJob(eng.Profiles, eng.Achievements, testLogger())
	require.NoError(t, job.Run(ctx))

	granted := bus.ofType(shared.EventAchievementGranted)
	require.NotEmpty(t, granted)

	p, err := eng.Profiles.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(len(granted)), p.AchievementsCount)

	// Sweep is idempotent.
	require.NoError(t, job.Run(ctx))
	assert.Len(t, bus.ofType(shared.EventAchievementGranted), len(granted))
}

func TestCleanupJob_ReapsSessions(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	sess, err := eng.StartGame(ctx, "alice", minigame.TargetPractice)
	require.NoError(t, err)
	require.NotNil(t, sess)

	job := NewCleanupJob(eng.Games, nil, 0, testLogger())
	assert.Equal(t, "cleanup", job.Name())

	// Nothing stale yet.
	require.NoError(t, job.Run(ctx))

	sess2, err := eng.Games.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, sess2.ID)
}

func TestRegisterAll(t *testing.T) {
	eng, _ := newTestEngine(t)

	sched, err := scheduler.New(scheduler.Config{
		Logger: testLogger(),
		Locker: memory.NewLock(memory.NewStore()),
	})
	require.NoError(t, err)

	require.NoError(t, RegisterAll(sched, eng, Options{}, testLogger()))

	infos := sched.ListJobs()
	names := make(map[string]bool, len(infos))
	for _, info := range infos {
		names[info.Name] = true
	}
	for _, want := range []string{
		"distribute_challenges", "weekly_poll", "engagement_reminders",
		"refresh_leaderboard", "achievement_sweep", "cleanup",
	} {
		assert.True(t, names[want], want)
	}
}
