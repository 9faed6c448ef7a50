package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/engagehub/engagement-core/internal/domain/shared"
	"github.com/engagehub/engagement-core/pkg/timeutil"
)

const (
	// DefaultInactivityThreshold is how long a user must be silent before
	// a reminder is considered.
	DefaultInactivityThreshold = 72 * time.Hour

	// reminderTTL keeps the per-day sent marker alive long enough to cover
	// clock skew between scheduler instances.
	reminderTTL = 48 * time.Hour

	// pollWeekTTL keeps the weekly poll marker through the following week.
	pollWeekTTL = 14 * 24 * time.Hour
)

// weeklyPoll is one entry of the rotating poll pool.
type weeklyPoll struct {
	Question string
	Options  []string
}

// pollPool rotates by ISO week so every instance that could win the SetNX
// race would emit the same poll.
var pollPool = []weeklyPoll{
	{"What did you spend the most time on this week?", []string{"Mini-games", "Challenges", "Recruiting friends", "Just lurking"}},
	{"Which mini-game should get a new mode?", []string{"Target practice", "Emoji hunt", "Both", "Neither, add a new game"}},
	{"How tough were this week's daily challenges?", []string{"Too easy", "About right", "Too hard", "Didn't try them"}},
	{"What keeps you coming back?", []string{"Points and levels", "Achievements", "The leaderboard", "Friends"}},
	{"When do you usually play?", []string{"Morning", "Lunch break", "Evening", "Way past midnight"}},
	{"Who should get next week's bonus reward?", []string{"Longest streak", "Most games won", "Most referrals", "Most poll votes"}},
}

// ══════════════════════════════════════════════════════════════════════════════
// ENGAGEMENT NOTIFIER
// ══════════════════════════════════════════════════════════════════════════════

// EngagementNotifier emits the autonomous outbound events: the weekly poll
// announcement and inactivity reminders. It only emits; the notification
// collaborator on the bus does the delivery.
type EngagementNotifier struct {
	store    shared.KeyValueStore
	profiles *Profiles
	bus      shared.EventPublisher
	logger   *slog.Logger
}

// NewEngagementNotifier creates the notifier.
func NewEngagementNotifier(
	store shared.KeyValueStore,
	profiles *Profiles,
	bus shared.EventPublisher,
	logger *slog.Logger,
) *EngagementNotifier {
	return &EngagementNotifier{
		store:    store,
		profiles: profiles,
		bus:      bus,
		logger:   logger,
	}
}

// SchedulePoll emits this week's poll exactly once per ISO week. Returns
// false with no error when another instance already claimed the week.
func (s *EngagementNotifier) SchedulePoll(ctx context.Context, now time.Time) (bool, error) {
	week := timeutil.ISOWeekKey(now)
	pollID := uuid.NewString()

	created, err := s.store.SetNX(ctx, keyPollWeek(week), []byte(pollID), pollWeekTTL)
	if err != nil {
		return false, shared.WrapError("engagement", "SchedulePoll", shared.ErrStoreUnavailable, "claim poll week", err)
	}
	if !created {
		s.logger.Debug("weekly poll already scheduled", "week", week)
		return false, nil
	}

	poll := pollForWeek(now)
	if err := s.bus.Publish(shared.NewPollScheduledEvent(pollID, poll.Question, poll.Options, week)); err != nil {
		s.logger.Warn("publish poll scheduled failed", "week", week, "error", err)
	}
	s.logger.Info("weekly poll scheduled", "week", week, "poll_id", pollID, "question", poll.Question)
	return true, nil
}

// RemindInactive emits a reminder event for every user whose last activity is
// older than threshold, at most once per user per UTC day. Per-user failures
// are logged and skipped. Returns the number of reminders emitted.
func (s *EngagementNotifier) RemindInactive(ctx context.Context, threshold time.Duration, now time.Time) (int, error) {
	if threshold <= 0 {
		threshold = DefaultInactivityThreshold
	}

	ids, err := s.profiles.AllUserIDs(ctx)
	if err != nil {
		return 0, err
	}

	day := timeutil.DayKey(now)
	sent := 0
	for _, userID := range ids {
		p, err := s.profiles.Get(ctx, userID)
		if err != nil {
			s.logger.Warn("reminder skipped user", "user_id", userID, "error", err)
			continue
		}
		inactiveFor := p.InactiveFor(now)
		if inactiveFor < threshold {
			continue
		}

		created, err := s.store.SetNX(ctx, keyReminderSent(userID, day), []byte(now.UTC().Format(time.RFC3339)), reminderTTL)
		if err != nil {
			s.logger.Warn("reminder marker failed", "user_id", userID, "error", err)
			continue
		}
		if !created {
			continue
		}

		if err := s.bus.Publish(shared.NewEngagementReminderEvent(userID, p.LastActiveAt, inactiveFor)); err != nil {
			s.logger.Warn("publish reminder failed", "user_id", userID, "error", err)
			continue
		}
		sent++
	}

	s.logger.Info("inactivity reminders emitted",
		"checked", len(ids), "sent", sent, "threshold", threshold.String())
	return sent, nil
}

func pollForWeek(now time.Time) weeklyPoll {
	_, week := now.UTC().ISOWeek()
	return pollPool[week%len(pollPool)]
}
